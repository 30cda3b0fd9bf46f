package store

import "github.com/Aziz-Madhi/nafsy-sub001/pkg/config"

// Config locates the on-disk store.
type Config interface {
	BasePath() string
}

// LoadConfig resolves the store location from the nafsy configuration.
func LoadConfig() (Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
