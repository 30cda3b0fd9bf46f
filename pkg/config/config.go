// Package config loads nafsy settings from .nafsy.yaml files and NAFSY_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the resolved configuration.
type Config struct {
	Path string `json:"path"`

	UserID    string `json:"userId,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`

	OverlayLimit int `json:"overlayLimit"`
	HistoryLimit int `json:"historyLimit"`

	MatchContent bool          `json:"matchContent"`
	MatchSkew    time.Duration `json:"matchSkew"`

	NotifyBell bool `json:"notifyBell"`

	LogLevel string `json:"logLevel"`
	LogSink  string `json:"logSink,omitempty"`
}

// BasePath satisfies store.Config.
func (c *Config) BasePath() string {
	return c.Path
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Path:         "~/.nafsy.db",
		OverlayLimit: 3,
		MatchContent: true,
		MatchSkew:    2 * time.Second,
		LogLevel:     "info",
	}
}

// Load reads .nafsy.yaml from $NAFSY_CONFIG_PATH or the working directory and
// overlays NAFSY_* environment variables. A .env file next to the config seeds
// variables that are not already set. Missing files are not an error.
func Load() (*Config, error) {
	dir := "."
	if override := os.Getenv("NAFSY_CONFIG_PATH"); override != "" {
		dir = override
	}
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	d := Defaults()
	v.SetDefault("path", d.Path)
	v.SetDefault("overlay.limit", d.OverlayLimit)
	v.SetDefault("history.limit", d.HistoryLimit)
	v.SetDefault("match.content", d.MatchContent)
	v.SetDefault("match.skew", d.MatchSkew)
	v.SetDefault("notify.bell", d.NotifyBell)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("log.sink", "")
	v.SetDefault("user.id", "")
	v.SetDefault("user.email", "")

	v.SetConfigName(".nafsy") // .yaml is implicit
	v.SetEnvPrefix("NAFSY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if override := os.Getenv("NAFSY_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	path, err := homedir.Expand(v.GetString("path"))
	if err != nil {
		return nil, fmt.Errorf("config: expand path: %w", err)
	}

	cfg := &Config{
		Path:         path,
		UserID:       strings.TrimSpace(v.GetString("user.id")),
		UserEmail:    strings.TrimSpace(v.GetString("user.email")),
		OverlayLimit: v.GetInt("overlay.limit"),
		HistoryLimit: v.GetInt("history.limit"),
		MatchContent: v.GetBool("match.content"),
		MatchSkew:    v.GetDuration("match.skew"),
		NotifyBell:   v.GetBool("notify.bell"),
		LogLevel:     v.GetString("log.level"),
		LogSink:      v.GetString("log.sink"),
	}
	if cfg.OverlayLimit < 0 {
		cfg.OverlayLimit = 0
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	return cfg, nil
}
