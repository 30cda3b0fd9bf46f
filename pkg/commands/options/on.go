package options

import (
	"time"

	"github.com/spf13/cobra"
)

const (
	layoutDay   = "2006-1-2"
	layoutMonth = "2006-1"
)

// OnOptions picks a date, for example the month of a calendar.
type OnOptions struct {
	OnString string
}

func AddOnArgs(cmd *cobra.Command, o *OnOptions) {
	cmd.Flags().StringVar(&o.OnString, "on", "",
		`Specify a date or month, example: --on="2024-2-28" or --on="2024-2".`)
}

// GetOn parses --on in loc. A zero time means the flag was not set.
func (o *OnOptions) GetOn(loc *time.Location) (time.Time, error) {
	if o.OnString == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(layoutDay, o.OnString, loc)
	if err != nil {
		t, err = time.ParseInLocation(layoutMonth, o.OnString, loc)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t, nil
}
