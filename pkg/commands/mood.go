package commands

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	base "github.com/n3wscott/cli-base/pkg/commands/options"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/commands/options"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/mood"
	moodrunner "github.com/Aziz-Madhi/nafsy-sub001/pkg/runner/mood"
)

func addMood(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:       "mood",
		Short:     base.Wrap80("Log how you feel and look back at your mood calendar."),
		ValidArgs: []string{},
		Run: func(cmd *cobra.Command, args []string) {
			// a sub-command is required.
			_ = cmd.Help()
		},
	}

	addMoodLog(cmd)
	addMoodCalendar(cmd)

	topLevel.AddCommand(cmd)
}

func addMoodLog(topLevel *cobra.Command) {
	var (
		rating int
		note   string
	)

	long := strings.Builder{}
	long.WriteString("Log a mood rating from 1 to 10 with an optional note.\n\n")
	long.WriteString("Ratings map to categories:\n")
	for _, c := range mood.Categories() {
		r := c.Rating()
		long.WriteString(string(c) + ": " + strconv.Itoa(r-1) + "-" + strconv.Itoa(r) + "\n")
	}

	cmd := &cobra.Command{
		Use:   "log [rating] [note]",
		Short: "Log a mood rating.",
		Long:  long.String(),
		Example: `
nafsy mood log 7 slept well
nafsy mood log 3
`,
		Args: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if len(args) < 1 {
				return errors.New("requires a rating")
			}
			var err error
			rating, err = strconv.Atoi(args[0])
			if err != nil {
				return errors.New("rating must be a number from 1 to 10")
			}
			note = strings.Join(args[1:], " ")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			defer e.Close()

			l := moodrunner.Log{
				Backend:  e.backend,
				Rating:   rating,
				Note:     note,
				Notifier: e.notifier,
				Log:      e.log,
				Out:      cmd.OutOrStdout(),
			}
			err = l.Do(cmd.Context())
			return oo.HandleError(err)
		},
	}
	base.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}

func addMoodCalendar(topLevel *cobra.Command) {
	on := &options.OnOptions{}

	cmd := &cobra.Command{
		Use:     "calendar",
		Aliases: []string{"cal"},
		Short:   "Show a month of moods.",
		Example: `
nafsy mood calendar
nafsy mood calendar --on 2024-2
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := on.GetOn(time.Local)
			if err != nil {
				return oo.HandleError(err)
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			defer e.Close()

			c := moodrunner.Calendar{
				Backend:  e.backend,
				On:       day,
				Location: time.Local,
				Out:      cmd.OutOrStdout(),
			}
			err = c.Do(cmd.Context())
			return oo.HandleError(err)
		},
	}
	options.AddOnArgs(cmd, on)
	base.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}
