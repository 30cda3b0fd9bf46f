package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/commands/options"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/runner/watch"
)

func addWatch(topLevel *cobra.Command) {
	co := &options.ChannelOptions{}
	io := &options.IDOptions{}
	var (
		once  bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "watch [message]",
		Short: "Follow a session live, optionally sending a message",
		Long: `Follow a session and print the merged view every time it changes.
Messages still on their way are shown next to the confirmed ones until the
backend echoes them back. Given a message, it is sent once the first
snapshot arrives.`,
		Example: `
nafsy watch --channel companion
nafsy watch --once I feel a bit better today
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := co.Validate(); err != nil {
				return err
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			w := watch.Watch{
				Backend:    e.backend,
				Channel:    co.Channel,
				Session:    co.Session,
				Options:    e.options(),
				FetchLimit: e.cfg.HistoryLimit,
				Message:    strings.Join(args, " "),
				ShowID:     io.ShowID,
				Notifier:   e.notifier,
				Log:        e.log,
				Out:        cmd.OutOrStdout(),
				Once:       once,
			}
			w.Options.Limit = limit
			return w.Do(cmd.Context())
		},
	}

	options.AddChannelArgs(cmd, co, record.ChannelCoach)
	options.AddShowIDArgs(cmd, io)
	cmd.Flags().BoolVar(&once, "once", false, "Exit once the view settles.")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Only show the last n entries, 0 shows all.")

	topLevel.AddCommand(cmd)
}
