package commands

import (
	"github.com/spf13/cobra"

	base "github.com/n3wscott/cli-base/pkg/commands/options"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/commands/options"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/runner/history"
)

func addHistory(topLevel *cobra.Command) {
	co := &options.ChannelOptions{}
	io := &options.IDOptions{}
	limit := 0

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"get", "log"},
		Short:   "Print the messages of a session",
		Example: `
nafsy history
nafsy history --channel companion --session evening --limit 20
nafsy history --channel mood --json
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := co.Validate(); err != nil {
				return oo.HandleError(err)
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			defer e.Close()

			if !cmd.Flags().Changed("limit") {
				limit = e.cfg.HistoryLimit
			}
			h := history.History{
				Backend: e.backend,
				Channel: co.Channel,
				Session: co.Session,
				Limit:   limit,
				ShowID:  io.ShowID,
				Out:     cmd.OutOrStdout(),
			}
			if oo.JSON {
				h.Output = "json"
			}
			err = h.Do(cmd.Context())
			return oo.HandleError(err)
		},
	}

	options.AddChannelArgs(cmd, co, record.ChannelCoach)
	options.AddShowIDArgs(cmd, io)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Only print the last n messages, 0 prints all.")

	base.AddOutputArg(cmd, oo)
	topLevel.AddCommand(cmd)
}
