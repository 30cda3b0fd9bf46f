package commands

import (
	"errors"

	"github.com/spf13/cobra"

	base "github.com/n3wscott/cli-base/pkg/commands/options"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/commands/options"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/runner/session"
)

func addSession(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:       "session",
		Aliases:   []string{"sessions"},
		Short:     base.Wrap80("List or delete the sessions of a channel."),
		ValidArgs: []string{},
		Run: func(cmd *cobra.Command, args []string) {
			// a sub-command is required.
			_ = cmd.Help()
		},
	}

	addSessionList(cmd)
	addSessionDelete(cmd)

	topLevel.AddCommand(cmd)
}

func addSessionList(topLevel *cobra.Command) {
	co := &options.ChannelOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the sessions of a channel.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := co.Validate(); err != nil {
				return oo.HandleError(err)
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			defer e.Close()

			l := session.List{
				Backend: e.backend,
				Channel: co.Channel,
				Out:     cmd.OutOrStdout(),
			}
			if oo.JSON {
				l.Output = "json"
			}
			err = l.Do(cmd.Context())
			return oo.HandleError(err)
		},
	}
	options.AddChannelArgs(cmd, co, record.ChannelCoach)
	base.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}

func addSessionDelete(topLevel *cobra.Command) {
	co := &options.ChannelOptions{}

	cmd := &cobra.Command{
		Use:   "delete [session]",
		Short: "Delete a session and all of its messages.",
		Example: `
nafsy session delete evening --channel companion
`,
		Args: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if len(args) != 1 {
				return errors.New("requires exactly one session")
			}
			co.Session = args[0]
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := co.Validate(); err != nil {
				return oo.HandleError(err)
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			defer e.Close()

			d := session.Delete{
				Backend: e.backend,
				Channel: co.Channel,
				Session: co.Session,
				Out:     cmd.OutOrStdout(),
			}
			err = d.Do(cmd.Context())
			return oo.HandleError(err)
		},
	}
	cmd.Flags().StringVarP(&co.Channel, "channel", "c", record.ChannelCoach, "Channel the session belongs to.")
	base.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}
