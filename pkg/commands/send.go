package commands

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	base "github.com/n3wscott/cli-base/pkg/commands/options"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/commands/options"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/runner/send"
)

func addSend(topLevel *cobra.Command) {
	co := &options.ChannelOptions{}
	io := &options.IDOptions{}
	var (
		role    string
		show    int
		message string
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a message to a channel",
		Example: `
nafsy send I could not sleep last night
nafsy send --channel companion --session evening thanks for listening
`,
		Args: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if len(args) < 1 {
				return errors.New("requires a message")
			}
			message = strings.Join(args, " ")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := co.Validate(); err != nil {
				return oo.HandleError(err)
			}
			r, err := record.ParseRole(role)
			if err != nil {
				return oo.HandleError(err)
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return oo.HandleError(err)
			}
			defer e.Close()

			if !cmd.Flags().Changed("show") {
				show = e.cfg.OverlayLimit
			}
			s := send.Send{
				Backend:  e.backend,
				Channel:  co.Channel,
				Session:  co.Session,
				Role:     r,
				Message:  message,
				Show:     show,
				ShowID:   io.ShowID,
				Notifier: e.notifier,
				Log:      e.log,
				Out:      cmd.OutOrStdout(),
			}
			err = s.Do(cmd.Context())
			return oo.HandleError(err)
		},
	}

	options.AddChannelArgs(cmd, co, record.ChannelCoach)
	options.AddShowIDArgs(cmd, io)
	cmd.Flags().StringVar(&role, "role", string(record.RoleUser), "Author of the message: user or assistant.")
	cmd.Flags().IntVar(&show, "show", 3, "How many recent messages to print after sending.")

	base.AddOutputArg(cmd, oo)
	topLevel.AddCommand(cmd)
}
