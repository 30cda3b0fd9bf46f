package commands

import (
	"errors"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/commands/options"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/runner/chat"
)

func addChat(topLevel *cobra.Command) {
	co := &options.ChannelOptions{}

	cmd := &cobra.Command{
		Use:     "chat",
		Aliases: []string{"ui"},
		Short:   "Open the interactive chat",
		Example: `
nafsy chat
nafsy chat --channel companion --session evening
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := co.Validate(); err != nil {
				return err
			}
			if !terminal(os.Stdin) || !terminal(os.Stdout) {
				return errors.New("chat needs an interactive terminal, try nafsy watch")
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			c := chat.Chat{
				Backend:    e.backend,
				Identity:   e.identity,
				Channel:    co.Channel,
				Session:    co.Session,
				Options:    e.options(),
				FetchLimit: e.cfg.HistoryLimit,
				Notifier:   e.notifier,
				Log:        e.log,
			}
			return c.Do(cmd.Context())
		},
	}

	options.AddChannelArgs(cmd, co, record.ChannelCoach)

	topLevel.AddCommand(cmd)
}

func terminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
