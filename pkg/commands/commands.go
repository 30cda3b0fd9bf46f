package commands

import (
	"github.com/spf13/cobra"

	base "github.com/n3wscott/cli-base/pkg/commands/options"
)

var (
	oo = &base.OutputOptions{}
)

func New() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "nafsy",
		Short: base.Wrap80("Chat with your coach and companion, and keep a mood log, from the command line."),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addSend(topLevel)
	addHistory(topLevel)
	addWatch(topLevel)
	addChat(topLevel)
	addSession(topLevel)
	addMood(topLevel)
	addMCP(topLevel)
	addVersion(topLevel)
}
