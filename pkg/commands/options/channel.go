// Package options defines shared flag helpers for CLI commands.
package options

import (
	"fmt"
	"strings"

	base "github.com/n3wscott/cli-base/pkg/commands/options"
	"github.com/spf13/cobra"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// ChannelOptions selects a channel and a session within it.
type ChannelOptions struct {
	Channel string
	Session string
}

// AddChannelArgs wires --channel and --session on cmd. def is the channel used
// when the flag is not given.
func AddChannelArgs(cmd *cobra.Command, o *ChannelOptions, def string) {
	cmd.Flags().StringVarP(&o.Channel, "channel", "c", def,
		base.Wrap80("Channel to use, one of: "+strings.Join(record.Channels(), ", ")+"."))
	cmd.Flags().StringVarP(&o.Session, "session", "s", record.DefaultSession,
		"Session within the channel.")
	_ = cmd.RegisterFlagCompletionFunc("channel", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return ChannelCompletions(toComplete), cobra.ShellCompDirectiveNoFileComp
	})
}

// Validate normalizes the selection and rejects unknown channels.
func (o *ChannelOptions) Validate() error {
	o.Channel = strings.ToLower(strings.TrimSpace(o.Channel))
	o.Session = record.NormalizeSession(o.Session)
	for _, ch := range record.Channels() {
		if ch == o.Channel {
			return nil
		}
	}
	return fmt.Errorf("unknown channel %q", o.Channel)
}

// ChannelCompletions returns the channels starting with toComplete.
func ChannelCompletions(toComplete string) []string {
	var out []string
	for _, ch := range record.Channels() {
		if strings.HasPrefix(ch, toComplete) {
			out = append(out, ch)
		}
	}
	return out
}
