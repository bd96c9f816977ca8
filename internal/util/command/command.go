// Package command holds small helpers shared by the CLI subcommands.
package command

import (
	"github.com/spf13/cobra"
)

// NewSubcommandGroup creates a command that only groups subcommands and
// prints its help when invoked directly.
func NewSubcommandGroup(use string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use: use,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}
