// Package cli holds the cobra commands of the resort reservation server.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resort",
		Short: "Resort reservation engine",
		Long: `Books rooms, restaurant tables, pool chairs, playgrounds and animal
activities without double booking, and enrolls guests into fixed-capacity
events. Configuration comes from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewTokenCommand())
	return cmd
}
