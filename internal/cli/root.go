package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "baantlo",
		Short: "Baantlo web gateway operator tool",
		Long: `Baantlo CLI - inspect the web gateway configuration.

Check how the route gate treats a path, print the effective route table
and list the UI preference cookies the gateway understands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "baantlo version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewCheckRouteCmd())
	rootCmd.AddCommand(commands.NewRoutesCmd())
	rootCmd.AddCommand(commands.NewPreferencesCmd())
	rootCmd.AddCommand(commands.NewOpenCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
