package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/routegate"
)

// NewRoutesCmd creates the routes command
func NewRoutesCmd() *cobra.Command {
	var routesFile string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the effective route table as YAML",
		Long: `Print the route table the gate uses. The output is a valid ROUTES_FILE
and can be used as a starting point for overrides.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			gate, err := loadGate(routesFile)
			if err != nil {
				return err
			}
			return runRoutes(cmd.OutOrStdout(), gate.Table())
		},
	}

	cmd.Flags().StringVar(&routesFile, "routes", "", "Route table YAML (defaults to ROUTES_FILE or the built-in table)")

	return cmd
}

func runRoutes(out io.Writer, table *routegate.Table) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(table.Spec()); err != nil {
		return fmt.Errorf("failed to encode route table: %w", err)
	}
	return enc.Close()
}
