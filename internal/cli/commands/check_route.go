package commands

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/auth"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/routegate"
)

// NewCheckRouteCmd creates the check-route command
func NewCheckRouteCmd() *cobra.Command {
	var (
		role       string
		routesFile string
		origin     string
	)

	cmd := &cobra.Command{
		Use:   "check-route <path>",
		Short: "Show how the route gate treats a path",
		Long: `Classify a path with the configured route table and print the gate
decision for an anonymous visitor or for a signed-in user with --role.`,
		Example: `  baantlo check-route /groups/abc
  baantlo check-route /admin/dashboard --role BASIC_USER`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gate, err := loadGate(routesFile)
			if err != nil {
				return err
			}
			return runCheckRoute(cmd.OutOrStdout(), gate, args[0], role, origin)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Evaluate for a signed-in user with this role (empty = anonymous)")
	cmd.Flags().StringVar(&routesFile, "routes", "", "Route table YAML (defaults to ROUTES_FILE or the built-in table)")
	cmd.Flags().StringVar(&origin, "origin", "http://localhost:3000", "Origin used to build redirect URLs")

	return cmd
}

func runCheckRoute(out io.Writer, gate *routegate.Gate, rawPath, role, origin string) error {
	u, err := url.Parse(rawPath)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", rawPath, err)
	}
	if !strings.HasPrefix(u.Path, "/") {
		return fmt.Errorf("path must start with /: %q", rawPath)
	}

	var session *auth.SessionData
	who := "anonymous"
	if role != "" {
		session = &auth.SessionData{UserID: "cli", Role: role, Roles: []string{role}}
		who = role
	}

	decision := gate.Decide(routegate.Request{
		Origin:   strings.TrimSuffix(origin, "/"),
		Path:     u.Path,
		RawQuery: u.RawQuery,
	}, session)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PATH\t%s\n", rawPath)
	fmt.Fprintf(w, "VISITOR\t%s\n", who)
	fmt.Fprintf(w, "CLASS\t%s\n", decision.Class)
	fmt.Fprintf(w, "ACTION\t%s\n", decision.Action)
	if decision.Location != "" {
		fmt.Fprintf(w, "LOCATION\t%s\n", decision.Location)
	}
	return w.Flush()
}
