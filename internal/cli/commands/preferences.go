package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/preferences"
)

// NewPreferencesCmd creates the preferences command
func NewPreferencesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "preferences",
		Aliases: []string{"prefs"},
		Short:   "List UI preference cookies, allowed values and defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreferences(cmd.OutOrStdout())
		},
	}
}

func runPreferences(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tCOOKIE\tDEFAULT\tMAX AGE\tALLOWED")
	fmt.Fprintln(w, "────\t──────\t───────\t───────\t───────")

	for _, p := range preferences.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.Kind,
			p.CookieName,
			p.Default,
			formatMaxAge(p.MaxAge),
			strings.Join(p.Allowed(), ", "),
		)
	}

	return w.Flush()
}

func formatMaxAge(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	if days > 0 && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return d.String()
}
