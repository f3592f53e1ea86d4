package commands

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

// NewOpenCmd creates the open command
func NewOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open [path]",
		Short: "Open the web app in the browser",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			return runOpen(cmd, path)
		},
	}

	return cmd
}

func runOpen(cmd *cobra.Command, path string) error {
	origin, err := publicOrigin()
	if err != nil {
		return err
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := origin + path

	fmt.Fprintf(cmd.OutOrStdout(), "URL: %s\n", target)

	if err := openBrowser(target); err != nil {
		return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, target)
	}

	return nil
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
