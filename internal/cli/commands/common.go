package commands

import (
	"fmt"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/config"
	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/routegate"
)

// loadGate builds the route gate the server would use. routesFile overrides
// ROUTES_FILE when set.
func loadGate(routesFile string) (*routegate.Gate, error) {
	if routesFile == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		routesFile = cfg.Routes.File
	}

	table := routegate.DefaultTable()
	if routesFile != "" {
		var err error
		table, err = routegate.LoadTable(routesFile)
		if err != nil {
			return nil, err
		}
	}

	return routegate.New(table, routegate.DefaultLanding), nil
}

// publicOrigin returns PUBLIC_ORIGIN or the local listener address
func publicOrigin() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Server.PublicOrigin != "" {
		return cfg.Server.PublicOrigin, nil
	}
	return "http://localhost:" + cfg.Server.Port, nil
}
