package cmd

import (
	"fmt"

	"github.com/mydiff/mydiff/internal/config"
)

// resolveSources returns the old and new schema sources for a command:
// positional arguments when given, the config file otherwise.
func resolveSources(args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	if len(args) != 0 {
		return "", "", fmt.Errorf("expected either two schema sources or none (with a config file)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return "", "", fmt.Errorf("no sources given and config unavailable: %w", err)
	}
	if cfg.Old.Source == "" || cfg.New.Source == "" {
		return "", "", fmt.Errorf("config does not name both old and new sources")
	}
	return cfg.Old.Source, cfg.New.Source, nil
}
