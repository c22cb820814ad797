// Package commands implements the coachctl subcommands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/benvon/smart-coach/internal/config"
	"github.com/benvon/smart-coach/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCmd builds the coachctl command tree
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "coachctl",
		Short:         "Operator tool for the Smart Coach orchestrator",
		Long:          "Validate service catalogs, preview prompts, run coaching requests locally and manage stored profiles.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline activity to stderr")

	newLogger := func() *zap.Logger {
		if !verbose {
			return zap.NewNop()
		}
		log, err := logger.New(logger.Options{Development: true, Debug: true, Service: "coachctl"})
		if err != nil {
			return zap.NewNop()
		}
		return log
	}

	root.AddCommand(
		NewCatalogCmd(),
		NewPromptCmd(newLogger),
		NewRunCmd(newLogger),
		NewMigrateCmd(),
		NewProfileCmd(),
	)
	return root
}

// resolveCatalog reads path when given, otherwise the catalog the server
// would build from its environment
func resolveCatalog(path string) (*config.Catalog, error) {
	if path != "" {
		return config.LoadCatalog(path)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg.ResolveCatalog()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
