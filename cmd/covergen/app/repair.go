package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/covergen/covergen/internal/config"
)

// NewRepairCommand creates the "repair" subcommand: fix the existing test
// suite without generating new tests.
func NewRepairCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Repair the existing test suite without generating new tests.",
		Long: `Run the configured test command and, if the suite fails, drive the
repair loop over the failure until it passes or the repair rounds are
exhausted. No path analysis or generation prompt is involved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runGenerate(cfg, true)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "covergen.yaml", "Path to the run configuration file")
	return cmd
}
