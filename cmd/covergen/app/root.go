package app

import (
	"github.com/spf13/cobra"
)

// NewCovergenCommand creates the root command for the covergen tool.
func NewCovergenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "covergen",
		Short: "Coverage-guided LLM unit-test generation.",
		Long: `Covergen generates a unit-test suite for a class in a target project,
driving an LLM with control-flow paths and coverage feedback until the
configured coverage target is reached.`,
	}

	cmd.AddCommand(NewGenerateCommand())
	cmd.AddCommand(NewRepairCommand())
	cmd.AddCommand(NewReportCommand())

	return cmd
}
