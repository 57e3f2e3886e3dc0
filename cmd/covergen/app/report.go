package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/covergen/covergen/internal/report"
)

// NewReportCommand creates the "report" subcommand: render a recorded
// attempt log as markdown.
func NewReportCommand() *cobra.Command {
	var (
		input     string
		output    string
		className string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a run's attempt log as a markdown summary.",
		RunE: func(cmd *cobra.Command, args []string) error {
			attempts, err := report.Load(input)
			if err != nil {
				return err
			}
			if err := report.WriteMarkdown(attempts, className, output); err != nil {
				return fmt.Errorf("failed to write markdown report: %w", err)
			}
			fmt.Printf("wrote %s (%d attempts)\n", output, len(attempts))
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "report.yaml", "Attempt log written by a generate run")
	cmd.Flags().StringVar(&output, "output", "report.md", "Markdown output path")
	cmd.Flags().StringVar(&className, "class", "", "Class name shown in the report title")

	return cmd
}
