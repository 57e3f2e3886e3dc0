package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/covergen/covergen/internal/ast"
	"github.com/covergen/covergen/internal/config"
	"github.com/covergen/covergen/internal/coverage"
	"github.com/covergen/covergen/internal/engine"
	"github.com/covergen/covergen/internal/llmgateway"
	"github.com/covergen/covergen/internal/logger"
	"github.com/covergen/covergen/internal/report"
	"github.com/covergen/covergen/internal/runner"
)

// NewGenerateCommand creates the "generate" subcommand, the main entry
// point of a run.
func NewGenerateCommand() *cobra.Command {
	var (
		configPath string
		target     int
		maxIter    int
		pickTwo    bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the closed-loop test generation for one class.",
		Long: `Run the generate-validate-repair-measure loop for the configured class
until the coverage target, the iteration cap, or the stagnation cap is hit.

Configuration:
  All options live in the config file. Command line flags override the
  config file values.

Exit code is 0 on any normal termination; whether the coverage target was
met is carried by the report file, not the exit code.

Examples:
  # Run with a config file
  covergen generate --config calculator.yaml

  # Override the coverage target
  covergen generate --config calculator.yaml --target 90`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if cmd.Flags().Changed("target") {
				cfg.TargetCoverage = target
			}
			if cmd.Flags().Changed("max-iterations") {
				cfg.MaximumIterations = maxIter
			}
			if cmd.Flags().Changed("pick-two-paths") {
				cfg.PickTwoPaths = pickTwo
			}
			if cfg.RunSymprompt {
				cfg.PromptType = "symprompt"
			}

			return runGenerate(cfg, false)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "covergen.yaml", "Path to the run configuration file")
	cmd.Flags().IntVar(&target, "target", 80, "Target line coverage percentage")
	cmd.Flags().IntVar(&maxIter, "max-iterations", 10, "Maximum generate-validate-repair iterations")
	cmd.Flags().BoolVar(&pickTwo, "pick-two-paths", true, "Select both an exploit and an explore path per method")

	return cmd
}

// runGenerate wires the components and runs the engine; repairOnly skips
// the generation phase and only repairs the existing suite.
func runGenerate(cfg *config.Config, repairOnly bool) error {
	if cfg.LogDir != "" {
		if err := logger.InitWithFileForRun(cfg.LogLevel, cfg.LogDir, cfg.SourceCodeFile); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Close()
	} else {
		logger.Init(cfg.LogLevel)
	}

	gateway, err := llmgateway.New(llmConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create llm gateway: %w", err)
	}

	className := coverage.ClassNameFromSource(cfg.SourceCodeFile)
	parser, err := coverage.NewParser(coverage.Options{
		Type:       cfg.CoverageType,
		ReportPath: cfg.CodeCoverageReportPath,
		ClassName:  className,
	})
	if err != nil {
		return err
	}

	sink := report.NewSink(cfg.ReportFilepath)

	eng := engine.New(engine.Components{
		Config:   cfg,
		FrontEnd: ast.NewHeuristicFrontEnd(),
		Gateway:  gateway,
		Runner:   runner.New(),
		Parser:   parser,
		Sink:     sink,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	})

	var runErr error
	if repairOnly {
		runErr = eng.RunRepairOnly(context.Background())
	} else {
		runErr = eng.Run(context.Background())
	}
	if runErr != nil {
		// Fatal conditions are logged; the attempt log written so far
		// still reaches the report file.
		logger.Error("run aborted: %v", runErr)
		return runErr
	}
	logger.Info("run complete, %d attempts recorded", len(sink.Attempts()))
	return nil
}

// llmConfig folds the flat model key into the nested LLM block: the flat
// schema's model wins when the nested block doesn't name one.
func llmConfig(cfg *config.Config) config.LLMConfig {
	llm := cfg.LLM
	if llm.Model == "" {
		llm.Model = cfg.Model
	}
	return llm
}
