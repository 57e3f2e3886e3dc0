package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/covergen/covergen/internal/classify"
	"github.com/covergen/covergen/internal/coverage"
	"github.com/covergen/covergen/internal/llmgateway"
	"github.com/covergen/covergen/internal/logger"
	"github.com/covergen/covergen/internal/prompt"
)

// maxFailedQueue bounds the per-iteration failure queue; overflow drops the
// oldest entries since later failures carry fresher error context.
const maxFailedQueue = 8

// enqueueFailure pushes a failed test into the bounded repair queue.
func (e *Engine) enqueueFailure(t llmgateway.GeneratedTest, errorMessage string) {
	if len(e.failed) >= maxFailedQueue {
		e.failed = e.failed[1:]
	}
	e.failed = append(e.failed, prompt.FailedTest{Test: t, ErrorMessage: errorMessage})
}

// repairLoop drains the failure queue for up to the configured number of
// rounds. Each round builds one repair prompt over the current queue,
// validates every returned test, and requeues fresh failures for the next
// round.
func (e *Engine) repairLoop(ctx context.Context) error {
	rounds := e.cfg.Repair.Rounds
	if e.cfg.EnableFixing > 0 && e.cfg.EnableFixing < rounds {
		rounds = e.cfg.EnableFixing
	}
	if e.cfg.EnableFixing == 0 || rounds <= 0 {
		return nil
	}

	for round := 0; round < rounds && len(e.failed) > 0; round++ {
		queue := e.failed
		e.failed = nil

		pctx, err := e.repairContext()
		if err != nil {
			return err
		}
		msgs, err := prompt.BuildRepair(pctx, queue, e.cfg.Repair.UseMCTSPrompt)
		if err != nil {
			return err
		}
		tests, err := e.callModel(ctx, msgs)
		if err != nil {
			return err
		}
		logger.Info("engine: repair round %d: %d failed tests, %d candidate fixes",
			round+1, len(queue), len(tests))

		for k, t := range tests {
			e.validate(ctx, t, fmt.Sprintf("f_%d_%d", e.iter, k))
		}
	}
	return nil
}

// repairContext builds the prompt context for a repair round from the
// current (restored) test file.
func (e *Engine) repairContext() (*prompt.Context, error) {
	source, err := os.ReadFile(e.cfg.SourceCodeFile)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to read source for repair: %w", err)
	}
	testFile, err := os.ReadFile(e.cfg.TestCodeFile)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to read test file for repair: %w", err)
	}
	return &prompt.Context{
		Language:               languageOf(e.cfg.SourceCodeFile),
		ClassName:              coverage.ClassNameFromSource(e.cfg.SourceCodeFile),
		SourceCode:             string(source),
		TestCode:               string(testFile),
		LinePct:                e.coverage.LinePct,
		BranchPct:              e.coverage.BranchPct,
		TestDependencies:       e.deps,
		AdditionalInstructions: e.cfg.AdditionalInstructions,
	}, nil
}

// RunRepairOnly validates the current test file and, when it fails, runs
// the repair loop against it without any generation phase. Used by the
// repair subcommand.
func (e *Engine) RunRepairOnly(ctx context.Context) error {
	if err := e.setup(ctx); err != nil {
		return err
	}
	cov, err := e.measure(ctx)
	if err != nil {
		return err
	}
	e.coverage = cov
	e.recordInfo("r_0")

	e.seedRepairQueueFromSuite(ctx)
	if len(e.failed) == 0 {
		logger.Info("engine: current suite passes, nothing to repair")
		return nil
	}
	if err := e.repairLoop(ctx); err != nil {
		return err
	}
	cov, err = e.measure(ctx)
	if err != nil {
		return err
	}
	e.coverage = cov
	e.recordInfo("r_1")
	return nil
}

// seedRepairQueueFromSuite runs the existing suite once and, on failure,
// enqueues the whole test file with the classified excerpt so the repair
// loop has something to work on.
func (e *Engine) seedRepairQueueFromSuite(ctx context.Context) {
	timeout := time.Duration(e.cfg.Timeouts.GenerationCommandSeconds) * time.Second
	res, err := e.runner.Run(ctx, e.cfg.TestExecutionCommand, e.cfg.TestCodeCommandDir, timeout)
	if err != nil || res.ExitCode == 0 {
		return
	}
	verdict := classify.Classify(res.CombinedOutput())
	testFile, readErr := os.ReadFile(e.cfg.TestCodeFile)
	if readErr != nil {
		return
	}
	e.enqueueFailure(llmgateway.GeneratedTest{
		TestName: "existing suite",
		TestCode: string(testFile),
	}, verdict.Excerpt)
}
