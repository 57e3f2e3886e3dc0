package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/covergen/covergen/internal/cfgbuild"
	"github.com/covergen/covergen/internal/classify"
	"github.com/covergen/covergen/internal/coverage"
	"github.com/covergen/covergen/internal/integrator"
	"github.com/covergen/covergen/internal/llmgateway"
	"github.com/covergen/covergen/internal/logger"
	"github.com/covergen/covergen/internal/prompt"
	"github.com/covergen/covergen/internal/report"
)

// iterate runs one generate-validate-repair-measure cycle.
func (e *Engine) iterate(ctx context.Context) error {
	label := fmt.Sprintf("g_%d", e.iter)
	e.failed = e.failed[:0]

	msgs, selected, err := e.buildGenerationPrompt()
	if err != nil {
		return err
	}
	if msgs == nil {
		// Nothing is missed on any path this iteration; the measure step
		// below still records the checkpoint.
		logger.Info("engine: iteration %d has no carrier paths, skipping generation", e.iter)
	} else {
		tests, err := e.callModel(ctx, *msgs)
		if err != nil {
			return err // gateway errors stop the run
		}
		logger.Info("engine: iteration %d generated %d tests against %d paths",
			e.iter, len(tests), selected)
		for _, t := range tests {
			e.validate(ctx, t, label)
		}
	}

	cov, err := e.measure(ctx)
	if err != nil {
		return err
	}
	e.coverage = cov
	e.recordInfo(label)

	if err := e.repairLoop(ctx); err != nil {
		return err
	}

	cov, err = e.measure(ctx)
	if err != nil {
		return err
	}
	e.coverage = cov
	e.recordInfo(fmt.Sprintf("f_%d", e.iter))
	return nil
}

// buildGenerationPrompt assembles this iteration's prompt: a baseline
// prompt when coverage is still flat zero, the configured strategy's
// prompt otherwise.
// Returns nil messages when nothing in the class is missed.
func (e *Engine) buildGenerationPrompt() (*llmgateway.Messages, int, error) {
	pctx, selected, err := e.promptContext()
	if err != nil {
		return nil, 0, err
	}
	if pctx == nil {
		return nil, 0, nil
	}

	baseline := e.coverage.LinePct == 0 && e.coverage.BranchPct == 0
	var strategy prompt.Strategy = e.strategy
	if baseline {
		strategy = prompt.NewStrategy("baseline")
	}
	msgs, err := strategy.Build(pctx)
	if err != nil {
		return nil, 0, err
	}
	return &msgs, selected, nil
}

// promptContext joins the current coverage onto the per-method paths and
// runs path selection. Path visits are paid here, before the LLM call.
func (e *Engine) promptContext() (*prompt.Context, int, error) {
	source, err := os.ReadFile(e.cfg.SourceCodeFile)
	if err != nil {
		return nil, 0, fmt.Errorf("engine: failed to re-read source: %w", err)
	}
	testFile, err := os.ReadFile(e.cfg.TestCodeFile)
	if err != nil {
		return nil, 0, fmt.Errorf("engine: failed to read test file: %w", err)
	}

	pctx := &prompt.Context{
		Language:               languageOf(e.cfg.SourceCodeFile),
		ClassName:              coverage.ClassNameFromSource(e.cfg.SourceCodeFile),
		SourceCode:             string(source),
		TestCode:               string(testFile),
		LinePct:                e.coverage.LinePct,
		BranchPct:              e.coverage.BranchPct,
		TestDependencies:       e.deps,
		IncludedFiles:          e.includedFiles(),
		AdditionalInstructions: e.cfg.AdditionalInstructions,
	}

	anyMissed := false
	for _, cfg := range e.methodCFGs {
		if cfg.Complexity == 1 {
			if t, ok := cfgbuild.SimpleTargetFor(cfg, e.unit.LineMap, e.coverage); ok {
				pctx.SimpleTargets = append(pctx.SimpleTargets, t)
				anyMissed = true
			}
			continue
		}
		carriers := cfgbuild.JoinCoverage(e.methodPaths[cfg.Name], cfg, e.unit.LineMap, e.coverage)
		if len(carriers) == 0 {
			continue
		}
		anyMissed = true
		if e.cfg.PickTwoPaths {
			pctx.SelectedPaths = append(pctx.SelectedPaths, e.selector.PickTwo(carriers, e.history)...)
		} else if p, ok := e.selector.PickOne(carriers, e.history); ok {
			pctx.SelectedPaths = append(pctx.SelectedPaths, p)
		}
		pctx.BranchSites = append(pctx.BranchSites, cfgbuild.MissedBranchSites(cfg, e.coverage)...)
	}

	// A flat-zero run still gets a baseline generation even when the
	// report carried no per-line detail.
	baseline := e.coverage.LinePct == 0 && e.coverage.BranchPct == 0
	if !anyMissed && !baseline {
		return nil, 0, nil
	}
	return pctx, len(pctx.SelectedPaths), nil
}

func (e *Engine) includedFiles() string {
	if e.cfg.IncludedFiles == "" {
		return ""
	}
	data, err := os.ReadFile(e.cfg.IncludedFiles)
	if err != nil {
		logger.Warn("engine: could not read included files %s: %v", e.cfg.IncludedFiles, err)
		return ""
	}
	return string(data)
}

// callModel sends one prompt and parses the reply into tests. A transport
// error propagates (and stops the run); an unparseable reply is an empty
// test list.
func (e *Engine) callModel(ctx context.Context, msgs llmgateway.Messages) ([]llmgateway.GeneratedTest, error) {
	reply, err := e.gateway.Call(ctx, msgs, maxCompletionTokens)
	if err != nil {
		return nil, fmt.Errorf("engine: llm gateway error: %w", err)
	}
	e.tokens.prompt += reply.PromptTokens
	e.tokens.completion += reply.CompletionTokens
	return llmgateway.ParseNewTests(reply.Text), nil
}

// validate integrates one generated test, runs the test command, and either
// keeps the test (PASS) or restores the file byte-for-byte and queues the
// test for repair (FAIL).
func (e *Engine) validate(ctx context.Context, t llmgateway.GeneratedTest, label string) {
	original, err := os.ReadFile(e.cfg.TestCodeFile)
	if err != nil {
		logger.Error("engine: cannot snapshot test file: %v", err)
		return
	}

	meta, err := integrator.ComputeInsertion(string(original))
	if err != nil {
		logger.Warn("engine: %v, skipping test %s", err, t.TestName)
		return
	}
	updated, err := integrator.New(meta).Insert(string(original), t)
	if err != nil {
		logger.Warn("engine: integration failed for %s: %v", t.TestName, err)
		return
	}
	if err := os.WriteFile(e.cfg.TestCodeFile, []byte(updated), 0644); err != nil {
		logger.Error("engine: cannot write test file: %v", err)
		return
	}

	timeout := time.Duration(e.cfg.Timeouts.GenerationCommandSeconds) * time.Second
	res, err := e.runner.Run(ctx, e.cfg.TestExecutionCommand, e.cfg.TestCodeCommandDir, timeout)
	if err != nil {
		e.restore(original)
		logger.Error("engine: test command failed to start: %v", err)
		return
	}

	if res.ExitCode == 0 {
		e.record(report.Attempt{
			Label:     label,
			Status:    report.StatusPass,
			Test:      t.TestCode,
			LinePct:   e.coverage.LinePct,
			BranchPct: e.coverage.BranchPct,
		})
		e.persistOutput()
		return
	}

	e.restore(original)
	verdict := classify.Classify(res.CombinedOutput())
	e.record(report.Attempt{
		Label:         label,
		Status:        report.StatusFail,
		Reason:        string(verdict.Kind),
		ExitCode:      res.ExitCode,
		Stderr:        verdict.Excerpt,
		StdoutExcerpt: firstLines(res.Stdout, 10),
		Test:          t.TestCode,
		LinePct:       e.coverage.LinePct,
		BranchPct:     e.coverage.BranchPct,
	})
	e.enqueueFailure(t, verdict.Excerpt)
}

// restore puts the pre-validation bytes back.
func (e *Engine) restore(original []byte) {
	if err := os.WriteFile(e.cfg.TestCodeFile, original, 0644); err != nil {
		logger.Error("engine: FAILED to restore test file: %v", err)
	}
}

// persistOutput mirrors the accepted test file to the configured output
// path, when one is set.
func (e *Engine) persistOutput() {
	if e.cfg.TestFileOutputPath == "" || e.cfg.TestFileOutputPath == e.cfg.TestCodeFile {
		return
	}
	data, err := os.ReadFile(e.cfg.TestCodeFile)
	if err != nil {
		return
	}
	if err := os.WriteFile(e.cfg.TestFileOutputPath, data, 0644); err != nil {
		logger.Warn("engine: could not mirror test file to %s: %v", e.cfg.TestFileOutputPath, err)
	}
}

func (e *Engine) record(a report.Attempt) {
	a.PromptTokens = e.tokens.prompt
	a.CompletionTokens = e.tokens.completion
	if err := e.sink.Append(a); err != nil {
		logger.Error("engine: report sink append failed: %v", err)
	}
}

func (e *Engine) recordInfo(label string) {
	e.record(report.Attempt{
		Label:     label,
		Status:    report.StatusInfo,
		LinePct:   e.coverage.LinePct,
		BranchPct: e.coverage.BranchPct,
	})
}

func firstLines(s string, n int) string {
	lines := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines++
			if lines == n {
				return s[:i]
			}
		}
	}
	return s
}
