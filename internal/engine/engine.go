// Package engine drives the closed loop: analyze the class, pick paths,
// prompt the model, validate what comes back, repair what failed, measure
// coverage, and stop when a stop condition fires.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/covergen/covergen/internal/ast"
	"github.com/covergen/covergen/internal/cfgbuild"
	"github.com/covergen/covergen/internal/config"
	"github.com/covergen/covergen/internal/coverage"
	"github.com/covergen/covergen/internal/integrator"
	"github.com/covergen/covergen/internal/llmgateway"
	"github.com/covergen/covergen/internal/logger"
	"github.com/covergen/covergen/internal/pathselect"
	"github.com/covergen/covergen/internal/prompt"
	"github.com/covergen/covergen/internal/report"
	"github.com/covergen/covergen/internal/runner"
)

// maxCompletionTokens bounds every chat-completion call.
const maxCompletionTokens = 4096

// Components are the external collaborators the engine drives. Each is an
// interface or small struct so tests can substitute fakes.
type Components struct {
	Config   *config.Config
	FrontEnd ast.FrontEnd
	Gateway  llmgateway.Gateway
	Runner   *runner.Runner
	Parser   coverage.Parser
	Sink     *report.Sink

	// Rand biases path-selection tie-breaks; nil keeps selection
	// deterministic.
	Rand *rand.Rand
}

// Engine is the iteration controller. All state is confined to one run;
// nothing persists across runs.
type Engine struct {
	cfg      *config.Config
	frontEnd ast.FrontEnd
	gateway  llmgateway.Gateway
	runner   *runner.Runner
	parser   coverage.Parser
	sink     *report.Sink
	selector *pathselect.Selector
	strategy prompt.Strategy

	// Built once per SourceUnit at run start.
	unit         *ast.ParsedUnit
	methodCFGs   []*cfgbuild.MethodCFG
	methodPaths  map[string][]cfgbuild.Path // keyed by method name
	undetermined []string

	// Run-scoped mutable state.
	history      pathselect.History
	iter         int
	noGainStreak int
	coverage     *coverage.Coverage
	failed       []prompt.FailedTest
	deps         string
	tokens       tokenCounter
}

type tokenCounter struct {
	prompt     int
	completion int
}

// New wires an Engine from its components.
func New(c Components) *Engine {
	return &Engine{
		cfg:      c.Config,
		frontEnd: c.FrontEnd,
		gateway:  c.Gateway,
		runner:   c.Runner,
		parser:   c.Parser,
		sink:     c.Sink,
		selector: pathselect.New(c.Config.PathSelector.MaxVisit, c.Config.PathSelector.Alpha, c.Rand),
		strategy: prompt.NewStrategy(c.Config.PromptType),
		history:  make(pathselect.History),
	}
}

// Run executes the full generate-validate-repair-measure loop until a stop
// condition. The returned error is non-nil only for fatal conditions
// (gateway failure, stale report, setup failure); a run that merely missed
// its coverage target returns nil.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.setup(ctx); err != nil {
		return err
	}

	cov, err := e.measure(ctx)
	if err != nil {
		return err
	}
	e.coverage = cov
	logger.Info("engine: initial coverage %.1f%% lines, %.1f%% branches",
		cov.LinePct*100, cov.BranchPct*100)

	target := float64(e.cfg.TargetCoverage) / 100
	for {
		switch {
		case e.coverage.LinePct >= target:
			logger.Info("engine: coverage target %d%% reached, stopping", e.cfg.TargetCoverage)
			return nil
		case e.iter >= e.cfg.MaximumIterations:
			logger.Info("engine: iteration limit %d reached, stopping", e.cfg.MaximumIterations)
			return nil
		case e.noGainStreak >= e.cfg.NoCoverageIncreaseIterations:
			logger.Info("engine: no coverage gain for %d iterations, stopping", e.noGainStreak)
			return nil
		}

		before := *e.coverage
		if err := e.iterate(ctx); err != nil {
			return err
		}

		if e.coverage.LinePct > before.LinePct || e.coverage.BranchPct > before.BranchPct {
			e.noGainStreak = 0
		} else {
			e.noGainStreak++
		}
		e.iter++
	}
}

// setup performs the once-per-SourceUnit analysis: parse, per-method CFGs,
// path enumeration, the dependency preamble, and the test-file skeleton if
// the test file is empty or absent.
func (e *Engine) setup(ctx context.Context) error {
	data, err := os.ReadFile(e.cfg.SourceCodeFile)
	if err != nil {
		return fmt.Errorf("engine: failed to read source file: %w", err)
	}

	unit := ast.SourceUnit{
		Path:     e.cfg.SourceCodeFile,
		Text:     string(data),
		Language: languageOf(e.cfg.SourceCodeFile),
	}
	e.unit, err = e.frontEnd.Parse(unit)
	if err != nil {
		return fmt.Errorf("engine: failed to parse source unit: %w", err)
	}

	builder := cfgbuild.NewBuilder(e.unit)
	e.methodCFGs, e.undetermined = builder.BuildAll()
	if len(e.undetermined) > 0 {
		logger.Info("engine: %d methods in the to-be-determined bucket: %v",
			len(e.undetermined), e.undetermined)
	}

	pathTimeout := time.Duration(e.cfg.Timeouts.PathEnumerationSeconds) * time.Second
	e.methodPaths = make(map[string][]cfgbuild.Path, len(e.methodCFGs))
	for _, cfg := range e.methodCFGs {
		paths := cfgbuild.EnumeratePaths(cfg, pathTimeout)
		e.methodPaths[cfg.Name] = paths
		logger.Debug("engine: method %s complexity %d, %d independent paths",
			cfg.Name, cfg.Complexity, len(paths))
	}

	if err := e.ensureTestFile(); err != nil {
		return err
	}
	e.deps = e.dependencyPreamble(ctx)
	return nil
}

// ensureTestFile synthesizes the skeleton when the configured test file is
// missing or empty.
func (e *Engine) ensureTestFile() error {
	data, err := os.ReadFile(e.cfg.TestCodeFile)
	if err == nil && strings.TrimSpace(string(data)) != "" {
		return nil
	}
	source, err := os.ReadFile(e.cfg.SourceCodeFile)
	if err != nil {
		return fmt.Errorf("engine: failed to read source file for skeleton: %w", err)
	}
	className := coverage.ClassNameFromSource(e.cfg.SourceCodeFile)
	skeleton := integrator.Skeleton(string(source), className, e.cfg.JUnitVersion)
	if err := os.WriteFile(e.cfg.TestCodeFile, []byte(skeleton), 0644); err != nil {
		return fmt.Errorf("engine: failed to write test skeleton: %w", err)
	}
	logger.Info("engine: synthesized %d-byte test skeleton at %s", len(skeleton), e.cfg.TestCodeFile)
	return nil
}

// dependencyPreamble captures the dependency-listing command's stdout once,
// stripping build-tool noise line by line.
func (e *Engine) dependencyPreamble(ctx context.Context) string {
	if e.cfg.TestDependencyCommand == "" {
		return ""
	}
	timeout := time.Duration(e.cfg.Timeouts.AnalysisCommandSeconds) * time.Second
	res, err := e.runner.Run(ctx, e.cfg.TestDependencyCommand, e.cfg.TestCodeCommandDir, timeout)
	if err != nil || res.ExitCode != 0 {
		logger.Warn("engine: dependency command failed, proceeding without dependency list")
		return ""
	}
	var out []string
	for _, l := range strings.Split(res.Stdout, "\n") {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || strings.HasPrefix(trimmed, "[INFO]") || strings.HasPrefix(trimmed, ":test") {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}

// measure runs the test command once and parses the freshly written
// coverage report. A stale or missing report is fatal.
func (e *Engine) measure(ctx context.Context) (*coverage.Coverage, error) {
	timeout := time.Duration(e.cfg.Timeouts.GenerationCommandSeconds) * time.Second
	start := time.Now()
	res, err := e.runner.Run(ctx, e.cfg.TestExecutionCommand, e.cfg.TestCodeCommandDir, timeout)
	if err != nil {
		return nil, fmt.Errorf("engine: test command failed to start: %w", err)
	}
	if res.ExitCode != 0 {
		logger.Warn("engine: measure run exited %d; the report may cover a failing suite", res.ExitCode)
	}
	cov, err := e.parser.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("engine: coverage measurement failed: %w", err)
	}
	return cov, nil
}

func languageOf(path string) string {
	switch {
	case strings.HasSuffix(path, ".java"):
		return "java"
	case strings.HasSuffix(path, ".py"):
		return "python"
	case strings.HasSuffix(path, ".cs"):
		return "csharp"
	default:
		return "java"
	}
}
