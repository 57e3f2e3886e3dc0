package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/covergen/covergen/internal/cfgbuild"
	"github.com/covergen/covergen/internal/llmgateway"
)

// Context carries everything a strategy may embed into a prompt. Strategies
// pick the fields they need; unused fields are simply not rendered.
type Context struct {
	Language   string
	ClassName  string
	SourceCode string
	TestCode   string

	LinePct   float64
	BranchPct float64

	// SelectedPaths are the carrier paths the selector picked this
	// iteration, one prompt block each (duplicates already collapsed).
	SelectedPaths []cfgbuild.Path
	// SimpleTargets represent complexity-1 methods by their missed lines.
	SimpleTargets []cfgbuild.SimpleTarget
	// BranchSites drive the branch-coverage guidance section.
	BranchSites []cfgbuild.BranchSite

	TestDependencies       string
	IncludedFiles          string
	AdditionalInstructions string
}

// FailedTest pairs a generated test with the error excerpt its validation
// produced; the repair prompt embeds both.
type FailedTest struct {
	Test         llmgateway.GeneratedTest
	ErrorMessage string
}

// Strategy builds the generation prompt for one iteration. The recognized
// names mirror the prompt_type configuration values.
type Strategy interface {
	Name() string
	Build(ctx *Context) (llmgateway.Messages, error)
}

// NewStrategy resolves a prompt_type tag to its Strategy. Unknown names
// fall back to the coverage strategy.
func NewStrategy(name string) Strategy {
	switch name {
	case "baseline":
		return &BaselineStrategy{}
	case "coverage", "":
		return &CoverageStrategy{}
	case "control":
		return &ControlStrategy{}
	case "symprompt":
		return &SympromptStrategy{}
	default:
		return &CoverageStrategy{}
	}
}

// commonVars assembles the variable set shared by every template.
func commonVars(ctx *Context) map[string]string {
	language := ctx.Language
	if language == "" {
		language = "java"
	}
	return map[string]string{
		"language":        language,
		"class_name":      ctx.ClassName,
		"source_code":     ctx.SourceCode,
		"source_numbered": NumberLines(ctx.SourceCode),
		"test_code":       ctx.TestCode,
		"test_numbered":   NumberLines(ctx.TestCode),
	}
}

func systemMessage(ctx *Context) (string, error) {
	return render("system", systemTemplate, commonVars(ctx))
}

const headerTemplate = `Class under test ({{.class_name}}), with line numbers:

{{.source_numbered}}

Current test file:

{{.test_numbered}}
`

// buildHeader renders the source/test-file preamble common to every
// generation prompt.
func buildHeader(ctx *Context) (string, error) {
	return render("header", headerTemplate, commonVars(ctx))
}

// buildCoverageSummary renders the current line and branch percentages.
func buildCoverageSummary(ctx *Context) string {
	return fmt.Sprintf("Current coverage: %.1f%% lines, %.1f%% branches.\n",
		ctx.LinePct*100, ctx.BranchPct*100)
}

// buildPathBlocks renders one request block per selected path, and one
// missed-lines block per complexity-1 method.
func buildPathBlocks(ctx *Context) string {
	var b strings.Builder
	for _, p := range ctx.SelectedPaths {
		fmt.Fprintf(&b, "Please generate test case for method %s to cover the path: %s\n",
			p.MethodName, p.ConditionTrace)
	}
	for _, t := range ctx.SimpleTargets {
		fmt.Fprintf(&b, "Please generate test case for method %s to cover lines %s\n",
			t.MethodName, joinInts(t.MissedLines))
	}
	return b.String()
}

// buildBranchGuidance renders per-branch test-condition hints for every
// missed branch site: condition truth values for conditionals, enter/skip
// hints for loops, trigger/avoid hints for exception edges.
func buildBranchGuidance(sites []cfgbuild.BranchSite) string {
	if len(sites) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("=== Branch Coverage Guidance ===\n")
	for _, s := range sites {
		cond := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s.Condition), "{"))
		switch s.Kind {
		case "if_statement":
			fmt.Fprintf(&b, "Line %d: Test case where condition '%s' evaluates to True, and one where it evaluates to False.\n", s.Line, cond)
		case "for_statement", "while_statement":
			fmt.Fprintf(&b, "Line %d: Test case that enters the loop '%s', and one that skips it.\n", s.Line, cond)
		case "try_statement":
			fmt.Fprintf(&b, "Line %d: Test case that triggers the exception in '%s', and one that avoids it.\n", s.Line, cond)
		default:
			fmt.Fprintf(&b, "Line %d: Cover both outcomes of '%s'.\n", s.Line, cond)
		}
	}
	return b.String()
}

// buildExtras renders the optional user-supplied sections.
func buildExtras(ctx *Context) string {
	var b strings.Builder
	if ctx.TestDependencies != "" {
		fmt.Fprintf(&b, "Available test dependencies:\n%s\n\n", ctx.TestDependencies)
	}
	if ctx.IncludedFiles != "" {
		fmt.Fprintf(&b, "Additional project files for context:\n%s\n\n", ctx.IncludedFiles)
	}
	if ctx.AdditionalInstructions != "" {
		fmt.Fprintf(&b, "Additional instructions:\n%s\n\n", ctx.AdditionalInstructions)
	}
	return b.String()
}

func buildContract(ctx *Context) (string, error) {
	return render("contract", outputContract, commonVars(ctx))
}

func joinInts(nums []int) string {
	sorted := append([]int(nil), nums...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}
