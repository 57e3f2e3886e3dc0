package prompt

import (
	"strings"

	"github.com/covergen/covergen/internal/llmgateway"
)

// BaselineStrategy asks for tests with no coverage feedback at all; the
// controller uses it for any iteration that starts with both line and
// branch coverage at 0%.
type BaselineStrategy struct{}

func (s *BaselineStrategy) Name() string { return "baseline" }

func (s *BaselineStrategy) Build(ctx *Context) (llmgateway.Messages, error) {
	return assemble(ctx,
		"Generate unit tests that exercise the public methods of the class under test.\n")
}

// CoverageStrategy embeds the missed-coverage summary and branch guidance
// but no concrete paths.
type CoverageStrategy struct{}

func (s *CoverageStrategy) Name() string { return "coverage" }

func (s *CoverageStrategy) Build(ctx *Context) (llmgateway.Messages, error) {
	var body strings.Builder
	body.WriteString(buildCoverageSummary(ctx))
	body.WriteString("Generate unit tests that raise line and branch coverage of the class under test.\n\n")
	body.WriteString(buildBranchGuidance(ctx.BranchSites))
	return assemble(ctx, body.String())
}

// ControlStrategy is the path-guided strategy for guided iterations: one
// request block per selected path plus the branch guidance section.
type ControlStrategy struct{}

func (s *ControlStrategy) Name() string { return "control" }

func (s *ControlStrategy) Build(ctx *Context) (llmgateway.Messages, error) {
	var body strings.Builder
	body.WriteString(buildCoverageSummary(ctx))
	body.WriteString("\n")
	body.WriteString(buildPathBlocks(ctx))
	body.WriteString("\n")
	body.WriteString(buildBranchGuidance(ctx.BranchSites))
	return assemble(ctx, body.String())
}

// SympromptStrategy requests one test per path with no coverage numbers,
// the path-only ablation.
type SympromptStrategy struct{}

func (s *SympromptStrategy) Name() string { return "symprompt" }

func (s *SympromptStrategy) Build(ctx *Context) (llmgateway.Messages, error) {
	return assemble(ctx, buildPathBlocks(ctx))
}

// assemble stitches the shared preamble, the strategy body, the optional
// user sections, and the output contract into the final message pair.
func assemble(ctx *Context, body string) (llmgateway.Messages, error) {
	system, err := systemMessage(ctx)
	if err != nil {
		return llmgateway.Messages{}, err
	}
	header, err := buildHeader(ctx)
	if err != nil {
		return llmgateway.Messages{}, err
	}
	contract, err := buildContract(ctx)
	if err != nil {
		return llmgateway.Messages{}, err
	}

	var user strings.Builder
	user.WriteString(header)
	user.WriteString("\n")
	user.WriteString(body)
	user.WriteString("\n")
	user.WriteString(buildExtras(ctx))
	user.WriteString(contract)

	return llmgateway.Messages{System: system, User: user.String()}, nil
}
