package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covergen/covergen/internal/cfgbuild"
	"github.com/covergen/covergen/internal/llmgateway"
)

func sampleContext() *Context {
	return &Context{
		Language:   "java",
		ClassName:  "Guard",
		SourceCode: "public class Guard {\n    public int f(int x) { return x; }\n}",
		TestCode:   "public class GuardTest {\n}",
		LinePct:    0.4,
		BranchPct:  0.25,
		SelectedPaths: []cfgbuild.Path{
			{MethodName: "f", Label: "f_1_0", ConditionTrace: "if (x > 0) [true] -> return 1"},
		},
		SimpleTargets: []cfgbuild.SimpleTarget{
			{MethodName: "doubled", MissedLines: []int{4, 3}},
		},
		BranchSites: []cfgbuild.BranchSite{
			{Line: 3, Kind: "if_statement", Condition: "if (x > 0) {"},
			{Line: 7, Kind: "for_statement", Condition: "for (int i = 0; i < n; i++) {"},
		},
	}
}

func TestRenderFailsOnMissingVariable(t *testing.T) {
	_, err := render("t", "{{.does_not_exist}}", map[string]string{"language": "java"})
	require.Error(t, err, "strict renderer must fail loudly on missing variables")
}

func TestNumberLines(t *testing.T) {
	numbered := NumberLines("a\nb\nc")
	assert.Equal(t, "1: a\n2: b\n3: c", numbered)
}

func TestControlStrategyEmbedsPathBlocks(t *testing.T) {
	msgs, err := (&ControlStrategy{}).Build(sampleContext())
	require.NoError(t, err)

	assert.Contains(t, msgs.User,
		"Please generate test case for method f to cover the path: if (x > 0) [true] -> return 1")
	assert.Contains(t, msgs.User,
		"Please generate test case for method doubled to cover lines 3, 4")
	assert.Contains(t, msgs.User, "Current coverage: 40.0% lines, 25.0% branches")
}

func TestBranchGuidanceHints(t *testing.T) {
	msgs, err := (&ControlStrategy{}).Build(sampleContext())
	require.NoError(t, err)

	assert.Contains(t, msgs.User, "=== Branch Coverage Guidance ===")
	assert.Contains(t, msgs.User, "condition 'if (x > 0)' evaluates to True")
	assert.Contains(t, msgs.User, "enters the loop")
}

func TestBaselineStrategyOmitsCoverage(t *testing.T) {
	msgs, err := (&BaselineStrategy{}).Build(sampleContext())
	require.NoError(t, err)

	assert.NotContains(t, msgs.User, "Current coverage")
	assert.NotContains(t, msgs.User, "Branch Coverage Guidance")
	assert.Contains(t, msgs.User, "public class Guard")
}

func TestSympromptStrategyOmitsPercentages(t *testing.T) {
	msgs, err := (&SympromptStrategy{}).Build(sampleContext())
	require.NoError(t, err)

	assert.NotContains(t, msgs.User, "Current coverage")
	assert.Contains(t, msgs.User, "Please generate test case for method f")
}

func TestEveryPromptCarriesOutputContract(t *testing.T) {
	for _, name := range []string{"baseline", "coverage", "control", "symprompt"} {
		msgs, err := NewStrategy(name).Build(sampleContext())
		require.NoError(t, err, name)
		assert.Contains(t, msgs.User, "new_tests:", name)
		assert.Contains(t, msgs.User, "test_code: |-", name)
		assert.NotEmpty(t, msgs.System, name)
	}
}

func TestSourceIsNumberedInPrompt(t *testing.T) {
	msgs, err := (&CoverageStrategy{}).Build(sampleContext())
	require.NoError(t, err)
	assert.Contains(t, msgs.User, "1: public class Guard {")
}

func TestExtrasRendered(t *testing.T) {
	ctx := sampleContext()
	ctx.TestDependencies = "junit-4.13.2.jar"
	ctx.AdditionalInstructions = "Prefer parameterized tests."

	msgs, err := (&CoverageStrategy{}).Build(ctx)
	require.NoError(t, err)
	assert.Contains(t, msgs.User, "junit-4.13.2.jar")
	assert.Contains(t, msgs.User, "Prefer parameterized tests.")
}

func TestNewStrategyFallsBackToCoverage(t *testing.T) {
	assert.Equal(t, "coverage", NewStrategy("bogus").Name())
	assert.Equal(t, "coverage", NewStrategy("").Name())
}

func TestBuildRepairEmbedsFailures(t *testing.T) {
	failed := []FailedTest{
		{
			Test: llmgateway.GeneratedTest{
				TestName: "testNegative",
				TestCode: "@Test public void testNegative() { helper(); }",
			},
			ErrorMessage: "cannot find symbol: method helper()",
		},
	}

	msgs, err := BuildRepair(sampleContext(), failed, false)
	require.NoError(t, err)
	assert.Contains(t, msgs.User, "testNegative")
	assert.Contains(t, msgs.User, "cannot find symbol: method helper()")
	assert.Contains(t, msgs.User, "new_tests:")
	assert.False(t, strings.Contains(msgs.User, "enumerate the plausible fixes"))
}

func TestBuildRepairMCTSVariant(t *testing.T) {
	failed := []FailedTest{{Test: llmgateway.GeneratedTest{TestName: "t", TestCode: "x"}, ErrorMessage: "e"}}
	msgs, err := BuildRepair(sampleContext(), failed, true)
	require.NoError(t, err)
	assert.Contains(t, msgs.User, "enumerate the plausible fixes")
}
