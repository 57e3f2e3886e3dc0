package prompt

import (
	"fmt"
	"strings"

	"github.com/covergen/covergen/internal/llmgateway"
)

// BuildRepair composes the repair prompt for one round's failed tests.
// Two variants exist: the plain failed-test-feedback form, and an
// MCTS-flavored form that additionally asks the model to enumerate
// candidate fixes and commit to one.
func BuildRepair(ctx *Context, failed []FailedTest, mcts bool) (llmgateway.Messages, error) {
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

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\nThe following generated tests failed validation:\n\n")
	for i, f := range failed {
		fmt.Fprintf(&b, "--- failed test %d (%s) ---\n", i+1, f.Test.TestName)
		b.WriteString(f.Test.TestCode)
		b.WriteString("\n\nError:\n")
		b.WriteString(f.ErrorMessage)
		b.WriteString("\n\n")
	}

	if mcts {
		b.WriteString(`For each failed test, enumerate the plausible fixes (wrong import,
wrong assertion value, nonexistent symbol, wrong setup), evaluate which one
the error message supports best, then apply only that fix.
`)
	} else {
		b.WriteString("Fix each failed test so it compiles and passes. Keep the tested behavior intact.\n")
	}
	b.WriteString("\n")
	b.WriteString(buildExtras(ctx))
	b.WriteString(contract)

	return llmgateway.Messages{System: system, User: b.String()}, nil
}
