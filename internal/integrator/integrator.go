// Package integrator splices generated tests and imports into the target
// test file at computed insertion points, keeping the file coherent across
// repeated insertions within one iteration.
package integrator

import (
	"fmt"
	"strings"

	"github.com/covergen/covergen/internal/llmgateway"
)

// InsertionMeta locates where new code lands in the test file. Lines are
// 1-based; ImportsAfterLine 0 means the file has no import block.
type InsertionMeta struct {
	ImportsAfterLine      int
	InsertTestsBeforeLine int
	Indent                int
}

// Integrator owns the running insertion state for one test file. Both
// counters advance as code is spliced so a second insertion in the same
// pass stays aligned.
type Integrator struct {
	meta InsertionMeta
}

// New returns an Integrator positioned by meta.
func New(meta InsertionMeta) *Integrator {
	return &Integrator{meta: meta}
}

// Meta exposes the current (possibly advanced) insertion metadata.
func (it *Integrator) Meta() InsertionMeta {
	return it.meta
}

// ComputeInsertion derives the insertion metadata from the test file text:
// the last line of the final import statement, the first line of the last
// method-like declaration in the test class, and that line's indentation.
func ComputeInsertion(testFile string) (InsertionMeta, error) {
	lines := strings.Split(testFile, "\n")
	meta := InsertionMeta{}

	lastMethod := -1
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "using ") {
			meta.ImportsAfterLine = i + 1
		}
		if isMethodLike(trimmed) {
			lastMethod = i
		}
	}
	if lastMethod == -1 {
		return meta, fmt.Errorf("integrator: no method-like declaration found in test file")
	}

	// The declaration's first line includes any annotations stacked above
	// the signature.
	for lastMethod > 0 && strings.HasPrefix(strings.TrimSpace(lines[lastMethod-1]), "@") {
		lastMethod--
	}
	meta.InsertTestsBeforeLine = lastMethod + 1
	meta.Indent = leadingSpaces(lines[lastMethod])
	return meta, nil
}

// isMethodLike matches a test-class member signature: an access modifier
// opening a parameter list, not a class declaration or a field.
func isMethodLike(trimmed string) bool {
	for _, prefix := range []string{"public ", "protected ", "private ", "void ", "static "} {
		if strings.HasPrefix(trimmed, prefix) &&
			strings.Contains(trimmed, "(") &&
			!strings.Contains(trimmed, "class ") &&
			!strings.Contains(trimmed, ";") {
			return true
		}
	}
	return false
}

func leadingSpaces(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 4
		} else {
			break
		}
	}
	return n
}

// Insert splices one generated test (and its imports, if new) into content,
// returning the updated file text. The test body is re-indented to the
// detected indent; indentation is only ever increased, never stripped, so
// nested blocks keep their shape.
func (it *Integrator) Insert(content string, t llmgateway.GeneratedTest) (string, error) {
	if strings.TrimSpace(t.TestCode) == "" {
		return content, fmt.Errorf("integrator: generated test has empty test_code")
	}

	lines := strings.Split(content, "\n")
	if it.meta.InsertTestsBeforeLine < 1 || it.meta.InsertTestsBeforeLine > len(lines) {
		return content, fmt.Errorf("integrator: insertion line %d out of range (file has %d lines)",
			it.meta.InsertTestsBeforeLine, len(lines))
	}

	testLines := reindent(strings.Trim(t.TestCode, "\n"), it.meta.Indent)

	at := it.meta.InsertTestsBeforeLine - 1
	lines = spliceLines(lines, at, testLines)
	it.meta.InsertTestsBeforeLine += len(testLines)

	if imports := newImportLines(content, t.NewImportsCode); len(imports) > 0 {
		lines = spliceLines(lines, it.meta.ImportsAfterLine, imports)
		it.meta.ImportsAfterLine += len(imports)
		it.meta.InsertTestsBeforeLine += len(imports)
	}

	return strings.Join(lines, "\n"), nil
}

// reindent shifts a block of code so its least-indented line sits at
// indent. Lines already deeper than the target keep their extra depth.
func reindent(code string, indent int) []string {
	lines := strings.Split(code, "\n")

	minIndent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if n := leadingSpaces(l); minIndent == -1 || n < minIndent {
			minIndent = n
		}
	}
	if minIndent < 0 {
		minIndent = 0
	}

	shift := indent - minIndent
	if shift <= 0 {
		return lines
	}
	pad := strings.Repeat(" ", shift)
	out := make([]string, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			out[i] = l
			continue
		}
		out[i] = pad + l
	}
	return out
}

// newImportLines filters the generated import block down to lines not
// already present in the file.
func newImportLines(content, importsCode string) []string {
	if strings.TrimSpace(importsCode) == "" {
		return nil
	}
	var out []string
	for _, l := range strings.Split(importsCode, "\n") {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" {
			continue
		}
		if strings.Contains(content, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func spliceLines(lines []string, at int, insert []string) []string {
	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	out = append(out, lines[at:]...)
	return out
}
