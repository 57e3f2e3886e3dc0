// Package classify inspects a failed test command's combined output and
// decides what broke: the build, the clock, or the tests themselves.
package classify

import (
	"regexp"
	"strings"
)

// Kind is the failure category, checked in priority order: compile first,
// then timeout, then runtime/assertion.
type Kind string

const (
	KindCompile Kind = "compile"
	KindTimeout Kind = "timeout"
	KindRuntime Kind = "runtime"
)

// MaxDisplayLines caps the excerpt length; truncation from the head is
// marked with a leading ellipsis.
const MaxDisplayLines = 30

// Classification is the verdict plus the excerpt handed to the repair
// prompt.
type Classification struct {
	Kind    Kind
	Excerpt string
}

var (
	ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

	// Maven-style compilation banner up to the "N error(s)" summary line.
	compileBlockRe = regexp.MustCompile(`(?s)COMPILATION ERROR.*?\d+ errors?`)
	errorLineRe    = regexp.MustCompile(`(?m)^\[ERROR\].*$`)

	// JUnit failure block between <<< FAILURE! markers, or a stdlib-test
	// convention block between === FAILURES === fences.
	junitFailureRe  = regexp.MustCompile(`(?s)<<< FAILURE!.*?(?:<<< FAILURE!|\z)`)
	stdlibFailureRe = regexp.MustCompile(`(?s)=== FAILURES ===.*?(?:===|\z)`)
	failedLineRe    = regexp.MustCompile(`(?m)^.*FAILED.*$`)
)

// Classify analyzes the combined stdout/stderr of a failed run. ANSI
// escapes are stripped before any matching.
func Classify(output string) Classification {
	clean := ansiRe.ReplaceAllString(output, "")

	if isCompileFailure(clean) {
		return Classification{Kind: KindCompile, Excerpt: compileExcerpt(clean)}
	}
	if strings.Contains(clean, "Timeout") {
		return Classification{Kind: KindTimeout, Excerpt: "Timeout"}
	}
	return Classification{Kind: KindRuntime, Excerpt: runtimeExcerpt(clean)}
}

func isCompileFailure(output string) bool {
	for _, marker := range []string{"COMPILATION ERROR", "error: cannot find symbol", "compilation failed", "Compilation failure"} {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}

// compileExcerpt extracts the compiler's error block: the banner-to-summary
// window when present, else the first [ERROR] line, else a fixed string.
func compileExcerpt(output string) string {
	if m := compileBlockRe.FindString(output); m != "" {
		return capLines(m)
	}
	if m := errorLineRe.FindString(output); m != "" {
		return m
	}
	return "Compilation error"
}

// runtimeExcerpt extracts the test failure block: a <<< FAILURE! window, a
// === FAILURES === window, the first FAILED line, or a fixed string.
func runtimeExcerpt(output string) string {
	if m := junitFailureRe.FindString(output); m != "" {
		return capLines(m)
	}
	if m := stdlibFailureRe.FindString(output); m != "" {
		return capLines(m)
	}
	if m := failedLineRe.FindString(output); m != "" {
		return m
	}
	return "Test failures"
}

// capLines keeps the last MaxDisplayLines lines, prefixing "..." when the
// head was dropped.
func capLines(block string) string {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	if len(lines) <= MaxDisplayLines {
		return strings.Join(lines, "\n")
	}
	capped := append([]string{"..."}, lines[len(lines)-MaxDisplayLines:]...)
	return strings.Join(capped, "\n")
}
