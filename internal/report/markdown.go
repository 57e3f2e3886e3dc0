package report

import (
	"fmt"
	"os"
	"strings"
)

// WriteMarkdown renders the attempt list as a human-readable run summary.
func WriteMarkdown(attempts []Attempt, className, outPath string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Test Generation Report: %s\n\n", className)

	final := finalCoverage(attempts)
	fmt.Fprintf(&b, "Final coverage: %.1f%% lines, %.1f%% branches\n\n",
		final.LinePct*100, final.BranchPct*100)

	pass, fail := 0, 0
	for _, a := range attempts {
		switch a.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		}
	}
	fmt.Fprintf(&b, "Attempts: %d passed, %d failed, %d total\n\n", pass, fail, len(attempts))

	b.WriteString("| Label | Status | Reason | Line % | Branch % |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, a := range attempts {
		fmt.Fprintf(&b, "| %s | %s | %s | %.1f | %.1f |\n",
			a.Label, a.Status, firstLine(a.Reason), a.LinePct*100, a.BranchPct*100)
	}

	for _, a := range attempts {
		if a.Status != StatusFail {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", a.Label)
		if a.Test != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n\n", a.Test)
		}
		if a.Stderr != "" {
			fmt.Fprintf(&b, "Error:\n\n```\n%s\n```\n", a.Stderr)
		}
	}

	return os.WriteFile(outPath, []byte(b.String()), 0644)
}

// finalCoverage picks the last INFO checkpoint, the run's closing measure.
func finalCoverage(attempts []Attempt) Attempt {
	var last Attempt
	for _, a := range attempts {
		if a.Status == StatusInfo {
			last = a
		}
	}
	return last
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
