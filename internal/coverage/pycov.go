package coverage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// PycovParser reads a coverage.py JSON report (coverage json -o <path>).
// It surfaces the same four outputs as the jacoco backend; branch data is
// present only when the target project runs coverage.py with --branch.
type PycovParser struct {
	reportPath string
	fileName   string
}

// NewPycovParser builds the python-coverage backend from Options. The
// class-name option doubles as the report's file key (the source file the
// run targets).
func NewPycovParser(opts Options) *PycovParser {
	return &PycovParser{
		reportPath: opts.ReportPath,
		fileName:   opts.ClassName,
	}
}

// pycovFile mirrors the per-file block of coverage.py's JSON schema.
type pycovFile struct {
	MissingLines []int `json:"missing_lines"`
	Summary      struct {
		CoveredLines  int `json:"covered_lines"`
		MissingLines  int `json:"missing_lines"`
		MissingBranch int `json:"missing_branches"`
		CoveredBranch int `json:"covered_branches"`
	} `json:"summary"`
	MissingBranches [][]int `json:"missing_branches"`
}

type pycovReport struct {
	Files map[string]pycovFile `json:"files"`
}

// Parse implements Parser.
func (p *PycovParser) Parse(notBefore time.Time) (*Coverage, error) {
	if err := verifyReportFresh(p.reportPath, notBefore); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.reportPath)
	if err != nil {
		return nil, fmt.Errorf("coverage: failed to read pycov report: %w", err)
	}
	var report pycovReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("coverage: failed to decode pycov report: %w", err)
	}

	file, ok := p.lookupFile(report)
	if !ok {
		return nil, fmt.Errorf("coverage: file %s not found in pycov report %s", p.fileName, p.reportPath)
	}

	cov := NewCoverage()
	for _, line := range file.MissingLines {
		cov.MissedLines[line] = true
	}
	for _, pair := range file.MissingBranches {
		if len(pair) > 0 {
			cov.MissedBranches[pair[0]] = true
		}
	}
	cov.LinePct = ratio(file.Summary.CoveredLines, file.Summary.MissingLines)
	cov.BranchPct = ratio(file.Summary.CoveredBranch, file.Summary.MissingBranch)
	return cov, nil
}

// lookupFile matches the report's file keys against the configured name,
// tolerating path prefixes (coverage.py keys on relative paths).
func (p *PycovParser) lookupFile(report pycovReport) (pycovFile, bool) {
	if f, ok := report.Files[p.fileName]; ok {
		return f, true
	}
	for key, f := range report.Files {
		if baseNameMatches(key, p.fileName) {
			return f, true
		}
	}
	return pycovFile{}, false
}

func baseNameMatches(path, name string) bool {
	i := len(path) - len(name)
	if i < 0 {
		return false
	}
	if path[i:] != name {
		return false
	}
	return i == 0 || path[i-1] == '/' || path[i-1] == '\\'
}
