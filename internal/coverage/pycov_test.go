package coverage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pycovJSON = `{
  "files": {
    "src/calc.py": {
      "missing_lines": [7, 9],
      "missing_branches": [[7, 8]],
      "summary": {
        "covered_lines": 8,
        "missing_lines": 2,
        "covered_branches": 3,
        "missing_branches": 1
      }
    }
  }
}`

func TestPycovParse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coverage.json")
	require.NoError(t, os.WriteFile(path, []byte(pycovJSON), 0644))

	p := NewPycovParser(Options{ReportPath: path, ClassName: "calc.py"})
	cov, err := p.Parse(time.Now().Add(-time.Minute))
	require.NoError(t, err)

	assert.True(t, cov.MissedLines[7])
	assert.True(t, cov.MissedLines[9])
	assert.True(t, cov.MissedBranches[7])
	assert.InDelta(t, 0.8, cov.LinePct, 1e-9)
	assert.InDelta(t, 0.75, cov.BranchPct, 1e-9)
}

func TestPycovUnknownFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coverage.json")
	require.NoError(t, os.WriteFile(path, []byte(pycovJSON), 0644))

	p := NewPycovParser(Options{ReportPath: path, ClassName: "other.py"})
	_, err := p.Parse(time.Now().Add(-time.Minute))
	assert.Error(t, err)
}

func TestPycovStaleReportIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coverage.json")
	require.NoError(t, os.WriteFile(path, []byte(pycovJSON), 0644))

	p := NewPycovParser(Options{ReportPath: path, ClassName: "calc.py"})
	_, err := p.Parse(time.Now().Add(time.Hour))
	assert.IsType(t, &ErrStaleReport{}, err)
}
