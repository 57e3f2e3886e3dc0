package coverage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jacocoCSV = `GROUP,PACKAGE,CLASS,INSTRUCTION_MISSED,INSTRUCTION_COVERED,BRANCH_MISSED,BRANCH_COVERED,LINE_MISSED,LINE_COVERED,COMPLEXITY_MISSED,COMPLEXITY_COVERED,METHOD_MISSED,METHOD_COVERED
demo,com.example,Guard,10,30,1,3,2,8,1,3,0,2
demo,com.example,Other,5,5,2,2,5,5,2,2,1,1
`

const jacocoHTML = `<html><body><pre class="source lang-java linenums">
<span class="fc" id="L1">public class Guard {</span>
<span class="fc" id="L2">    public int f(int x) {</span>
<span class="pc bpc" id="L3">        if (x &gt; 0) {</span>
<span class="nc" id="L4">            return 1;</span>
<span class="fc bnc" id="L5">        }</span>
<span class="fc" id="L6">        return 0;</span>
</pre></body></html>`

func writeReport(t *testing.T, dir string) (csvPath string) {
	t.Helper()
	csvPath = filepath.Join(dir, "jacoco.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(jacocoCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Guard.html"), []byte(jacocoHTML), 0644))
	return csvPath
}

func TestJacocoParse(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeReport(t, dir)

	p := NewJacocoParser(Options{ReportPath: csvPath, ClassName: "Guard"})
	cov, err := p.Parse(time.Now().Add(-time.Minute))
	require.NoError(t, err)

	assert.InDelta(t, 0.8, cov.LinePct, 1e-9, "8 covered of 10 lines")
	assert.InDelta(t, 0.75, cov.BranchPct, 1e-9, "3 covered of 4 branches")

	// missed lines = nc ∪ pc, missed branches = bnc ∪ bpc.
	assert.True(t, cov.MissedLines[3])
	assert.True(t, cov.MissedLines[4])
	assert.False(t, cov.MissedLines[6])
	assert.True(t, cov.MissedBranches[3])
	assert.True(t, cov.MissedBranches[5])
	assert.False(t, cov.MissedBranches[4])
}

func TestJacocoStaleReportIsFatal(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeReport(t, dir)

	p := NewJacocoParser(Options{ReportPath: csvPath, ClassName: "Guard"})
	_, err := p.Parse(time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.IsType(t, &ErrStaleReport{}, err)
}

func TestJacocoMissingReportIsFatal(t *testing.T) {
	p := NewJacocoParser(Options{ReportPath: "/nonexistent/jacoco.csv", ClassName: "Guard"})
	_, err := p.Parse(time.Now().Add(-time.Minute))
	require.Error(t, err)
	assert.IsType(t, &ErrStaleReport{}, err)
}

func TestJacocoUnknownClass(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeReport(t, dir)

	p := NewJacocoParser(Options{ReportPath: csvPath, ClassName: "Missing"})
	_, err := p.Parse(time.Now().Add(-time.Minute))
	assert.Error(t, err)
}

func TestJacocoMissingHTMLDegrades(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "jacoco.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(jacocoCSV), 0644))

	p := NewJacocoParser(Options{ReportPath: csvPath, ClassName: "Guard"})
	cov, err := p.Parse(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, cov.MissedLines, "no html page means no missed-line detail")
	assert.InDelta(t, 0.8, cov.LinePct, 1e-9, "totals still available from the csv")
}

func TestClassNameFromSource(t *testing.T) {
	assert.Equal(t, "Guard", ClassNameFromSource("/project/src/main/java/com/example/Guard.java"))
	assert.Equal(t, "calc", ClassNameFromSource("calc.py"))
}

func TestNewParserRejectsUnknownBackend(t *testing.T) {
	_, err := NewParser(Options{Type: "cobertura"})
	assert.Error(t, err)
}

func TestRatioClampsAndZeroes(t *testing.T) {
	assert.Equal(t, 0.0, ratio(0, 0), "division by zero yields 0")
	assert.Equal(t, 1.0, ratio(5, 0))
	assert.Equal(t, 0.0, ratio(0, 5))
	assert.InDelta(t, 0.5, ratio(2, 2), 1e-9)
}
