package coverage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/covergen/covergen/internal/logger"
)

// JacocoParser reads a jacoco CSV summary plus the companion per-class HTML
// page. The CSV carries the line/branch totals; the HTML page carries the
// per-line status classes the missed sets are built from.
type JacocoParser struct {
	csvPath   string
	htmlPath  string
	className string
}

// NewJacocoParser builds the jacoco backend from Options. When no HTML path
// is configured, the per-class page is expected next to the CSV under the
// class name.
func NewJacocoParser(opts Options) *JacocoParser {
	htmlPath := opts.HTMLReportPath
	if htmlPath == "" {
		htmlPath = filepath.Join(filepath.Dir(opts.ReportPath), opts.ClassName+".html")
	}
	return &JacocoParser{
		csvPath:   opts.ReportPath,
		htmlPath:  htmlPath,
		className: opts.ClassName,
	}
}

// ClassNameFromSource derives the jacoco lookup name from the source file
// path: the basename with its extension stripped.
func ClassNameFromSource(sourcePath string) string {
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Parse implements Parser.
func (p *JacocoParser) Parse(notBefore time.Time) (*Coverage, error) {
	if err := verifyReportFresh(p.csvPath, notBefore); err != nil {
		return nil, err
	}

	cov := NewCoverage()
	if err := p.parseCSV(cov); err != nil {
		return nil, err
	}
	if err := p.parseHTML(cov); err != nil {
		return nil, err
	}
	return cov, nil
}

// verifyReportFresh asserts the report was rewritten after the test command
// started. A missing or stale report means the build never regenerated it,
// and any numbers in it belong to a previous run.
func verifyReportFresh(path string, notBefore time.Time) error {
	info, err := os.Stat(path)
	if err != nil {
		return &ErrStaleReport{Path: path}
	}
	if !info.ModTime().After(notBefore) {
		return &ErrStaleReport{Path: path}
	}
	return nil
}

// parseCSV locates the class row and fills in the line/branch percentages.
func (p *JacocoParser) parseCSV(cov *Coverage) error {
	f, err := os.Open(p.csvPath)
	if err != nil {
		return fmt.Errorf("coverage: failed to open jacoco csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("coverage: failed to read jacoco csv: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("coverage: jacoco csv %s is empty", p.csvPath)
	}

	col := indexColumns(records[0])
	required := []string{"CLASS", "LINE_MISSED", "LINE_COVERED", "BRANCH_MISSED", "BRANCH_COVERED"}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return fmt.Errorf("coverage: jacoco csv missing column %s", name)
		}
	}

	for _, row := range records[1:] {
		if row[col["CLASS"]] != p.className {
			continue
		}
		lineMissed := atoiField(row, col, "LINE_MISSED")
		lineCovered := atoiField(row, col, "LINE_COVERED")
		branchMissed := atoiField(row, col, "BRANCH_MISSED")
		branchCovered := atoiField(row, col, "BRANCH_COVERED")

		cov.LinePct = ratio(lineCovered, lineMissed)
		cov.BranchPct = ratio(branchCovered, branchMissed)
		return nil
	}
	return fmt.Errorf("coverage: class %s not found in jacoco csv %s", p.className, p.csvPath)
}

func indexColumns(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	return col
}

func atoiField(row []string, col map[string]int, name string) int {
	idx := col[name]
	if idx >= len(row) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(row[idx]))
	if err != nil {
		return 0
	}
	return n
}

// parseHTML walks the per-class page's line spans. Each source line is
// rendered as <span id="L<line>" class="...">; the class attribute carries
// the status tokens: nc (not covered), pc (partially covered), fc (fully
// covered), bnc (branch not covered), bpc (branch partially covered).
// missed lines = nc ∪ pc, missed branches = bnc ∪ bpc.
func (p *JacocoParser) parseHTML(cov *Coverage) error {
	f, err := os.Open(p.htmlPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Totals alone still drive the loop; without the page the
			// missed sets stay empty and path guidance degrades.
			logger.Warn("coverage: jacoco html report %s not found, missed-line sets unavailable", p.htmlPath)
			return nil
		}
		return fmt.Errorf("coverage: failed to open jacoco html report: %w", err)
	}
	defer f.Close()

	z := html.NewTokenizer(f)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return nil // io.EOF ends the walk
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "span" || !hasAttr {
				continue
			}
			var id, class string
			for {
				k, v, more := z.TagAttr()
				switch string(k) {
				case "id":
					id = string(v)
				case "class":
					class = string(v)
				}
				if !more {
					break
				}
			}
			line, ok := lineFromSpanID(id)
			if !ok {
				continue
			}
			for _, token := range strings.Fields(class) {
				switch token {
				case "nc", "pc":
					cov.MissedLines[line] = true
				case "bnc", "bpc":
					cov.MissedBranches[line] = true
				}
			}
		}
	}
}

// lineFromSpanID parses the "L<line>" id convention of jacoco source pages.
func lineFromSpanID(id string) (int, bool) {
	if len(id) < 2 || id[0] != 'L' {
		return 0, false
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
