package llmgateway

import (
	"strings"

	"github.com/covergen/covergen/internal/logger"
)

// GeneratedTest is one element of the model's new_tests list.
type GeneratedTest struct {
	TestName       string `yaml:"test_name"`
	TestBehavior   string `yaml:"test_behavior"`
	TestCode       string `yaml:"test_code"`
	NewImportsCode string `yaml:"new_imports_code"`
}

// replyDocument is the full YAML document contract: top-level key new_tests.
type replyDocument struct {
	Language string          `yaml:"language"`
	NewTests []GeneratedTest `yaml:"new_tests"`
}

// ParseNewTests extracts the generated tests from a raw model reply. An
// unparseable reply yields an empty list, never an error: the iteration
// simply produces no attempts and moves on.
func ParseNewTests(text string) []GeneratedTest {
	doc, ok := loadTolerantYAML(text)
	if !ok {
		logger.Warn("llmgateway: could not recover a YAML document from the model reply, returning no tests")
		return nil
	}

	var out []GeneratedTest
	for _, t := range doc.NewTests {
		if strings.TrimSpace(t.TestCode) == "" {
			continue
		}
		// Missing fields degrade to empty strings; only test_code is
		// indispensable.
		out = append(out, GeneratedTest{
			TestName:       strings.TrimSpace(t.TestName),
			TestBehavior:   strings.TrimSpace(t.TestBehavior),
			TestCode:       strings.Trim(t.TestCode, "\n"),
			NewImportsCode: strings.TrimSpace(t.NewImportsCode),
		})
	}
	return out
}
