// Package prompt composes the system/user message pairs sent to the LLM:
// generation prompts guided by paths and missed coverage, and repair
// prompts carrying failed tests and their error excerpts.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

// render executes a template over vars, failing loudly on any variable the
// template names but vars does not carry.
func render(name, tmpl string, vars map[string]string) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("prompt: template %s is malformed: %w", name, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("prompt: template %s missing variable: %w", name, err)
	}
	return b.String(), nil
}

// NumberLines prefixes each line with its 1-based line number, the form the
// model needs to cite missed lines back.
func NumberLines(text string) string {
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%d: %s", i+1, l)
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

const systemTemplate = `You are an expert {{.language}} unit-test engineer. You write small, focused,
compilable test methods that exercise specific execution paths of the class
under test. You respond with YAML only, never prose.`

// outputContract is the fixed reply schema appended to every prompt.
const outputContract = `Respond with a YAML document and nothing else:

language: {{.language}}
new_tests:
- test_name: <method name>
  test_behavior: <one-line description of the behavior under test>
  test_code: |-
    <one complete, compilable test method>
  new_imports_code: |-
    <zero or more import lines required by the test, or empty>
`
