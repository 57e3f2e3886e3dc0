package llmgateway

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// The long-text keys the model routinely emits as bare multiline values
// without a block-scalar marker, breaking strict YAML.
var longTextKeys = []string{"test_code", "new_imports_code"}

var (
	fenceRe      = regexp.MustCompile("(?s)```(?:yaml|yml)?\\s*\\n(.*?)```")
	looseFenceRe = regexp.MustCompile("(?s)```+(?:yaml|yml)?(.*?)(?:```+|$)")
	keyLineRe    = regexp.MustCompile(`^(\s*-?\s*)(test_name|test_behavior|test_code|new_imports_code|language|new_tests)\s*:\s*(.*)$`)
)

// loadTolerantYAML climbs the recovery ladder over a raw model reply:
// strip fences and parse; inject |- block scalars after bare long-text
// keys; re-extract with a looser fence regex; strip a stray brace pair;
// drop trailing lines until a parse lands; finally slice the
// language:..test_code: window. Only when every rung fails does it give up.
func loadTolerantYAML(text string) (replyDocument, bool) {
	body := stripFences(strings.TrimSpace(text))

	if doc, ok := tryParse(body); ok {
		return doc, true
	}
	if doc, ok := tryParse(injectBlockScalars(body)); ok {
		return doc, true
	}
	if m := looseFenceRe.FindStringSubmatch(text); m != nil {
		if doc, ok := tryParse(strings.TrimSpace(m[1])); ok {
			return doc, true
		}
	}
	braceless := strings.TrimSuffix(strings.TrimPrefix(body, "{"), "}")
	if braceless != body {
		if doc, ok := tryParse(strings.TrimSpace(braceless)); ok {
			return doc, true
		}
	}
	if doc, ok := dropTrailingLines(injectBlockScalars(body)); ok {
		return doc, true
	}
	if window, ok := sliceWindow(body); ok {
		if doc, ok := tryParse(injectBlockScalars(window)); ok {
			return doc, true
		}
	}
	return replyDocument{}, false
}

// stripFences removes a leading/enclosing markdown code fence if present.
func stripFences(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(strings.Trim(text, "`"))
}

// tryParse accepts a parse only when it recovered the reply shape: a
// new_tests list or at least a language tag.
func tryParse(body string) (replyDocument, bool) {
	var doc replyDocument
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
		return replyDocument{}, false
	}
	if doc.NewTests == nil && doc.Language == "" {
		return replyDocument{}, false
	}
	return doc, true
}

// injectBlockScalars rewrites bare multiline values under known long-text
// keys into |- block scalars, indenting the run of non-key lines that
// follows each such key.
func injectBlockScalars(body string) string {
	lines := strings.Split(body, "\n")
	var out []string
	for i := 0; i < len(lines); i++ {
		m := keyLineRe.FindStringSubmatch(lines[i])
		if m == nil || !isLongTextKey(m[2]) || hasBlockMarker(m[3]) {
			out = append(out, lines[i])
			continue
		}
		indent := m[1]
		out = append(out, indent+m[2]+": |-")
		if strings.TrimSpace(m[3]) != "" {
			out = append(out, indent+"  "+m[3])
		}
		for i+1 < len(lines) && !keyLineRe.MatchString(lines[i+1]) {
			i++
			out = append(out, indent+"  "+strings.TrimLeft(lines[i], " \t"))
		}
	}
	return strings.Join(out, "\n")
}

func isLongTextKey(key string) bool {
	for _, k := range longTextKeys {
		if k == key {
			return true
		}
	}
	return false
}

func hasBlockMarker(value string) bool {
	v := strings.TrimSpace(value)
	return strings.HasPrefix(v, "|") || strings.HasPrefix(v, ">")
}

// dropTrailingLines peels lines off the end until a parse both succeeds and
// recovers the reply shape.
func dropTrailingLines(body string) (replyDocument, bool) {
	lines := strings.Split(body, "\n")
	for len(lines) > 1 {
		lines = lines[:len(lines)-1]
		if doc, ok := tryParse(strings.Join(lines, "\n")); ok {
			return doc, true
		}
	}
	return replyDocument{}, false
}

// sliceWindow cuts the span from the language: line to the blank line
// after the last test_code: block, the narrowest region that can still
// carry a usable reply.
func sliceWindow(body string) (string, bool) {
	lines := strings.Split(body, "\n")
	start, lastCode := -1, -1
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if start == -1 && strings.HasPrefix(trimmed, "language:") {
			start = i
		}
		if strings.HasPrefix(trimmed, "test_code:") {
			lastCode = i
		}
	}
	if start == -1 || lastCode == -1 || lastCode < start {
		return "", false
	}
	end := len(lines)
	for i := lastCode + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n"), true
}
