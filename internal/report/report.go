// Package report is the append-only sink for per-attempt records: one
// Attempt per generated or repaired test, plus the INFO checkpoints the
// controller records after each measure step.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Status tags an Attempt record.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusInfo Status = "INFO"
)

// Attempt is one record in the run's report.
type Attempt struct {
	Label            string  `yaml:"label"`
	Status           Status  `yaml:"status"`
	Reason           string  `yaml:"reason,omitempty"`
	ExitCode         int     `yaml:"exit_code"`
	Stderr           string  `yaml:"stderr,omitempty"`
	StdoutExcerpt    string  `yaml:"stdout_excerpt,omitempty"`
	Test             string  `yaml:"test,omitempty"`
	LinePct          float64 `yaml:"line_pct"`
	BranchPct        float64 `yaml:"branch_pct"`
	PromptTokens     int     `yaml:"prompt_tokens,omitempty"`
	CompletionTokens int     `yaml:"completion_tokens,omitempty"`
}

// Sink accumulates attempts and persists them as a YAML list. The full
// list is rewritten on every append so a crash never loses more than the
// in-flight record.
type Sink struct {
	mu       sync.Mutex
	path     string
	attempts []Attempt
}

// NewSink returns a sink writing to path. An empty path keeps the sink
// in-memory only.
func NewSink(path string) *Sink {
	return &Sink{path: path}
}

// Append records one attempt and flushes the list to disk.
func (s *Sink) Append(a Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return s.flushLocked()
}

// Attempts returns a copy of the recorded attempts.
func (s *Sink) Attempts() []Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attempt(nil), s.attempts...)
}

func (s *Sink) flushLocked() error {
	if s.path == "" {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("report: failed to create report directory: %w", err)
		}
	}
	data, err := yaml.Marshal(s.attempts)
	if err != nil {
		return fmt.Errorf("report: failed to marshal attempts: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("report: failed to write report: %w", err)
	}
	return nil
}

// Load reads a previously written report file back into attempt records.
func Load(path string) ([]Attempt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: failed to read report file: %w", err)
	}
	var attempts []Attempt
	if err := yaml.Unmarshal(data, &attempts); err != nil {
		return nil, fmt.Errorf("report: failed to parse report file: %w", err)
	}
	return attempts, nil
}
