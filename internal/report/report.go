// Package report writes machine-readable summaries of a run as YAML.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/tourtiles/internal/batch"
	"gopkg.in/yaml.v3"
)

// File is the outcome for one file.
type File struct {
	Path    string `yaml:"path"`
	Room    string `yaml:"room,omitempty"`
	Status  string `yaml:"status"`
	Error   string `yaml:"error,omitempty"`
	Elapsed string `yaml:"elapsed,omitempty"`
}

// Job summarizes one job of a rotate run.
type Job struct {
	Name    string   `yaml:"name"`
	Roots   []string `yaml:"roots"`
	Missing []string `yaml:"missing,omitempty"` // expected files that were absent
	Error   string   `yaml:"error,omitempty"`
	Files   []File   `yaml:"files"`
}

// Run is the top-level report document.
type Run struct {
	Command   string `yaml:"command"`
	Timestamp string `yaml:"timestamp"`
	Apply     bool   `yaml:"apply"`
	Jobs      []Job  `yaml:"jobs,omitempty"`
	Markers   any    `yaml:"markers,omitempty"`
}

// NewRun starts a report for command.
func NewRun(command string, apply bool, now time.Time) *Run {
	return &Run{
		Command:   command,
		Timestamp: now.Format(time.RFC3339),
		Apply:     apply,
	}
}

// Files converts batch results.
func Files(results []batch.Result) []File {
	out := make([]File, 0, len(results))
	for _, r := range results {
		f := File{Path: r.Task.Path, Room: r.Task.Room, Status: string(r.Status)}
		if r.Err != nil {
			f.Error = r.Err.Error()
		}
		if r.Elapsed > 0 {
			f.Elapsed = r.Elapsed.Round(time.Millisecond).String()
		}
		out = append(out, f)
	}
	return out
}

// Marshal renders the report.
func (r *Run) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// Save writes the report to path, creating parent directories.
func (r *Run) Save(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
