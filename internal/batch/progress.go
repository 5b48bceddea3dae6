package batch

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Progress prints one status line per processed file.
type Progress struct {
	startTime time.Time
	output    io.Writer
	results   []Result
	mu        sync.Mutex
	enabled   bool
}

// NewProgress creates a progress printer writing to stdout.
func NewProgress(enabled bool) *Progress {
	return NewProgressTo(os.Stdout, enabled)
}

// NewProgressTo creates a progress printer writing to w.
func NewProgressTo(w io.Writer, enabled bool) *Progress {
	return &Progress{
		startTime: time.Now(),
		output:    w,
		enabled:   enabled,
	}
}

// Callback returns a ProgressFunc suitable for use with Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Update records a started or finished task.
func (p *Progress) Update(index, total int, task Task, result *Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if result == nil {
		if p.enabled {
			fmt.Fprintf(p.output, "[%d/%d] %s\n", index, total, task.Path)
		}
		return
	}

	p.results = append(p.results, *result)
	if !p.enabled {
		return
	}

	switch result.Status {
	case StatusDone:
		fmt.Fprintf(p.output, "  ✅ rotated %s\n", task.Path)
	case StatusPlanned:
		fmt.Fprintf(p.output, "  🔎 would rotate %s\n", task.Path)
	case StatusSkipped:
		fmt.Fprintf(p.output, "  ⏭️  already rotated %s\n", task.Path)
	case StatusFailed:
		fmt.Fprintf(p.output, "  ❌ %s: %v\n", task.Path, result.Err)
	case StatusCancelled:
		fmt.Fprintf(p.output, "  ⛔ cancelled %s\n", task.Path)
	}
}

// Summary returns a summary string of the completed work.
func (p *Progress) Summary() string {
	p.mu.Lock()
	c := Count(p.results)
	p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	line := fmt.Sprintf("Rotated %d, planned %d, skipped %d, failed %d", c.Done, c.Planned, c.Skipped, c.Failed)
	if c.Cancelled > 0 {
		line += fmt.Sprintf(", cancelled %d", c.Cancelled)
	}
	return line + fmt.Sprintf(" in %s", formatDuration(elapsed))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", mins, secs)
}
