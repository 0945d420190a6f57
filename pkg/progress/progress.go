// Package progress reports progress of batch rewrites.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Callback receives progress updates.
type Callback func(op string, current, total int, message string)

func noop(op string, current, total int, message string) {}

// Progress tracks how many items of a batch are finished. It is safe for
// concurrent use.
type Progress struct {
	Op    string
	Total int

	mu      sync.Mutex
	current int
	cb      Callback
}

// New creates a new Progress tracker.
func New(op string, total int, cb Callback) *Progress {
	if cb == nil {
		cb = noop
	}
	return &Progress{Op: op, Total: total, cb: cb}
}

// Increment advances the progress and calls the callback.
func (p *Progress) Increment(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	p.cb(p.Op, p.current, p.Total, message)
}

// Done marks the operation as complete.
func (p *Progress) Done(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.Total
	p.cb(p.Op, p.current, p.Total, message)
}

// Current returns the current progress value.
func (p *Progress) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Terminal renders a single-line progress bar.
type Terminal struct {
	mu          sync.Mutex
	writer      io.Writer
	op          string
	total       int
	lastLineLen int
	enabled     bool
}

// NewTerminal creates a progress bar on stderr.
func NewTerminal(op string, total int, enabled bool) *Terminal {
	return NewTerminalWriter(os.Stderr, op, total, enabled)
}

// NewTerminalWriter creates a progress bar on w.
func NewTerminalWriter(w io.Writer, op string, total int, enabled bool) *Terminal {
	return &Terminal{writer: w, op: op, total: total, enabled: enabled}
}

// Callback returns a Callback that redraws the bar.
func (t *Terminal) Callback() Callback {
	return func(op string, current, total int, message string) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.enabled {
			return
		}
		// The reported total wins; glob expansion may change it after construction.
		if total > 0 {
			t.total = total
		}
		t.render(current, message)
		if current >= t.total {
			fmt.Fprintln(t.writer)
			t.lastLineLen = 0
		}
	}
}

func (t *Terminal) render(current int, message string) {
	total := t.total
	if total <= 0 {
		total = 1
	}
	if current > total {
		current = total
	}

	const barWidth = 30
	filled := barWidth * current / total
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)

	clear := "\r"
	if t.lastLineLen > 0 {
		clear = "\r" + strings.Repeat(" ", t.lastLineLen) + "\r"
	}

	line := fmt.Sprintf("%s [%s] %d/%d (%.0f%%)", t.op, bar, current, total, float64(current)/float64(total)*100)
	if message != "" {
		line += " " + message
	}
	fmt.Fprint(t.writer, clear+line)
	t.lastLineLen = len(line)
}

// SetEnabled enables or disables the progress bar.
func (t *Terminal) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}
