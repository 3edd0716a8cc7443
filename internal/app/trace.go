package app

import (
	"fmt"
	"io"
	"slices"
	"sync"
)

// Trace records the lines written by the demo subscribers and echoes each
// one to an output writer.
type Trace struct {
	mu    sync.Mutex
	out   io.Writer
	lines []string
}

// NewTrace creates a trace that echoes to out.
func NewTrace(out io.Writer) *Trace {
	if out == nil {
		out = io.Discard
	}
	return &Trace{out: out}
}

// Printf formats a line, records it and writes it to the output.
func (t *Trace) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	fmt.Fprintln(t.out, line)
}

// Lines returns a copy of the recorded lines.
func (t *Trace) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.lines)
}

// Reset forgets the recorded lines.
func (t *Trace) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
}
