package status

import (
	"fmt"
	"io"
	"sync"
)

// Sink receives the ordered status view on every refresh tick.
type Sink interface {
	Render(entries []Entry)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(entries []Entry)

func (f SinkFunc) Render(entries []Entry) { f(entries) }

// TerminalSink redraws the status lines in place using ANSI cursor movement.
type TerminalSink struct {
	mu    sync.Mutex
	w     io.Writer
	lines int
}

// NewTerminalSink creates a sink writing to w, usually os.Stdout.
func NewTerminalSink(w io.Writer) *TerminalSink {
	return &TerminalSink{w: w}
}

func (t *TerminalSink) Render(entries []Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lines > 0 {
		fmt.Fprintf(t.w, "\x1b[%dA", t.lines)
	}
	width := 0
	for _, e := range entries {
		if len(e.Name) > width {
			width = len(e.Name)
		}
	}
	for _, e := range entries {
		fmt.Fprintf(t.w, "\r\x1b[2K%-*s  %s\n", width, e.Name, e.Status)
	}
	// Clear lines left over from a longer previous frame.
	for i := len(entries); i < t.lines; i++ {
		fmt.Fprint(t.w, "\r\x1b[2K\n")
	}
	if len(entries) > t.lines {
		t.lines = len(entries)
	}
}
