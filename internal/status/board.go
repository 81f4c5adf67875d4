package status

import "sync"

// Source is anything that reports a named status line.
type Source interface {
	Name() string
	Status() string
}

// Entry is one rendered line of the status view.
type Entry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Board keeps sources in insertion order and caches the last refreshed view.
type Board struct {
	mu      sync.RWMutex
	sources []Source
	latest  []Entry
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{}
}

// Add appends a source. Duplicate names are kept; the display is positional.
func (b *Board) Add(src Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, src)
}

// Refresh re-reads every source and returns the new view.
func (b *Board) Refresh() []Entry {
	b.mu.RLock()
	sources := b.sources
	b.mu.RUnlock()

	entries := make([]Entry, len(sources))
	for i, src := range sources {
		entries[i] = Entry{Name: src.Name(), Status: src.Status()}
	}

	b.mu.Lock()
	b.latest = entries
	b.mu.Unlock()
	return entries
}

// Snapshot returns the view from the last Refresh.
func (b *Board) Snapshot() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, len(b.latest))
	copy(out, b.latest)
	return out
}
