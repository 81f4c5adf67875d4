package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"course-racer/internal/status"
)

// ErrUnitNotFound means a running unit could not be identified for termination.
var ErrUnitNotFound = errors.New("unit not found")

// Unit is anything the supervisor runs: the catalog poller or an enrollment worker.
type Unit interface {
	Name() string
	Status() string
	Run(ctx context.Context) error
}

// Options configures a Supervisor.
type Options struct {
	RefreshInterval time.Duration
	Grace           time.Duration
	Sink            status.Sink
	Logger          *zap.Logger
}

type handle struct {
	unit       Unit
	background bool

	cancel context.CancelFunc
	done   chan struct{}
	err    error

	override status.Cell
}

func (h *handle) Name() string { return h.unit.Name() }

func (h *handle) Status() string {
	if s := h.override.Get(); s != "" {
		return s
	}
	return h.unit.Status()
}

// markCancelled labels a unit that unwound after cancellation. A unit that still returned nil
// completed its work, and keeps its own status.
func (h *handle) markCancelled() {
	if h.err != nil {
		h.override.Set("cancelled")
	}
}

func (h *handle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Supervisor starts units, feeds their status to a sink and tears them down on cancellation.
type Supervisor struct {
	opts  Options
	log   *zap.Logger
	board *status.Board

	mu      sync.Mutex
	handles []*handle
}

// New creates a supervisor.
func New(opts Options) *Supervisor {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 100 * time.Millisecond
	}
	if opts.Grace <= 0 {
		opts.Grace = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Supervisor{
		opts:  opts,
		log:   opts.Logger.With(zap.String("component", "supervisor")),
		board: status.NewBoard(),
	}
}

// Board exposes the status view, refreshed on every tick.
func (s *Supervisor) Board() *status.Board { return s.board }

// Add registers a unit that the run waits on, such as an enrollment worker.
func (s *Supervisor) Add(u Unit) { s.add(u, false) }

// AddBackground registers a unit that runs until it is torn down, such as the poller.
func (s *Supervisor) AddBackground(u Unit) { s.add(u, true) }

func (s *Supervisor) add(u Unit, background bool) {
	h := &handle{unit: u, background: background, done: make(chan struct{})}
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	s.board.Add(h)
}

// Run starts every registered unit and refreshes the status view until ctx is cancelled or
// every foreground unit has finished. Either way every unit still running is then cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	handles := append([]*handle(nil), s.handles...)
	s.mu.Unlock()

	for _, h := range handles {
		s.start(ctx, h)
	}
	s.log.Info("supervisor started", zap.Int("units", len(handles)))

	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()
loop:
	for {
		s.render()
		if allForegroundDone(handles) {
			s.log.Info("all jobs finished")
			break
		}
		select {
		case <-ctx.Done():
			s.log.Info("cancellation received, terminating units")
			break loop
		case <-ticker.C:
		}
	}

	err := s.terminate(handles)
	s.render()
	return err
}

func (s *Supervisor) start(parent context.Context, h *handle) {
	// Units are cancelled one by one by terminate, never by the parent directly.
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	h.cancel = cancel
	go func() {
		defer close(h.done)
		defer cancel()
		h.err = h.unit.Run(ctx)
		if h.err != nil && !errors.Is(h.err, context.Canceled) {
			s.log.Error("unit stopped with error", zap.String("unit", h.Name()), zap.Error(h.err))
		}
	}()
}

// terminate cancels every unfinished unit and waits up to the grace period for them to unwind.
// Units that are still running afterwards are abandoned.
func (s *Supervisor) terminate(handles []*handle) error {
	var pending []*handle
	var missing []string
	for _, h := range handles {
		if h.finished() {
			continue
		}
		if h.cancel == nil {
			missing = append(missing, h.Name())
			continue
		}
		h.cancel()
		pending = append(pending, h)
	}
	if len(missing) > 0 {
		s.log.Error("cannot terminate units", zap.Strings("units", missing))
		return fmt.Errorf("%w: %v", ErrUnitNotFound, missing)
	}

	grace := time.NewTimer(s.opts.Grace)
	defer grace.Stop()
	for i, h := range pending {
		select {
		case <-h.done:
			h.markCancelled()
		case <-grace.C:
			for _, left := range pending[i:] {
				if left.finished() {
					left.markCancelled()
					continue
				}
				left.override.Set("abandoned")
				s.log.Warn("unit did not stop within grace period, abandoning", zap.String("unit", left.Name()))
			}
			return nil
		}
	}
	return nil
}

func (s *Supervisor) render() {
	entries := s.board.Refresh()
	if s.opts.Sink != nil {
		s.opts.Sink.Render(entries)
	}
}

func allForegroundDone(handles []*handle) bool {
	foreground := 0
	for _, h := range handles {
		if h.background {
			continue
		}
		foreground++
		if !h.finished() {
			return false
		}
	}
	return foreground > 0
}
