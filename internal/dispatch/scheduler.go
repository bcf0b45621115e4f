// Package dispatch replays a transcript sequence into the shared state store at
// a fixed cadence.
//
// Each segment i gets its own deferred action at i*interval. Actions run on
// whatever goroutine the clock uses, so ordering is enforced by a cursor: an
// action dispatches every index up to its own that has not gone out yet, and an
// action whose index is already behind the cursor does nothing.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/forPelevin/replaycast/internal/ports"
	"github.com/forPelevin/replaycast/internal/types"
	"github.com/google/uuid"
)

const DefaultInterval = 20 * time.Second

type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCancelled
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCancelled:
		return "cancelled"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// AlreadyRunningError means Start was called without cancelling the live
// timeline first. It is a caller bug, not a runtime condition.
type AlreadyRunningError struct {
	TimelineID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("dispatch timeline %s is already running", e.TimelineID)
}

type Options struct {
	// OnComplete runs once, after the last segment of a timeline is dispatched.
	OnComplete func(timelineID string)
	Logf       func(format string, args ...any)
}

type Scheduler struct {
	store ports.Store
	clock ports.Clock
	opts  Options

	mu sync.Mutex
	tl *timeline

	// serializes store writes across action goroutines
	dispatchMu sync.Mutex
}

type timeline struct {
	id       string
	seq      types.Sequence
	interval time.Duration
	handles  []ports.Timer
	cursor   int
	status   Status
	done     chan struct{}
}

func New(store ports.Store, clk ports.Clock, opts Options) *Scheduler {
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	return &Scheduler{store: store, clock: clk, opts: opts}
}

func (s *Scheduler) Start(seq types.Sequence, interval time.Duration) error {
	if interval < 0 {
		return fmt.Errorf("dispatch interval must be >= 0, got %s", interval)
	}

	s.mu.Lock()
	if prev := s.tl; prev != nil && prev.status == StatusRunning {
		if prev.cursor < len(prev.seq) {
			s.mu.Unlock()
			return &AlreadyRunningError{TimelineID: prev.id}
		}
		s.finishLocked(prev, StatusCompleted)
	}

	tl := &timeline{
		id:       uuid.NewString(),
		seq:      append(types.Sequence(nil), seq...),
		interval: interval,
		status:   StatusRunning,
		done:     make(chan struct{}),
	}
	s.tl = tl

	if len(tl.seq) == 0 {
		s.finishLocked(tl, StatusCompleted)
		s.mu.Unlock()
		s.opts.Logf("timeline %s: empty sequence, nothing to dispatch", tl.id)
		s.complete(tl)
		return nil
	}

	tl.handles = make([]ports.Timer, 0, len(tl.seq))
	for i := range tl.seq {
		i := i
		tl.handles = append(tl.handles, s.clock.AfterFunc(time.Duration(i)*interval, func() {
			s.fire(tl, i)
		}))
	}
	s.mu.Unlock()

	s.opts.Logf("timeline %s: %d segments every %s", tl.id, len(tl.seq), interval)
	return nil
}

// Cancel stops every action that has not fired yet. It is safe to call in any
// state; only a running timeline is affected.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	tl := s.tl
	// a timeline whose last segment is already out is completing, not cancellable
	if tl == nil || tl.status != StatusRunning || tl.cursor == len(tl.seq) {
		s.mu.Unlock()
		return
	}
	stopped := 0
	for _, h := range tl.handles {
		if h.Stop() {
			stopped++
		}
	}
	s.finishLocked(tl, StatusCancelled)
	cursor := tl.cursor
	s.mu.Unlock()

	s.opts.Logf("timeline %s: cancelled at %d/%d (%d pending actions cleared)", tl.id, cursor, len(tl.seq), stopped)
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tl == nil {
		return StatusIdle
	}
	return s.tl.status
}

// Cursor is the number of segments of the current timeline already dispatched.
func (s *Scheduler) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tl == nil {
		return 0
	}
	return s.tl.cursor
}

func (s *Scheduler) TimelineID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tl == nil {
		return ""
	}
	return s.tl.id
}

// Done is closed when the current timeline completes or is cancelled. With no
// timeline it returns an already closed channel.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tl == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.tl.done
}

func (s *Scheduler) fire(tl *timeline, index int) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	for {
		s.mu.Lock()
		if s.tl != tl || tl.status != StatusRunning || tl.cursor > index {
			s.mu.Unlock()
			return
		}
		i := tl.cursor
		text := tl.seq[i].Text
		tl.cursor++
		last := tl.cursor == len(tl.seq)
		s.mu.Unlock()

		s.opts.Logf("timeline %s: dispatching segment %d/%d", tl.id, i+1, len(tl.seq))
		s.store.Dispatch(types.SetSpokenLanguageText{Text: text})

		if last {
			s.mu.Lock()
			if tl.status == StatusRunning {
				s.finishLocked(tl, StatusCompleted)
			}
			s.mu.Unlock()
			s.complete(tl)
			return
		}
	}
}

func (s *Scheduler) finishLocked(tl *timeline, status Status) {
	tl.status = status
	tl.handles = nil
	close(tl.done)
}

func (s *Scheduler) complete(tl *timeline) {
	s.opts.Logf("timeline %s: completed", tl.id)
	if s.opts.OnComplete != nil {
		s.opts.OnComplete(tl.id)
	}
}
