// Package poll implements the cancellable self-rescheduling loop that
// drives every background refresh in fleetdeck.
//
// Each Scheduler owns exactly one logical polling target. The next fetch
// is scheduled only after the current one settles, so a slow backend can
// never pile up overlapping in-flight requests for the same target.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/CursedScorpio/fleetdeck/internal/logging"
)

var pollLog = logging.ForComponent(logging.CompPoll)

// ErrAlreadyStarted is returned by Start when the scheduler is already
// running. A second concurrent loop for the same logical target is always
// a caller bug, never something to paper over silently.
var ErrAlreadyStarted = errors.New("poll: scheduler already started")

// Result tells the scheduler what to do after a delivery.
type Result int

const (
	// Continue schedules the next fetch after the configured interval.
	Continue Result = iota
	// StopLoop terminates the loop. Used when the delivered snapshot
	// shows the entity reached a terminal state.
	StopLoop
)

// FetchFunc performs one fetch. It must honor ctx cancellation; the
// scheduler never aborts an in-flight fetch itself, it only discards the
// late result.
type FetchFunc func(ctx context.Context) (any, error)

// DeliverFunc receives the outcome of one fetch. Exactly one of data/err
// is meaningful. A non-nil err does not stop the loop unless the deliverer
// says so; transient failures are expected and survivable.
type DeliverFunc func(data any, err error) Result

// Scheduler runs fetch/deliver cycles with the interval measured from
// fetch completion, not fetch start.
type Scheduler struct {
	name     string
	interval time.Duration
	fetch    FetchFunc
	deliver  DeliverFunc

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	wake    chan struct{}
}

// New creates a scheduler for one polling target. The name is used only
// for logging.
func New(name string, interval time.Duration, fetch FetchFunc, deliver DeliverFunc) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		fetch:    fetch,
		deliver:  deliver,
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the loop. The first fetch happens immediately. Starting
// a scheduler that is already running (or was already stopped) returns
// ErrAlreadyStarted.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	timer := time.NewTimer(s.interval)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		data, err := s.fetch(ctx)

		// The delivery decision and the delivery itself happen under the
		// lock: Stop() cannot return while a delivery is in progress, and
		// a result that raced with Stop() is discarded here.
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		res := s.deliver(data, err)
		if res == StopLoop {
			s.stopped = true
			s.mu.Unlock()
			s.cancel()
			pollLog.Debug("loop_terminal", slog.String("target", s.name))
			return
		}
		s.mu.Unlock()

		// Interval measured from settle, so back-to-back requests cannot
		// overlap no matter how slow the previous fetch was.
		timer.Reset(s.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-s.wake:
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
		}
	}
}

// Stop cancels the loop. Idempotent. Once Stop returns, the deliver
// callback will never be invoked again for this scheduler, even if a
// fetch was in flight at the moment of cancellation.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if started {
		<-s.done
	}
}

// Nudge requests one immediate out-of-cycle fetch. If a fetch is already
// in flight the nudge collapses into the next scheduled cycle; it can
// never cause overlap. Safe to call at any time.
func (s *Scheduler) Nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Running reports whether the loop has been started and not yet stopped.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.stopped
}
