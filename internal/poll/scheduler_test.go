package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerFirstFetchImmediate(t *testing.T) {
	fetched := make(chan struct{}, 1)
	s := New("test", time.Hour,
		func(ctx context.Context) (any, error) {
			select {
			case fetched <- struct{}{}:
			default:
			}
			return nil, nil
		},
		func(data any, err error) Result { return Continue },
	)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("first fetch did not happen immediately")
	}
}

func TestSchedulerNeverOverlaps(t *testing.T) {
	var inFlight, maxInFlight int64
	s := New("test", time.Millisecond,
		func(ctx context.Context) (any, error) {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				m := atomic.LoadInt64(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt64(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond) // slower than the interval
			atomic.AddInt64(&inFlight, -1)
			return nil, nil
		},
		func(data any, err error) Result { return Continue },
	)
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int64(1), atomic.LoadInt64(&maxInFlight),
		"a slow fetch must delay the next cycle, not overlap it")
}

func TestSchedulerErrorKeepsLooping(t *testing.T) {
	var deliveries int64
	errs := make(chan error, 16)
	s := New("test", time.Millisecond,
		func(ctx context.Context) (any, error) {
			return nil, errors.New("backend down")
		},
		func(data any, err error) Result {
			atomic.AddInt64(&deliveries, 1)
			select {
			case errs <- err:
			default:
			}
			return Continue
		},
	)
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Greater(t, atomic.LoadInt64(&deliveries), int64(1),
		"transient errors must not stop the loop")
	assert.Error(t, <-errs)
}

func TestSchedulerStopBlocksOutLateResults(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var delivered int64
	s := New("test", time.Millisecond,
		func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return "late", nil
		},
		func(data any, err error) Result {
			atomic.AddInt64(&delivered, 1)
			return Continue
		},
	)
	require.NoError(t, s.Start(context.Background()))
	<-started

	// Stop while the first fetch is still blocked, then let it finish.
	// Stop must not return until the loop has fully wound down.
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	s.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&delivered),
		"a result in flight at Stop must be discarded")
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s := New("test", time.Millisecond,
		func(ctx context.Context) (any, error) { return nil, nil },
		func(data any, err error) Result { return Continue },
	)
	require.NoError(t, s.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()
	assert.False(t, s.Running())
}

func TestSchedulerDoubleStart(t *testing.T) {
	s := New("test", time.Hour,
		func(ctx context.Context) (any, error) { return nil, nil },
		func(data any, err error) Result { return Continue },
	)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestSchedulerStartAfterStop(t *testing.T) {
	s := New("test", time.Hour,
		func(ctx context.Context) (any, error) { return nil, nil },
		func(data any, err error) Result { return Continue },
	)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestSchedulerStopLoopRetires(t *testing.T) {
	var deliveries int64
	s := New("test", time.Millisecond,
		func(ctx context.Context) (any, error) { return "terminal", nil },
		func(data any, err error) Result {
			atomic.AddInt64(&deliveries, 1)
			return StopLoop
		},
	)
	require.NoError(t, s.Start(context.Background()))

	deadline := time.Now().Add(2 * time.Second)
	for s.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.False(t, s.Running())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&deliveries),
		"a loop that retired itself must not deliver again")
}

func TestSchedulerNudge(t *testing.T) {
	fetches := make(chan struct{}, 4)
	s := New("test", time.Hour,
		func(ctx context.Context) (any, error) {
			fetches <- struct{}{}
			return nil, nil
		},
		func(data any, err error) Result { return Continue },
	)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-fetches:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial fetch")
	}

	s.Nudge()
	select {
	case <-fetches:
	case <-time.After(2 * time.Second):
		t.Fatal("nudge did not trigger an out-of-cycle fetch")
	}
}

func TestSchedulerContextCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetches := make(chan struct{}, 16)
	s := New("test", time.Millisecond,
		func(ctx context.Context) (any, error) {
			select {
			case fetches <- struct{}{}:
			default:
			}
			return nil, nil
		},
		func(data any, err error) Result { return Continue },
	)
	require.NoError(t, s.Start(ctx))
	<-fetches
	cancel()

	// After cancellation settles no further fetches happen.
	time.Sleep(20 * time.Millisecond)
	for len(fetches) > 0 {
		<-fetches
	}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, fetches)
}
