package logging

import (
	"log/slog"
	"sync"
	"time"
)

// tickKey identifies one class of batched event.
type tickKey struct {
	component string
	event     string
}

// tickEntry accumulates a count plus the most recent field set.
type tickEntry struct {
	count  int64
	fields []slog.Attr
}

// Aggregator batches high-frequency events (poll ticks fire every few
// seconds per entity) and emits one summary line per event class per
// flush window instead of thousands of individual records.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	entries map[tickKey]*tickEntry

	done chan struct{}
	wg   sync.WaitGroup
}

// NewAggregator creates an aggregator flushing every intervalSecs
// seconds. A nil logger drops everything.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 60
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		entries:  make(map[tickKey]*tickEntry),
		done:     make(chan struct{}),
	}
}

// Start launches the background flush loop.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.flush()
			case <-a.done:
				return
			}
		}
	}()
}

// Stop ends the loop and performs a final flush.
func (a *Aggregator) Stop() {
	close(a.done)
	a.wg.Wait()
	a.flush()
}

// Record counts one occurrence of an event. Fields are last-writer-wins;
// they carry context ("which entity ticked last"), not per-event data.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := tickKey{component: component, event: event}
	e, ok := a.entries[key]
	if !ok {
		e = &tickEntry{}
		a.entries[key] = e
	}
	e.count++
	if len(fields) > 0 {
		e.fields = fields
	}
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	entries := a.entries
	a.entries = make(map[tickKey]*tickEntry)
	a.mu.Unlock()

	if a.logger == nil || len(entries) == 0 {
		return
	}
	for key, e := range entries {
		attrs := []any{
			slog.String("component", key.component),
			slog.String("event", key.event),
			slog.Int64("count", e.count),
		}
		for _, f := range e.fields {
			attrs = append(attrs, f)
		}
		a.logger.Info("tick_summary", attrs...)
	}
}
