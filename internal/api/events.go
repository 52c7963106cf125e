package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
	"github.com/CursedScorpio/fleetdeck/internal/logging"
)

var eventsLog = logging.ForComponent(logging.CompEvents)

// Event is one change hint from the backend feed: something about this
// entity changed, poll it now. Hints are advisory; losing them only
// means waiting for the next regular cycle.
type Event struct {
	Kind fleet.EntityKind `json:"kind"`
	ID   string           `json:"id,omitempty"`
}

const eventReconnectDelay = 5 * time.Second

// EventFeed maintains a websocket connection to the backend's change
// feed and forwards each hint to the handler. The feed degrades
// silently: connect and read failures are logged at debug level and
// followed by a fixed-delay reconnect, and the dashboard keeps working
// on regular polling alone.
type EventFeed struct {
	url     string
	handler func(Event)

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewEventFeed creates a feed against the client's backend. handler is
// called from the feed goroutine and must not block.
func NewEventFeed(c *Client, handler func(Event)) *EventFeed {
	return &EventFeed{
		url:     wsURL(c.base) + "/events",
		handler: handler,
	}
}

// Start launches the feed goroutine. Starting twice is a no-op.
func (f *EventFeed) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return
	}
	f.started = true
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	go f.run(ctx)
}

// Stop tears the connection down and waits for the goroutine to exit.
func (f *EventFeed) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	cancel()
	<-done
}

func (f *EventFeed) run(ctx context.Context) {
	defer close(f.done)
	for {
		f.consume(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(eventReconnectDelay):
		}
	}
}

// consume holds one connection open until it fails or ctx ends.
func (f *EventFeed) consume(ctx context.Context) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		eventsLog.Debug("event_feed_connect_failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	eventsLog.Debug("event_feed_connected", slog.String("url", f.url))

	// Unblock ReadMessage when the context ends.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readDone:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				eventsLog.Debug("event_feed_disconnected", slog.String("error", err.Error()))
			}
			return
		}
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			eventsLog.Debug("event_feed_bad_payload", slog.String("error", err.Error()))
			continue
		}
		if ev.Kind == "" {
			continue
		}
		logging.Tick(logging.CompEvents, "event_hint", slog.String("kind", string(ev.Kind)))
		f.handler(ev)
	}
}

// wsURL rewrites the http(s) backend root into its ws(s) counterpart.
func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
