package fleet

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CursedScorpio/fleetdeck/internal/logging"
	"github.com/CursedScorpio/fleetdeck/internal/poll"
)

var chatLog = logging.ForComponent(logging.CompChat)

// ChatClient is the slice of the REST surface the selector needs.
type ChatClient interface {
	ChatMessages(ctx context.Context, streamURL string) ([]ChatMessage, error)
}

// StreamOption is one monitorable stream: its URL plus a display name.
type StreamOption struct {
	URL  string
	Name string
}

// ChatSelector derives the set of chat-monitorable streams from the
// viewer slice of the store and owns the poll loop for the currently
// selected stream. Selection always tracks eligibility: when the
// selected stream drops out of the eligible set it falls back to the
// first remaining stream, or to none.
type ChatSelector struct {
	store    *Store
	client   ChatClient
	interval time.Duration

	// switchMu serializes Select/Reconcile/Stop. Scheduler Stop blocks
	// until an in-flight delivery finishes, so it must never run while
	// mu is held — deliveries take mu.
	switchMu sync.Mutex

	mu       sync.Mutex
	selected string
	sched    *poll.Scheduler
	messages []ChatMessage
	lastErr  string

	changed chan struct{}
}

// NewChatSelector creates a selector. A non-positive interval falls back
// to the 30 s default.
func NewChatSelector(store *Store, client ChatClient, interval time.Duration) *ChatSelector {
	if interval <= 0 {
		interval = DefaultChatInterval
	}
	return &ChatSelector{
		store:    store,
		client:   client,
		interval: interval,
		changed:  make(chan struct{}, 1),
	}
}

// Eligible returns the distinct streams currently worth monitoring:
// viewers that are running, have chat parsing enabled, and carry a
// stream URL. Duplicate URLs collapse into one option; the first
// non-empty streamer name wins.
func (c *ChatSelector) Eligible() []StreamOption {
	byURL := make(map[string]string)
	for _, v := range c.store.Viewers() {
		if v.Status != StatusRunning || !v.ChatParsingEnabled || v.StreamURL == "" {
			continue
		}
		if name, ok := byURL[v.StreamURL]; !ok || (name == "" && v.Streamer != "") {
			byURL[v.StreamURL] = v.Streamer
		}
	}

	out := make([]StreamOption, 0, len(byURL))
	for url, streamer := range byURL {
		out = append(out, StreamOption{URL: url, Name: streamDisplayName(url, streamer)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Select switches chat monitoring to the given stream URL. The loop for
// the previous selection is cancelled strictly before the new one
// starts; an empty URL just stops monitoring. Selecting the current
// stream is a no-op.
func (c *ChatSelector) Select(ctx context.Context, url string) {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	c.switchTo(ctx, url)
}

// switchTo performs the actual switch. Caller holds switchMu.
func (c *ChatSelector) switchTo(ctx context.Context, url string) {
	c.mu.Lock()
	if url == c.selected {
		c.mu.Unlock()
		return
	}
	old := c.sched
	c.sched = nil
	c.selected = url
	c.messages = nil
	c.lastErr = ""
	c.mu.Unlock()

	// Old loop dies strictly before the new one starts. A result still
	// in flight is additionally rejected by the stream check in deliver.
	if old != nil {
		old.Stop()
	}

	if url == "" {
		chatLog.Debug("chat_monitoring_off")
		c.notify()
		return
	}

	stream := url
	sched := poll.New("chat:"+stream, c.interval,
		func(ctx context.Context) (any, error) {
			return c.client.ChatMessages(ctx, stream)
		},
		func(data any, err error) poll.Result {
			c.deliver(stream, data, err)
			return poll.Continue
		},
	)
	if err := sched.Start(ctx); err != nil {
		chatLog.Warn("chat_loop_start_failed", slog.String("stream", stream), slog.String("error", err.Error()))
		return
	}
	c.mu.Lock()
	c.sched = sched
	c.mu.Unlock()
	chatLog.Debug("chat_monitoring_on", slog.String("stream", stream))
	c.notify()
}

func (c *ChatSelector) deliver(stream string, data any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stream != c.selected {
		// Late result from a loop that was switched away from.
		return
	}
	if err != nil {
		c.lastErr = err.Error()
	} else {
		c.lastErr = ""
		c.messages, _ = data.([]ChatMessage)
	}
	logging.Tick(logging.CompChat, "chat_poll", slog.String("stream", stream))
	c.notifyLocked()
}

// Reconcile re-checks the selection against the eligible set. Called
// whenever the store's viewer slice changed. A selection that left the
// set falls back to the first remaining stream, or none.
func (c *ChatSelector) Reconcile(ctx context.Context) {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	eligible := c.Eligible()

	c.mu.Lock()
	selected := c.selected
	c.mu.Unlock()

	if selected != "" {
		for _, opt := range eligible {
			if opt.URL == selected {
				return
			}
		}
	}

	next := ""
	if len(eligible) > 0 {
		next = eligible[0].URL
	}
	if next == selected {
		return
	}
	chatLog.Debug("chat_selection_fallback",
		slog.String("from", selected), slog.String("to", next))
	c.switchTo(ctx, next)
}

// Selected returns the currently monitored stream URL, empty for none.
func (c *ChatSelector) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Messages returns the latest fetched chat messages.
func (c *ChatSelector) Messages() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatMessage(nil), c.messages...)
}

// LastError returns the error flag of the most recent chat poll.
func (c *ChatSelector) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Watch returns the coalescing change signal channel.
func (c *ChatSelector) Watch() <-chan struct{} {
	return c.changed
}

func (c *ChatSelector) notify() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

func (c *ChatSelector) notifyLocked() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// Stop cancels the active poll loop, if any.
func (c *ChatSelector) Stop() {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.mu.Lock()
	old := c.sched
	c.sched = nil
	c.mu.Unlock()
	if old != nil {
		old.Stop()
	}
}

// streamDisplayName prefers the streamer field and falls back to the
// trailing path segment of the URL.
func streamDisplayName(url, streamer string) string {
	if streamer != "" {
		return streamer
	}
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 && i < len(trimmed)-1 {
		return trimmed[i+1:]
	}
	return url
}
