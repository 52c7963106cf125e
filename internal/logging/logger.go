// Package logging sets up structured logging for fleetdeck: slog with
// file rotation, per-component sub-loggers, an in-memory ring of recent
// lines for crash dumps, and an aggregator that batches high-frequency
// poll ticks into periodic summaries.
package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names used with ForComponent.
const (
	CompPoll   = "poll"
	CompStore  = "store"
	CompSync   = "sync"
	CompAPI    = "api"
	CompEvents = "events"
	CompChat   = "chat"
	CompTabs   = "tabs"
	CompConfig = "config"
	CompUI     = "ui"
)

// Config holds logging configuration.
type Config struct {
	// Dir is the directory for log files. Empty disables file logging.
	Dir string

	// Level is the minimum level: "debug", "info", "warn", "error".
	Level string

	// Format is "json" (default) or "text".
	Format string

	// MaxSizeMB is the rotation size threshold (default 10).
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default 3).
	MaxBackups int

	// RingLines is the size of the in-memory line ring (default 2000).
	RingLines int

	// SummaryIntervalSecs is the poll-tick summary flush interval
	// (default 60).
	SummaryIntervalSecs int
}

var (
	mu      sync.RWMutex
	root    *slog.Logger
	ring    *LineRing
	agg     *Aggregator
	rotator *lumberjack.Logger
)

// Init configures the global logger. With an empty Dir only the in-memory
// ring receives output, which is what the TUI wants by default: log lines
// on stdout would corrupt the alternate screen.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if cfg.RingLines <= 0 {
		cfg.RingLines = 2000
	}
	if cfg.SummaryIntervalSecs <= 0 {
		cfg.SummaryIntervalSecs = 60
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	ring = NewLineRing(cfg.RingLines)

	var w io.Writer = ring
	if cfg.Dir != "" {
		rotator = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "fleetdeck.log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		w = io.MultiWriter(rotator, ring)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	root = slog.New(handler)

	agg = NewAggregator(root, cfg.SummaryIntervalSecs)
	agg.Start()
}

// Logger returns the root logger. Safe before Init (discards).
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return root
}

// ForComponent returns a sub-logger tagged with the component name.
// The returned logger resolves the real handler at log time, so loggers
// declared as package-level vars before Init still work.
func ForComponent(name string) *slog.Logger {
	return slog.New(&lateHandler{component: name})
}

// lateHandler delegates to the current global handler on every call.
// Package-level component loggers are created before Init runs; binding
// the handler eagerly would freeze them onto the discard handler.
type lateHandler struct {
	component string
	attrs     []slog.Attr
	group     string
}

func (h *lateHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *lateHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := Logger().Handler()
	handler = handler.WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	if h.group != "" {
		handler = handler.WithGroup(h.group)
	}
	return handler.Handle(ctx, r)
}

func (h *lateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &lateHandler{component: h.component, attrs: merged, group: h.group}
}

func (h *lateHandler) WithGroup(name string) slog.Handler {
	return &lateHandler{component: h.component, attrs: h.attrs, group: name}
}

// Tick records one high-frequency event for batched summary logging.
func Tick(component, event string, fields ...slog.Attr) {
	mu.RLock()
	a := agg
	mu.RUnlock()
	if a != nil {
		a.Record(component, event, fields...)
	}
}

// DumpRecent writes the ring of recent log lines to the given path.
// Called from the panic handler in main.
func DumpRecent(path string) error {
	mu.RLock()
	r := ring
	mu.RUnlock()
	if r == nil {
		return nil
	}
	return r.DumpToFile(path)
}

// Shutdown flushes the aggregator and closes the rotated file.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if agg != nil {
		agg.Stop()
		agg = nil
	}
	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
	root = nil
	ring = nil
}
