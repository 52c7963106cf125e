package fleet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/CursedScorpio/fleetdeck/internal/logging"
	"github.com/CursedScorpio/fleetdeck/internal/poll"
)

var syncLog = logging.ForComponent(logging.CompSync)

// StatusClient is the slice of the REST surface the synchronizer needs.
type StatusClient interface {
	ListBoxes(ctx context.Context) ([]Box, error)
	ListViewers(ctx context.Context) ([]Viewer, error)
	BoxStatus(ctx context.Context, id string) (BoxPatch, error)
	ViewerStatus(ctx context.Context, id string) (ViewerPatch, error)
	ViewerLogs(ctx context.Context, id string) ([]LogEntry, error)
	SystemMetrics(ctx context.Context) (SystemMetrics, error)
	SystemResources(ctx context.Context) (ResourceReport, error)
}

// loop aspects. One scheduler exists per (kind, id, aspect); the status
// aspect is the one bounded by the at-most-one-per-entity invariant,
// logs and resources are companions tied to the same subscription.
const (
	aspectStatus    = "status"
	aspectLogs      = "logs"
	aspectList      = "list"
	aspectMetrics   = "metrics"
	aspectResources = "resources"
)

type loopKey struct {
	kind   EntityKind
	id     string
	aspect string
}

// fleetList bundles the two collection fetches of the list loop so they
// land in the store together.
type fleetList struct {
	boxes   []Box
	viewers []Viewer
}

// Synchronizer owns every background poll loop and feeds their results
// into the store, always via merge. Views subscribe to what they
// display; subscription starts loops, unsubscription stops them, and a
// loop observing a terminal status retires itself.
type Synchronizer struct {
	store  *Store
	client StatusClient
	iv     Intervals

	mu    sync.Mutex
	loops map[loopKey]*poll.Scheduler
}

// NewSynchronizer wires the synchronizer. Zero intervals fall back to the
// fixed defaults.
func NewSynchronizer(store *Store, client StatusClient, iv Intervals) *Synchronizer {
	return &Synchronizer{
		store:  store,
		client: client,
		iv:     iv.withDefaults(),
		loops:  make(map[loopKey]*poll.Scheduler),
	}
}

// SubscribeFleet starts the collection loop keeping the box and viewer
// lists fresh. Runs for the lifetime of the dashboard.
func (s *Synchronizer) SubscribeFleet(ctx context.Context) {
	key := loopKey{kind: KindBox, aspect: aspectList}
	s.start(ctx, key, s.iv.Status,
		func(ctx context.Context) (any, error) {
			boxes, err := s.client.ListBoxes(ctx)
			if err != nil {
				return nil, err
			}
			viewers, err := s.client.ListViewers(ctx)
			if err != nil {
				return nil, err
			}
			return fleetList{boxes: boxes, viewers: viewers}, nil
		},
		func(data any, err error) poll.Result {
			if err != nil {
				s.store.SetPollError(KindBox, "", err.Error())
				syncLog.Warn("fleet_list_poll_failed", slog.String("error", err.Error()))
				return poll.Continue
			}
			list := data.(fleetList)
			s.store.PutBoxes(list.boxes)
			s.store.PutViewers(list.viewers)
			logging.Tick(logging.CompSync, "fleet_list_poll")
			return poll.Continue
		})
}

// UnsubscribeFleet stops the collection loop.
func (s *Synchronizer) UnsubscribeFleet() {
	s.stopKeys(loopKey{kind: KindBox, aspect: aspectList})
}

// SubscribeSystem starts the system metrics loop and the per-entity
// resource snapshot loop.
func (s *Synchronizer) SubscribeSystem(ctx context.Context) {
	s.start(ctx, loopKey{kind: KindSystem, aspect: aspectMetrics}, s.iv.System,
		func(ctx context.Context) (any, error) {
			return s.client.SystemMetrics(ctx)
		},
		func(data any, err error) poll.Result {
			if err != nil {
				s.store.SetPollError(KindSystem, "", err.Error())
				return poll.Continue
			}
			s.store.PutSystemMetrics(data.(SystemMetrics))
			logging.Tick(logging.CompSync, "system_metrics_poll")
			return poll.Continue
		})

	s.start(ctx, loopKey{kind: KindSystem, aspect: aspectResources}, s.iv.Resources,
		func(ctx context.Context) (any, error) {
			return s.client.SystemResources(ctx)
		},
		func(data any, err error) poll.Result {
			if err != nil {
				s.store.SetPollError(KindSystem, "", err.Error())
				return poll.Continue
			}
			report := data.(ResourceReport)
			for id, snap := range report.Boxes {
				s.store.PutResources(KindBox, id, snap)
			}
			for id, snap := range report.Viewers {
				s.store.PutResources(KindViewer, id, snap)
			}
			logging.Tick(logging.CompSync, "resources_poll")
			return poll.Continue
		})
}

// UnsubscribeSystem stops both system loops.
func (s *Synchronizer) UnsubscribeSystem() {
	s.stopKeys(
		loopKey{kind: KindSystem, aspect: aspectMetrics},
		loopKey{kind: KindSystem, aspect: aspectResources},
	)
}

// SubscribeBox starts the status loop for one box. Nothing starts when
// the box is already known to be terminal; a mutating action that
// revives it resubscribes.
func (s *Synchronizer) SubscribeBox(ctx context.Context, id string) {
	if b, ok := s.store.Box(id); ok && b.Status.IsTerminal() {
		return
	}
	key := loopKey{kind: KindBox, id: id, aspect: aspectStatus}
	s.start(ctx, key, s.iv.Status,
		func(ctx context.Context) (any, error) {
			return s.client.BoxStatus(ctx, id)
		},
		func(data any, err error) poll.Result {
			if err != nil {
				s.store.SetPollError(KindBox, id, err.Error())
				return poll.Continue
			}
			patch := data.(BoxPatch)
			s.store.ApplyBoxPatch(id, patch)
			logging.Tick(logging.CompSync, "box_status_poll", slog.String("id", id))
			if patch.Status != nil && patch.Status.IsTerminal() {
				s.forget(key)
				syncLog.Debug("box_reached_terminal", slog.String("id", id), slog.String("status", string(*patch.Status)))
				return poll.StopLoop
			}
			return poll.Continue
		})
}

// UnsubscribeBox stops the box status loop.
func (s *Synchronizer) UnsubscribeBox(id string) {
	s.stopKeys(loopKey{kind: KindBox, id: id, aspect: aspectStatus})
}

// SubscribeViewer starts the status and log-tail loops for one viewer.
func (s *Synchronizer) SubscribeViewer(ctx context.Context, id string) {
	if v, ok := s.store.Viewer(id); !ok || !v.Status.IsTerminal() {
		key := loopKey{kind: KindViewer, id: id, aspect: aspectStatus}
		s.start(ctx, key, s.iv.Status,
			func(ctx context.Context) (any, error) {
				return s.client.ViewerStatus(ctx, id)
			},
			func(data any, err error) poll.Result {
				if err != nil {
					s.store.SetPollError(KindViewer, id, err.Error())
					return poll.Continue
				}
				patch := data.(ViewerPatch)
				s.store.ApplyViewerPatch(id, patch)
				logging.Tick(logging.CompSync, "viewer_status_poll", slog.String("id", id))
				if patch.Status != nil && patch.Status.IsTerminal() {
					s.forget(key)
					syncLog.Debug("viewer_reached_terminal", slog.String("id", id), slog.String("status", string(*patch.Status)))
					return poll.StopLoop
				}
				return poll.Continue
			})
	}

	s.start(ctx, loopKey{kind: KindViewer, id: id, aspect: aspectLogs}, s.iv.Logs,
		func(ctx context.Context) (any, error) {
			return s.client.ViewerLogs(ctx, id)
		},
		func(data any, err error) poll.Result {
			if err != nil {
				// Log fetch failures are not worth an entity error flag;
				// the status loop already reports entity health.
				syncLog.Debug("viewer_logs_poll_failed", slog.String("id", id), slog.String("error", err.Error()))
				return poll.Continue
			}
			s.store.PutViewerLogs(id, data.([]LogEntry))
			return poll.Continue
		})
}

// UnsubscribeViewer stops both viewer loops.
func (s *Synchronizer) UnsubscribeViewer(id string) {
	s.stopKeys(
		loopKey{kind: KindViewer, id: id, aspect: aspectStatus},
		loopKey{kind: KindViewer, id: id, aspect: aspectLogs},
	)
}

// SwitchViewer moves the detail subscription from one viewer to another.
// The old viewer's loops are fully stopped before the new ones start, so
// a stale loop can never write into a slot no longer displayed.
func (s *Synchronizer) SwitchViewer(ctx context.Context, oldID, newID string) {
	if oldID == newID {
		return
	}
	if oldID != "" {
		s.UnsubscribeViewer(oldID)
	}
	if newID != "" {
		s.SubscribeViewer(ctx, newID)
	}
}

// HandleEvent consumes a change hint from the event feed: the matching
// loops get one immediate out-of-cycle poll. Purely advisory; hints for
// entities without a live loop are dropped.
func (s *Synchronizer) HandleEvent(kind EntityKind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, sched := range s.loops {
		switch {
		case key.aspect == aspectList && (kind == KindBox || kind == KindViewer):
			sched.Nudge()
		case key.kind == kind && key.id == id:
			sched.Nudge()
		case kind == KindSystem && key.kind == KindSystem:
			sched.Nudge()
		}
	}
}

// Refresh nudges every live loop once; bound to the manual refresh key.
func (s *Synchronizer) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sched := range s.loops {
		sched.Nudge()
	}
}

// Subscribed reports whether a status loop is live for the entity.
func (s *Synchronizer) Subscribed(kind EntityKind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loops[loopKey{kind: kind, id: id, aspect: aspectStatus}]
	return ok
}

// StopAll cancels every loop. Called on shutdown.
func (s *Synchronizer) StopAll() {
	s.mu.Lock()
	scheds := make([]*poll.Scheduler, 0, len(s.loops))
	for key, sched := range s.loops {
		scheds = append(scheds, sched)
		delete(s.loops, key)
	}
	s.mu.Unlock()
	for _, sched := range scheds {
		sched.Stop()
	}
}

// start registers and launches one loop. A key that already has a live
// scheduler is left alone: at most one loop per key, ever.
func (s *Synchronizer) start(ctx context.Context, key loopKey, interval time.Duration, fetch poll.FetchFunc, deliver poll.DeliverFunc) {
	s.mu.Lock()
	if _, exists := s.loops[key]; exists {
		s.mu.Unlock()
		return
	}
	sched := poll.New(loopName(key), interval, fetch, deliver)
	s.loops[key] = sched
	s.mu.Unlock()

	if err := sched.Start(ctx); err != nil {
		syncLog.Warn("loop_start_failed", slog.String("target", loopName(key)), slog.String("error", err.Error()))
		s.forget(key)
	}
}

// forget removes a loop entry. Called by retiring deliver callbacks and
// by start on failure; stopping the scheduler is the caller's business.
func (s *Synchronizer) forget(key loopKey) {
	s.mu.Lock()
	delete(s.loops, key)
	s.mu.Unlock()
}

// stopKeys removes the entries first and stops the schedulers after
// releasing the lock: Stop blocks until an in-flight delivery finishes,
// and deliveries may call forget.
func (s *Synchronizer) stopKeys(keys ...loopKey) {
	s.mu.Lock()
	var scheds []*poll.Scheduler
	for _, key := range keys {
		if sched, ok := s.loops[key]; ok {
			scheds = append(scheds, sched)
			delete(s.loops, key)
		}
	}
	s.mu.Unlock()
	for _, sched := range scheds {
		sched.Stop()
	}
}

func loopName(key loopKey) string {
	name := string(key.kind)
	if key.id != "" {
		name += ":" + key.id
	}
	return name + ":" + key.aspect
}
