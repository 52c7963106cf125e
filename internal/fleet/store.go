package fleet

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/CursedScorpio/fleetdeck/internal/logging"
)

var storeLog = logging.ForComponent(logging.CompStore)

// entityKey addresses per-entity side tables (resources, poll errors).
type entityKey struct {
	Kind EntityKind
	ID   string
}

// Store is the central in-memory model of the fleet. All mutation goes
// through merge/action methods so the client-only invariants (active tab
// bounds, severity derived at read time) are enforced in one place.
//
// Reads return copies; callers never hold references into the store.
// Merges for one entity apply in fetch-completion order because every
// writer serializes on the same mutex; no cross-entity ordering exists
// or is needed.
type Store struct {
	mu       sync.RWMutex
	boxes    map[string]*Box
	viewers  map[string]*Viewer
	active   map[string]int // viewer ID -> active tab index; absent = undefined
	res      map[entityKey]ResourceSnapshot
	logs     map[string][]LogEntry
	metrics  *SystemMetrics
	pollErrs map[entityKey]string

	changed chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		boxes:    make(map[string]*Box),
		viewers:  make(map[string]*Viewer),
		active:   make(map[string]int),
		res:      make(map[entityKey]ResourceSnapshot),
		logs:     make(map[string][]LogEntry),
		pollErrs: make(map[entityKey]string),
		changed:  make(chan struct{}, 1),
	}
}

// Watch returns a signal channel that receives after any mutation. The
// channel is buffered and written non-blocking, so bursts of merges
// coalesce into a single wakeup for the consumer.
func (s *Store) Watch() <-chan struct{} {
	return s.changed
}

func (s *Store) notifyLocked() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// ---- boxes ----

// PutBoxes replaces the set of known boxes with the server's list. The
// list response is authoritative for membership: boxes absent from it
// are dropped, along with their viewers.
func (s *Store) PutBoxes(boxes []Box) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(boxes))
	for i := range boxes {
		b := boxes[i]
		seen[b.ID] = true
		s.boxes[b.ID] = &b
		delete(s.pollErrs, entityKey{KindBox, b.ID})
	}
	// The empty ID is the list-level flag set by a failed collection poll.
	delete(s.pollErrs, entityKey{KindBox, ""})
	for id := range s.boxes {
		if !seen[id] {
			delete(s.boxes, id)
			for vid, v := range s.viewers {
				if v.BoxID == id {
					s.dropViewerLocked(vid)
				}
			}
		}
	}
	s.notifyLocked()
}

// MergeBox applies a full box snapshot.
func (s *Store) MergeBox(b Box) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boxes[b.ID] = &b
	delete(s.pollErrs, entityKey{KindBox, b.ID})
	s.notifyLocked()
}

// ApplyBoxPatch merges a partial box snapshot. Unknown IDs are ignored;
// the status loop can outlive a deletion by one cycle.
func (s *Store) ApplyBoxPatch(id string, p BoxPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boxes[id]
	if !ok {
		storeLog.Debug("patch_for_unknown_box", slog.String("id", id))
		return
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.ViewerIDs != nil {
		b.ViewerIDs = append([]string(nil), p.ViewerIDs...)
	}
	if p.StreamURL != nil {
		b.StreamURL = *p.StreamURL
	}
	if p.IPAddress != nil {
		b.IPAddress = *p.IPAddress
	}
	if p.Error != nil {
		b.Error = *p.Error
	}
	delete(s.pollErrs, entityKey{KindBox, id})
	s.notifyLocked()
}

// RemoveBox drops a box and its viewers after a successful delete action.
func (s *Store) RemoveBox(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boxes, id)
	delete(s.pollErrs, entityKey{KindBox, id})
	delete(s.res, entityKey{KindBox, id})
	for vid, v := range s.viewers {
		if v.BoxID == id {
			s.dropViewerLocked(vid)
		}
	}
	s.notifyLocked()
}

// Box returns a copy of one box.
func (s *Store) Box(id string) (Box, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boxes[id]
	if !ok {
		return Box{}, false
	}
	out := *b
	out.ViewerIDs = append([]string(nil), b.ViewerIDs...)
	return out, true
}

// Boxes returns all boxes sorted by ID.
func (s *Store) Boxes() []Box {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Box, 0, len(s.boxes))
	for _, b := range s.boxes {
		cp := *b
		cp.ViewerIDs = append([]string(nil), b.ViewerIDs...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- viewers ----

// PutViewers replaces the set of known viewers, authoritative for
// membership like PutBoxes. Active tab pointers of surviving viewers are
// preserved and reclamped.
func (s *Store) PutViewers(viewers []Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(viewers))
	for i := range viewers {
		v := viewers[i]
		seen[v.ID] = true
		s.viewers[v.ID] = &v
		s.clampActiveLocked(v.ID)
		delete(s.pollErrs, entityKey{KindViewer, v.ID})
	}
	for id := range s.viewers {
		if !seen[id] {
			s.dropViewerLocked(id)
		}
	}
	s.notifyLocked()
}

// MergeViewer applies a full viewer snapshot. Server-owned fields are
// replaced wholesale; the client-owned active tab pointer survives and is
// reclamped against the new tab array.
func (s *Store) MergeViewer(v Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewers[v.ID] = &v
	s.clampActiveLocked(v.ID)
	delete(s.pollErrs, entityKey{KindViewer, v.ID})
	s.notifyLocked()
}

// ApplyViewerPatch merges a partial viewer snapshot. A present tab array
// is authoritative for tab content and triggers pointer reclamping.
func (s *Store) ApplyViewerPatch(id string, p ViewerPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.viewers[id]
	if !ok {
		storeLog.Debug("patch_for_unknown_viewer", slog.String("id", id))
		return
	}
	if p.Status != nil {
		v.Status = *p.Status
	}
	if p.StreamURL != nil {
		v.StreamURL = *p.StreamURL
	}
	if p.Streamer != nil {
		v.Streamer = *p.Streamer
	}
	if p.MaxTabs != nil {
		v.MaxTabs = *p.MaxTabs
	}
	if p.Tabs != nil {
		v.Tabs = append([]Tab(nil), (*p.Tabs)...)
		s.clampActiveLocked(id)
	}
	if p.PlaybackStatus != nil {
		v.PlaybackStatus = *p.PlaybackStatus
	}
	if p.ChatParsingEnabled != nil {
		v.ChatParsingEnabled = *p.ChatParsingEnabled
	}
	if p.ResourceLimits != nil {
		v.ResourceLimits = *p.ResourceLimits
	}
	if p.Error != nil {
		v.Error = *p.Error
	}
	delete(s.pollErrs, entityKey{KindViewer, id})
	s.notifyLocked()
}

// RemoveViewer drops a viewer after a delete action.
func (s *Store) RemoveViewer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropViewerLocked(id)
	s.notifyLocked()
}

func (s *Store) dropViewerLocked(id string) {
	delete(s.viewers, id)
	delete(s.active, id)
	delete(s.logs, id)
	delete(s.pollErrs, entityKey{KindViewer, id})
	delete(s.res, entityKey{KindViewer, id})
}

// Viewer returns a copy of one viewer.
func (s *Store) Viewer(id string) (Viewer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.viewers[id]
	if !ok {
		return Viewer{}, false
	}
	return copyViewer(v), true
}

// Viewers returns all viewers sorted by ID.
func (s *Store) Viewers() []Viewer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Viewer, 0, len(s.viewers))
	for _, v := range s.viewers {
		out = append(out, copyViewer(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ViewersForBox returns the viewers of one box, sorted by ID.
func (s *Store) ViewersForBox(boxID string) []Viewer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Viewer
	for _, v := range s.viewers {
		if v.BoxID == boxID {
			out = append(out, copyViewer(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyViewer(v *Viewer) Viewer {
	cp := *v
	cp.Tabs = append([]Tab(nil), v.Tabs...)
	return cp
}

// ---- active tab pointer (client-owned) ----

// ActiveTab returns the active tab index for a viewer. ok is false when
// the viewer has no tabs (the pointer is undefined).
func (s *Store) ActiveTab(viewerID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.active[viewerID]
	return idx, ok
}

// SetActiveTab sets the pointer, clamped into the current tab range.
func (s *Store) SetActiveTab(viewerID string, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.viewers[viewerID]
	if !ok || len(v.Tabs) == 0 {
		delete(s.active, viewerID)
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx > len(v.Tabs)-1 {
		idx = len(v.Tabs) - 1
	}
	s.active[viewerID] = idx
	s.notifyLocked()
}

// AppendTab records a locally observed add-tab success: a placeholder tab
// joins the list and becomes active. The next merged snapshot replaces
// its content.
func (s *Store) AppendTab(viewerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.viewers[viewerID]
	if !ok {
		return
	}
	v.Tabs = append(v.Tabs, Tab{Status: StatusStarting})
	s.active[viewerID] = len(v.Tabs) - 1
	s.notifyLocked()
}

// RemoveTab records a close-tab success at index i and adjusts the
// pointer: closing left of the active tab shifts it down; closing the
// active tab itself moves to the previous one when there is one.
func (s *Store) RemoveTab(viewerID string, i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.viewers[viewerID]
	if !ok || i < 0 || i >= len(v.Tabs) {
		return
	}
	v.Tabs = append(v.Tabs[:i], v.Tabs[i+1:]...)

	if active, has := s.active[viewerID]; has {
		if i < active || (i == active && active > 0) {
			active--
		}
		s.active[viewerID] = active
	}
	s.clampActiveLocked(viewerID)
	s.notifyLocked()
}

// clampActiveLocked re-establishes invariant 1 for one viewer: with tabs
// present the pointer lands in [0, len-1], without tabs it is undefined.
func (s *Store) clampActiveLocked(viewerID string) {
	v, ok := s.viewers[viewerID]
	if !ok || len(v.Tabs) == 0 {
		delete(s.active, viewerID)
		return
	}
	idx, has := s.active[viewerID]
	if !has || idx < 0 {
		idx = 0
	}
	if idx > len(v.Tabs)-1 {
		idx = len(v.Tabs) - 1
	}
	s.active[viewerID] = idx
}

// ---- resources / metrics ----

// PutResources stores the latest resource snapshot for one entity.
func (s *Store) PutResources(kind EntityKind, id string, snap ResourceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.res[entityKey{kind, id}] = snap
	s.notifyLocked()
}

// Resources returns the latest resource snapshot for one entity.
func (s *Store) Resources(kind EntityKind, id string) (ResourceSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.res[entityKey{kind, id}]
	return snap, ok
}

// PutSystemMetrics stores the latest system metrics snapshot.
func (s *Store) PutSystemMetrics(m SystemMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = &m
	delete(s.pollErrs, entityKey{KindSystem, ""})
	s.notifyLocked()
}

// SystemMetrics returns the latest system metrics snapshot.
func (s *Store) SystemMetrics() (SystemMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.metrics == nil {
		return SystemMetrics{}, false
	}
	return *s.metrics, true
}

// PutViewerLogs stores the latest log tail for a viewer.
func (s *Store) PutViewerLogs(id string, entries []LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[id] = entries
	s.notifyLocked()
}

// ViewerLogs returns the latest fetched log tail for a viewer.
func (s *Store) ViewerLogs(id string) []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LogEntry(nil), s.logs[id]...)
}

// ---- poll error flags ----

// SetPollError flags an entity whose last poll cycle failed. The stored
// entity data is retained; displays show last known good state plus the
// indicator.
func (s *Store) SetPollError(kind EntityKind, id string, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollErrs[entityKey{kind, id}] = msg
	s.notifyLocked()
}

// PollError returns the current poll error flag for an entity, if any.
func (s *Store) PollError(kind EntityKind, id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.pollErrs[entityKey{kind, id}]
	return msg, ok
}
