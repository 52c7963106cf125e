package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
)

type fakeFleetClient struct {
	mu      sync.Mutex
	boxes   []fleet.Box
	viewers []fleet.Viewer
}

func (f *fakeFleetClient) ListBoxes(ctx context.Context) ([]fleet.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.boxes, nil
}

func (f *fakeFleetClient) ListViewers(ctx context.Context) ([]fleet.Viewer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewers, nil
}

func (f *fakeFleetClient) BoxStatus(ctx context.Context, id string) (fleet.BoxPatch, error) {
	return fleet.BoxPatch{}, nil
}

func (f *fakeFleetClient) ViewerStatus(ctx context.Context, id string) (fleet.ViewerPatch, error) {
	return fleet.ViewerPatch{}, nil
}

func (f *fakeFleetClient) ViewerLogs(ctx context.Context, id string) ([]fleet.LogEntry, error) {
	return nil, nil
}

func (f *fakeFleetClient) SystemMetrics(ctx context.Context) (fleet.SystemMetrics, error) {
	return fleet.SystemMetrics{}, nil
}

func (f *fakeFleetClient) SystemResources(ctx context.Context) (fleet.ResourceReport, error) {
	return fleet.ResourceReport{}, nil
}

func newTestHome(t *testing.T) *Home {
	t.Helper()
	boxes := []fleet.Box{{ID: "b1", Name: "rack-1", Status: fleet.StatusRunning}}
	viewers := []fleet.Viewer{
		{ID: "v1", BoxID: "b1", Status: fleet.StatusRunning},
		{ID: "v2", BoxID: "b1", Status: fleet.StatusRunning},
	}
	store := fleet.NewStore()
	store.PutBoxes(boxes)
	store.PutViewers(viewers)

	quiet := time.Hour
	syncer := fleet.NewSynchronizer(store,
		&fakeFleetClient{boxes: boxes, viewers: viewers},
		fleet.Intervals{Status: quiet, System: quiet, Resources: quiet, Chat: quiet, Logs: quiet})
	t.Cleanup(syncer.StopAll)

	h := NewHome(Options{
		Ctx:        context.Background(),
		Store:      store,
		Syncer:     syncer,
		Tabs:       fleet.NewTabManager(store, nil),
		Chat:       fleet.NewChatSelector(store, nil, quiet),
		Thresholds: fleet.DefaultThresholds(),
	})
	h.tree.rebuild(store)
	return h
}

func keyMsg(key tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg(tea.Key{Type: key})
}

func TestRapidSelectionMovesLeaveOneViewerLoop(t *testing.T) {
	h := newTestHome(t)

	// Rows are b1, v1, v2. Each move's handover completes inside Update,
	// so the second move cannot race the first.
	h.handleKey(keyMsg(tea.KeyDown))
	require.True(t, h.syncer.Subscribed(fleet.KindViewer, "v1"))

	h.handleKey(keyMsg(tea.KeyDown))

	assert.False(t, h.syncer.Subscribed(fleet.KindViewer, "v1"),
		"the old viewer's loop must be gone before the new one starts")
	assert.True(t, h.syncer.Subscribed(fleet.KindViewer, "v2"))
}

func TestSelectionMoveBoxToViewerSwapsLoops(t *testing.T) {
	h := newTestHome(t)

	h.handleKey(keyMsg(tea.KeyDown))
	h.handleKey(keyMsg(tea.KeyUp))

	assert.False(t, h.syncer.Subscribed(fleet.KindViewer, "v1"))
	assert.True(t, h.syncer.Subscribed(fleet.KindBox, "b1"))
}

func TestListPanelFlagsStaleFleetList(t *testing.T) {
	store := fleet.NewStore()
	store.PutBoxes([]fleet.Box{{ID: "b1", Status: fleet.StatusRunning}})
	h := &Home{store: store, tree: newFleetTree()}
	h.tree.rebuild(store)

	store.SetPollError(fleet.KindBox, "", "connection refused")
	out := h.renderListPanel(60, 20)

	assert.Contains(t, out, "list stale")
	assert.Contains(t, out, "connection refused")
}
