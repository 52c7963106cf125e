package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CursedScorpio/fleetdeck/internal/logging"
)

var tabsLog = logging.ForComponent(logging.CompTabs)

// ErrMaxTabs is returned by AddTab when the viewer is already at its tab
// ceiling. No request is issued in that case.
var ErrMaxTabs = errors.New("fleet: viewer is at its tab limit")

// ErrNoSuchTab is returned when a tab index no longer resolves against
// the current tab array, e.g. because a concurrent close reindexed it.
var ErrNoSuchTab = errors.New("fleet: tab index out of range")

// ErrNoSuchViewer is returned for operations on unknown viewer IDs.
var ErrNoSuchViewer = errors.New("fleet: unknown viewer")

// TabClient is the slice of the REST surface the tab manager needs.
type TabClient interface {
	AddTab(ctx context.Context, viewerID string) error
	CloseTab(ctx context.Context, viewerID string, tabIndex int) error
	TabScreenshot(ctx context.Context, viewerID string, tabIndex int) error
	ForceTabLowestQuality(ctx context.Context, viewerID string, tabIndex int) error
}

// TabManager drives per-viewer tab lifecycle: the ordered tab list and
// the client-owned active pointer. Tabs are addressed by position, and
// positions are reused after a close, so every tab-scoped action
// revalidates its index against the store at the moment of dispatch.
type TabManager struct {
	store  *Store
	client TabClient
}

// NewTabManager wires the manager to the store and the REST client.
func NewTabManager(store *Store, client TabClient) *TabManager {
	return &TabManager{store: store, client: client}
}

// AddTab opens a new tab on the viewer. Rejected locally, without a
// request, when the viewer is already at MaxTabs. On success the new
// last index becomes active.
func (m *TabManager) AddTab(ctx context.Context, viewerID string) error {
	v, ok := m.store.Viewer(viewerID)
	if !ok {
		return ErrNoSuchViewer
	}
	if v.MaxTabs > 0 && len(v.Tabs) >= v.MaxTabs {
		return fmt.Errorf("%w: %d/%d open", ErrMaxTabs, len(v.Tabs), v.MaxTabs)
	}
	if err := m.client.AddTab(ctx, viewerID); err != nil {
		return err
	}
	m.store.AppendTab(viewerID)
	tabsLog.Debug("tab_added", slog.String("viewer", viewerID))
	return nil
}

// CloseTab closes the tab at index i. The active pointer is adjusted
// afterwards: an index left of the pointer shifts it down by one, closing
// the active tab itself falls back to the previous tab, and the result is
// always a valid index or undefined once the list is empty.
func (m *TabManager) CloseTab(ctx context.Context, viewerID string, i int) error {
	v, ok := m.store.Viewer(viewerID)
	if !ok {
		return ErrNoSuchViewer
	}
	if i < 0 || i >= len(v.Tabs) {
		return ErrNoSuchTab
	}
	if err := m.client.CloseTab(ctx, viewerID, i); err != nil {
		return err
	}
	m.store.RemoveTab(viewerID, i)
	tabsLog.Debug("tab_closed", slog.String("viewer", viewerID), slog.Int("index", i))
	return nil
}

// Screenshot captures the tab at index i. The index is resolved against
// the current store-merged array here, not against whatever the caller
// saw earlier; a stale index fails instead of shooting the wrong tab.
func (m *TabManager) Screenshot(ctx context.Context, viewerID string, i int) error {
	if err := m.resolve(viewerID, i); err != nil {
		return err
	}
	return m.client.TabScreenshot(ctx, viewerID, i)
}

// ForceLowestQuality drops the tab's stream to its lowest quality tier.
// Same dispatch-time index resolution as Screenshot.
func (m *TabManager) ForceLowestQuality(ctx context.Context, viewerID string, i int) error {
	if err := m.resolve(viewerID, i); err != nil {
		return err
	}
	return m.client.ForceTabLowestQuality(ctx, viewerID, i)
}

// ActivateTab moves the active pointer, clamped by the store.
func (m *TabManager) ActivateTab(viewerID string, i int) {
	m.store.SetActiveTab(viewerID, i)
}

func (m *TabManager) resolve(viewerID string, i int) error {
	v, ok := m.store.Viewer(viewerID)
	if !ok {
		return ErrNoSuchViewer
	}
	if i < 0 || i >= len(v.Tabs) {
		return ErrNoSuchTab
	}
	return nil
}
