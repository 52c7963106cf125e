package fleet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTabClient struct {
	addCalls     int
	closeCalls   int
	shotCalls    int
	qualityCalls int
	err          error
}

func (f *fakeTabClient) AddTab(ctx context.Context, viewerID string) error {
	f.addCalls++
	return f.err
}

func (f *fakeTabClient) CloseTab(ctx context.Context, viewerID string, tabIndex int) error {
	f.closeCalls++
	return f.err
}

func (f *fakeTabClient) TabScreenshot(ctx context.Context, viewerID string, tabIndex int) error {
	f.shotCalls++
	return f.err
}

func (f *fakeTabClient) ForceTabLowestQuality(ctx context.Context, viewerID string, tabIndex int) error {
	f.qualityCalls++
	return f.err
}

func TestAddTabRejectedAtLimitWithoutRequest(t *testing.T) {
	store := NewStore()
	store.MergeViewer(Viewer{
		ID: "v1", Status: StatusRunning, MaxTabs: 2,
		Tabs: []Tab{{}, {}},
	})
	fc := &fakeTabClient{}
	m := NewTabManager(store, fc)

	err := m.AddTab(context.Background(), "v1")

	assert.ErrorIs(t, err, ErrMaxTabs)
	assert.Zero(t, fc.addCalls, "a local limit reject must not hit the backend")
}

func TestAddTabAppendsPlaceholderOnSuccess(t *testing.T) {
	store := NewStore()
	store.MergeViewer(Viewer{ID: "v1", Status: StatusRunning, MaxTabs: 3, Tabs: []Tab{{}}})
	fc := &fakeTabClient{}
	m := NewTabManager(store, fc)

	require.NoError(t, m.AddTab(context.Background(), "v1"))

	assert.Equal(t, 1, fc.addCalls)
	v, _ := store.Viewer("v1")
	require.Len(t, v.Tabs, 2)
	assert.Equal(t, StatusStarting, v.Tabs[1].Status)
	idx, _ := store.ActiveTab("v1")
	assert.Equal(t, 1, idx)
}

func TestAddTabBackendErrorLeavesStoreUntouched(t *testing.T) {
	store := NewStore()
	store.MergeViewer(Viewer{ID: "v1", Status: StatusRunning, MaxTabs: 3, Tabs: []Tab{{}}})
	fc := &fakeTabClient{err: errors.New("boom")}
	m := NewTabManager(store, fc)

	assert.Error(t, m.AddTab(context.Background(), "v1"))
	v, _ := store.Viewer("v1")
	assert.Len(t, v.Tabs, 1)
}

func TestAddTabUnknownViewer(t *testing.T) {
	m := NewTabManager(NewStore(), &fakeTabClient{})
	assert.ErrorIs(t, m.AddTab(context.Background(), "nope"), ErrNoSuchViewer)
}

func TestCloseTabValidatesIndexAtDispatch(t *testing.T) {
	store := NewStore()
	store.MergeViewer(Viewer{ID: "v1", Status: StatusRunning, MaxTabs: 5, Tabs: []Tab{{}, {}}})
	fc := &fakeTabClient{}
	m := NewTabManager(store, fc)

	assert.ErrorIs(t, m.CloseTab(context.Background(), "v1", 2), ErrNoSuchTab)
	assert.ErrorIs(t, m.CloseTab(context.Background(), "v1", -1), ErrNoSuchTab)
	assert.Zero(t, fc.closeCalls)

	require.NoError(t, m.CloseTab(context.Background(), "v1", 1))
	assert.Equal(t, 1, fc.closeCalls)
	v, _ := store.Viewer("v1")
	assert.Len(t, v.Tabs, 1)
}

func TestScreenshotStaleIndexFails(t *testing.T) {
	store := NewStore()
	store.MergeViewer(Viewer{ID: "v1", Status: StatusRunning, MaxTabs: 5, Tabs: []Tab{{}, {}, {}}})
	fc := &fakeTabClient{}
	m := NewTabManager(store, fc)

	// A concurrent close shrinks the array before dispatch.
	store.RemoveTab("v1", 2)

	assert.ErrorIs(t, m.Screenshot(context.Background(), "v1", 2), ErrNoSuchTab)
	assert.Zero(t, fc.shotCalls)

	require.NoError(t, m.Screenshot(context.Background(), "v1", 1))
	assert.Equal(t, 1, fc.shotCalls)
}

func TestForceLowestQualityResolvesIndex(t *testing.T) {
	store := NewStore()
	store.MergeViewer(Viewer{ID: "v1", Status: StatusRunning, MaxTabs: 5, Tabs: []Tab{{}}})
	fc := &fakeTabClient{}
	m := NewTabManager(store, fc)

	require.NoError(t, m.ForceLowestQuality(context.Background(), "v1", 0))
	assert.Equal(t, 1, fc.qualityCalls)
	assert.ErrorIs(t, m.ForceLowestQuality(context.Background(), "v1", 5), ErrNoSuchTab)
}
