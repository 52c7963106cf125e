package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string   { return &s }
func statusPtr(s Status) *Status { return &s }
func tabsPtr(tabs []Tab) *[]Tab  { return &tabs }

func seedViewer(s *Store, id string, tabs int) {
	v := Viewer{ID: id, BoxID: "box-1", Status: StatusRunning, MaxTabs: 5}
	for i := 0; i < tabs; i++ {
		v.Tabs = append(v.Tabs, Tab{Status: StatusRunning})
	}
	s.MergeViewer(v)
}

func TestPutBoxesAuthoritativeMembership(t *testing.T) {
	s := NewStore()
	s.PutBoxes([]Box{{ID: "a"}, {ID: "b"}})
	seedViewer(s, "v-on-b", 1)
	s.MergeViewer(Viewer{ID: "v-on-b", BoxID: "b", Status: StatusRunning})

	s.PutBoxes([]Box{{ID: "a"}})

	_, ok := s.Box("b")
	assert.False(t, ok, "box absent from the list response must be dropped")
	_, ok = s.Viewer("v-on-b")
	assert.False(t, ok, "viewers cascade with their box")
	_, ok = s.Box("a")
	assert.True(t, ok)
}

func TestApplyViewerPatchSkipsAbsentFields(t *testing.T) {
	s := NewStore()
	s.MergeViewer(Viewer{
		ID: "v1", BoxID: "box-1", Status: StatusStarting,
		StreamURL: "https://example.test/stream/alpha",
		Streamer:  "alpha",
	})

	s.ApplyViewerPatch("v1", ViewerPatch{
		Status:         statusPtr(StatusRunning),
		PlaybackStatus: strPtr("playing"),
	})

	v, ok := s.Viewer("v1")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, v.Status)
	assert.Equal(t, "playing", v.PlaybackStatus)
	assert.Equal(t, "https://example.test/stream/alpha", v.StreamURL,
		"fields absent from a partial snapshot keep their merged value")
	assert.Equal(t, "alpha", v.Streamer)
}

func TestApplyViewerPatchUnknownIDIgnored(t *testing.T) {
	s := NewStore()
	s.ApplyViewerPatch("ghost", ViewerPatch{Status: statusPtr(StatusRunning)})
	_, ok := s.Viewer("ghost")
	assert.False(t, ok)
}

func TestActiveTabSurvivesMergeAndClamps(t *testing.T) {
	s := NewStore()
	seedViewer(s, "v1", 3)
	s.SetActiveTab("v1", 2)

	// Merge a snapshot with fewer tabs; the client-owned pointer is
	// retained and clamped to the new last index.
	s.ApplyViewerPatch("v1", ViewerPatch{Tabs: tabsPtr([]Tab{{}, {}})})

	idx, ok := s.ActiveTab("v1")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	// No tabs at all: pointer becomes undefined.
	s.ApplyViewerPatch("v1", ViewerPatch{Tabs: tabsPtr([]Tab{})})
	_, ok = s.ActiveTab("v1")
	assert.False(t, ok)
}

func TestSetActiveTabClamped(t *testing.T) {
	s := NewStore()
	seedViewer(s, "v1", 2)

	s.SetActiveTab("v1", 99)
	idx, _ := s.ActiveTab("v1")
	assert.Equal(t, 1, idx)

	s.SetActiveTab("v1", -3)
	idx, _ = s.ActiveTab("v1")
	assert.Equal(t, 0, idx)
}

func TestRemoveTabPointerRules(t *testing.T) {
	cases := []struct {
		name       string
		tabs       int
		active     int
		close      int
		wantActive int
	}{
		{"close right of active", 4, 1, 3, 1},
		{"close left of active", 4, 2, 0, 1},
		{"close the active tab", 4, 2, 2, 1},
		{"close active at zero", 4, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore()
			seedViewer(s, "v1", tc.tabs)
			s.SetActiveTab("v1", tc.active)

			s.RemoveTab("v1", tc.close)

			idx, ok := s.ActiveTab("v1")
			require.True(t, ok)
			assert.Equal(t, tc.wantActive, idx)
			v, _ := s.Viewer("v1")
			assert.Len(t, v.Tabs, tc.tabs-1)
		})
	}
}

func TestRemoveLastTabUndefinesPointer(t *testing.T) {
	s := NewStore()
	seedViewer(s, "v1", 1)
	s.SetActiveTab("v1", 0)

	s.RemoveTab("v1", 0)

	_, ok := s.ActiveTab("v1")
	assert.False(t, ok)
}

func TestAppendTabActivatesPlaceholder(t *testing.T) {
	s := NewStore()
	seedViewer(s, "v1", 2)
	s.SetActiveTab("v1", 0)

	s.AppendTab("v1")

	v, _ := s.Viewer("v1")
	require.Len(t, v.Tabs, 3)
	assert.Equal(t, StatusStarting, v.Tabs[2].Status)
	idx, _ := s.ActiveTab("v1")
	assert.Equal(t, 2, idx)
}

func TestPollErrorRetainsDataAndClearsOnSuccess(t *testing.T) {
	s := NewStore()
	s.MergeBox(Box{ID: "a", Status: StatusRunning, IPAddress: "10.0.0.7"})

	s.SetPollError(KindBox, "a", "connection refused")

	b, ok := s.Box("a")
	require.True(t, ok, "a failed poll keeps the last known data")
	assert.Equal(t, "10.0.0.7", b.IPAddress)
	msg, flagged := s.PollError(KindBox, "a")
	assert.True(t, flagged)
	assert.Equal(t, "connection refused", msg)

	s.ApplyBoxPatch("a", BoxPatch{Status: statusPtr(StatusRunning)})
	_, flagged = s.PollError(KindBox, "a")
	assert.False(t, flagged, "a successful merge clears the error flag")
}

func TestListPollErrorClearsOnSuccessfulMerge(t *testing.T) {
	s := NewStore()
	// The empty ID is the list-level flag for the collection loop.
	s.SetPollError(KindBox, "", "dial tcp: connection refused")

	s.PutBoxes([]Box{{ID: "a", Status: StatusRunning}})

	_, flagged := s.PollError(KindBox, "")
	assert.False(t, flagged, "a successful list merge clears the list-level flag")
}

func TestWatchCoalescesBursts(t *testing.T) {
	s := NewStore()
	for i := 0; i < 10; i++ {
		s.MergeBox(Box{ID: "a"})
	}
	// Exactly one pending wakeup regardless of burst size.
	select {
	case <-s.Watch():
	default:
		t.Fatal("expected a pending change signal")
	}
	select {
	case <-s.Watch():
		t.Fatal("burst should coalesce into one signal")
	default:
	}
}

func TestReadsReturnCopies(t *testing.T) {
	s := NewStore()
	seedViewer(s, "v1", 2)

	v, _ := s.Viewer("v1")
	v.Tabs[0].Status = StatusError
	v.Streamer = "mutated"

	fresh, _ := s.Viewer("v1")
	assert.Equal(t, StatusRunning, fresh.Tabs[0].Status)
	assert.Empty(t, fresh.Streamer)
}

func TestViewersForBoxSorted(t *testing.T) {
	s := NewStore()
	s.MergeViewer(Viewer{ID: "v2", BoxID: "b"})
	s.MergeViewer(Viewer{ID: "v1", BoxID: "b"})
	s.MergeViewer(Viewer{ID: "v3", BoxID: "other"})

	got := s.ViewersForBox("b")
	require.Len(t, got, 2)
	assert.Equal(t, "v1", got[0].ID)
	assert.Equal(t, "v2", got[1].ID)
}
