package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
)

func treeStore() *fleet.Store {
	s := fleet.NewStore()
	s.PutBoxes([]fleet.Box{
		{ID: "box-a", Name: "alpha rack", Status: fleet.StatusRunning},
		{ID: "box-b", Name: "beta rack", Status: fleet.StatusIdle},
	})
	s.PutViewers([]fleet.Viewer{
		{ID: "v1", BoxID: "box-a", Streamer: "north_stream", Status: fleet.StatusRunning},
		{ID: "v2", BoxID: "box-a", Streamer: "south_stream", Status: fleet.StatusStarting},
		{ID: "v3", BoxID: "box-b", Streamer: "east_stream", Status: fleet.StatusIdle},
	})
	return s
}

func TestRebuildNestsViewersUnderBoxes(t *testing.T) {
	tree := newFleetTree()
	tree.rebuild(treeStore())

	require.Len(t, tree.items, 5)
	assert.Equal(t, itemBox, tree.items[0].kind)
	assert.Equal(t, "box-a", tree.items[0].id)
	assert.Equal(t, itemViewer, tree.items[1].kind)
	assert.Equal(t, "north_stream", tree.items[1].label)
	assert.False(t, tree.items[1].isLast)
	assert.True(t, tree.items[2].isLast)
	assert.Equal(t, "box-b", tree.items[3].id)
}

func TestRebuildKeepsSelection(t *testing.T) {
	store := treeStore()
	tree := newFleetTree()
	tree.rebuild(store)

	// Select v2, then drop v1 from the fleet.
	tree.moveDown()
	tree.moveDown()
	it, _ := tree.selected()
	require.Equal(t, "v2", it.id)

	store.PutViewers([]fleet.Viewer{
		{ID: "v2", BoxID: "box-a", Streamer: "south_stream", Status: fleet.StatusStarting},
		{ID: "v3", BoxID: "box-b", Streamer: "east_stream", Status: fleet.StatusIdle},
	})
	tree.rebuild(store)

	it, ok := tree.selected()
	require.True(t, ok)
	assert.Equal(t, "v2", it.id, "the cursor follows the entity, not the row index")
}

func TestRebuildClampsCursorWhenSelectionGone(t *testing.T) {
	store := treeStore()
	tree := newFleetTree()
	tree.rebuild(store)
	for i := 0; i < 10; i++ {
		tree.moveDown()
	}

	store.PutBoxes([]fleet.Box{{ID: "box-a", Name: "alpha rack", Status: fleet.StatusRunning}})
	store.PutViewers(nil)
	tree.rebuild(store)

	it, ok := tree.selected()
	require.True(t, ok)
	assert.Equal(t, "box-a", it.id)
}

func TestCollapseHidesViewers(t *testing.T) {
	store := treeStore()
	tree := newFleetTree()
	tree.rebuild(store)

	tree.toggleCollapse()
	tree.rebuild(store)

	require.Len(t, tree.items, 4)
	assert.Equal(t, "box-a", tree.items[0].id)
	assert.Equal(t, "box-b", tree.items[1].id)
}

func TestFilterKeepsParentBoxOfMatchedViewer(t *testing.T) {
	tree := newFleetTree()
	store := treeStore()
	tree.rebuild(store)

	tree.filter.SetValue("east")
	tree.rebuild(store)

	require.Len(t, tree.items, 2)
	assert.Equal(t, itemBox, tree.items[0].kind)
	assert.Equal(t, "box-b", tree.items[0].id)
	assert.Equal(t, "east_stream", tree.items[1].label)
}

func TestFilterNoMatches(t *testing.T) {
	tree := newFleetTree()
	store := treeStore()
	tree.rebuild(store)

	tree.filter.SetValue("zzzzzz")
	tree.rebuild(store)

	assert.Empty(t, tree.items)
	_, ok := tree.selected()
	assert.False(t, ok)
}
