package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
)

type itemKind int

const (
	itemBox itemKind = iota
	itemViewer
)

// listItem is one row of the fleet tree: a box, or a viewer under it.
type listItem struct {
	kind   itemKind
	id     string
	boxID  string
	label  string
	status fleet.Status
	isLast bool
}

// fleetTree is the left pane: boxes with their viewers nested under
// them, cursor navigation, and a fuzzy filter.
type fleetTree struct {
	items     []listItem
	cursor    int
	offset    int
	collapsed map[string]bool

	filtering bool
	filter    textinput.Model
}

func newFleetTree() fleetTree {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter"
	ti.CharLimit = 64
	return fleetTree{
		collapsed: make(map[string]bool),
		filter:    ti,
	}
}

// rebuild rederives the visible rows from the store. The cursor follows
// the previously selected entity when it still exists; otherwise it
// clamps to the nearest row.
func (t *fleetTree) rebuild(store *fleet.Store) {
	prevKind, prevID := t.selectedEntity()

	var items []listItem
	for _, b := range store.Boxes() {
		label := b.Name
		if label == "" {
			label = b.ID
		}
		items = append(items, listItem{kind: itemBox, id: b.ID, label: label, status: b.Status})
		if t.collapsed[b.ID] {
			continue
		}
		viewers := store.ViewersForBox(b.ID)
		for i, v := range viewers {
			vlabel := v.Streamer
			if vlabel == "" {
				vlabel = v.ID
			}
			items = append(items, listItem{
				kind:   itemViewer,
				id:     v.ID,
				boxID:  b.ID,
				label:  vlabel,
				status: v.Status,
				isLast: i == len(viewers)-1,
			})
		}
	}

	if q := t.filter.Value(); q != "" {
		items = filterItems(items, q)
	}
	t.items = items

	t.cursor = 0
	if prevID != "" {
		for i, it := range t.items {
			if it.kind == prevKind && it.id == prevID {
				t.cursor = i
				break
			}
		}
	}
	if t.cursor >= len(t.items) {
		t.cursor = len(t.items) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
}

// filterItems fuzzy-matches against row labels. A matched viewer keeps
// its parent box visible so the tree stays readable.
func filterItems(items []listItem, query string) []listItem {
	labels := make([]string, len(items))
	for i, it := range items {
		labels[i] = it.label
	}
	matches := fuzzy.Find(query, labels)

	keep := make(map[int]bool, len(matches))
	for _, m := range matches {
		keep[m.Index] = true
		if items[m.Index].kind == itemViewer {
			for j := m.Index - 1; j >= 0; j-- {
				if items[j].kind == itemBox {
					keep[j] = true
					break
				}
			}
		}
	}

	out := make([]listItem, 0, len(keep))
	for i, it := range items {
		if keep[i] {
			out = append(out, it)
		}
	}
	return out
}

func (t *fleetTree) selectedEntity() (itemKind, string) {
	if t.cursor < 0 || t.cursor >= len(t.items) {
		return itemBox, ""
	}
	it := t.items[t.cursor]
	return it.kind, it.id
}

func (t *fleetTree) selected() (listItem, bool) {
	if t.cursor < 0 || t.cursor >= len(t.items) {
		return listItem{}, false
	}
	return t.items[t.cursor], true
}

func (t *fleetTree) moveUp() {
	if t.cursor > 0 {
		t.cursor--
	}
}

func (t *fleetTree) moveDown() {
	if t.cursor < len(t.items)-1 {
		t.cursor++
	}
}

func (t *fleetTree) toggleCollapse() {
	it, ok := t.selected()
	if !ok || it.kind != itemBox {
		return
	}
	t.collapsed[it.id] = !t.collapsed[it.id]
}

// view renders the tree into the given box. height is rows available
// for items; the filter line is drawn by the caller.
func (t *fleetTree) view(width, height int) string {
	if len(t.items) == 0 {
		if t.filter.Value() != "" {
			return DimStyle.Render("no matches")
		}
		return DimStyle.Render("no boxes")
	}

	// Keep the cursor inside the window.
	if t.cursor < t.offset {
		t.offset = t.cursor
	}
	if t.cursor >= t.offset+height {
		t.offset = t.cursor - height + 1
	}

	var b strings.Builder
	end := t.offset + height
	if end > len(t.items) {
		end = len(t.items)
	}
	for i := t.offset; i < end; i++ {
		it := t.items[i]
		selected := i == t.cursor
		b.WriteString(t.renderItem(it, selected, width))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (t *fleetTree) renderItem(it listItem, selected bool, width int) string {
	indicator := StatusIndicator(it.status)

	var line string
	switch it.kind {
	case itemBox:
		marker := "▾"
		if t.collapsed[it.id] {
			marker = "▸"
		}
		label := runewidth.Truncate(it.label, width-6, "…")
		if selected {
			line = BoxItemSelectedStyle.Render(fmt.Sprintf("%s %s", marker, label)) + " " + indicator
		} else {
			line = TreeConnectorStyle.Render(marker) + " " + BoxItemStyle.Render(label) + " " + indicator
		}
	default:
		connector := "├─"
		if it.isLast {
			connector = "└─"
		}
		label := runewidth.Truncate(it.label, width-8, "…")
		if selected {
			line = TreeConnectorStyle.Render(connector) + " " + ViewerSelectedStyle.Render(label) + " " + indicator
		} else {
			line = TreeConnectorStyle.Render(connector) + " " + ViewerItemStyle.Render(label) + " " + indicator
		}
	}
	return line
}
