// Package ui is the terminal dashboard: a bubbletea program rendering
// the fleet store and driving subscriptions, tab actions, and chat
// selection from keyboard input.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/CursedScorpio/fleetdeck/internal/api"
	"github.com/CursedScorpio/fleetdeck/internal/clipboard"
	"github.com/CursedScorpio/fleetdeck/internal/config"
	"github.com/CursedScorpio/fleetdeck/internal/fleet"
	"github.com/CursedScorpio/fleetdeck/internal/logging"
)

var uiLog = logging.ForComponent(logging.CompUI)

const statusMsgTTL = 4 * time.Second

type (
	storeChangedMsg   struct{}
	chatChangedMsg    struct{}
	configReloadMsg   struct{ cfg *config.Config }
	statusExpireMsg   struct{ at time.Time }
	chatReconciledMsg struct{}

	actionDoneMsg struct {
		note string
		err  error
	}
)

// Home is the root model.
type Home struct {
	ctx    context.Context
	store  *fleet.Store
	syncer *fleet.Synchronizer
	tabs   *fleet.TabManager
	chat   *fleet.ChatSelector
	client *api.Client

	cfgWatcher *config.Watcher
	thresholds fleet.Thresholds

	tree   fleetTree
	width  int
	height int

	// subKind/subID is the entity whose detail loops are live.
	subKind itemKind
	subID   string

	statusMsg string
	statusAt  time.Time

	quitting bool
}

// Options wires the dashboard's collaborators.
type Options struct {
	Ctx        context.Context
	Store      *fleet.Store
	Syncer     *fleet.Synchronizer
	Tabs       *fleet.TabManager
	Chat       *fleet.ChatSelector
	Client     *api.Client
	CfgWatcher *config.Watcher
	Thresholds fleet.Thresholds
}

// NewHome creates the root model. The fleet and system loops are
// started here; per-entity loops follow the selection.
func NewHome(opts Options) *Home {
	h := &Home{
		ctx:        opts.Ctx,
		store:      opts.Store,
		syncer:     opts.Syncer,
		tabs:       opts.Tabs,
		chat:       opts.Chat,
		client:     opts.Client,
		cfgWatcher: opts.CfgWatcher,
		thresholds: opts.Thresholds,
		tree:       newFleetTree(),
	}
	h.syncer.SubscribeFleet(h.ctx)
	h.syncer.SubscribeSystem(h.ctx)
	return h
}

func (h *Home) Init() tea.Cmd {
	cmds := []tea.Cmd{h.waitStore(), h.waitChat()}
	if h.cfgWatcher != nil {
		cmds = append(cmds, h.waitConfig())
	}
	return tea.Batch(cmds...)
}

func (h *Home) waitStore() tea.Cmd {
	return func() tea.Msg {
		<-h.store.Watch()
		return storeChangedMsg{}
	}
}

func (h *Home) waitChat() tea.Cmd {
	return func() tea.Msg {
		<-h.chat.Watch()
		return chatChangedMsg{}
	}
}

func (h *Home) waitConfig() tea.Cmd {
	return func() tea.Msg {
		cfg, ok := <-h.cfgWatcher.Reloads()
		if !ok {
			return nil
		}
		return configReloadMsg{cfg: cfg}
	}
}

func (h *Home) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h.width = msg.Width
		h.height = msg.Height
		return h, nil

	case storeChangedMsg:
		h.tree.rebuild(h.store)
		h.syncSelection()
		return h, tea.Batch(h.waitStore(), h.reconcileChat())

	case chatChangedMsg:
		return h, h.waitChat()

	case chatReconciledMsg:
		return h, nil

	case configReloadMsg:
		h.thresholds = msg.cfg.Thresholds()
		InitTheme(msg.cfg.ResolveTheme())
		uiLog.Info("config_applied", slog.String("theme", msg.cfg.Theme))
		return h, tea.Batch(h.waitConfig(), h.setStatus("config reloaded"))

	case statusExpireMsg:
		if msg.at.Equal(h.statusAt) {
			h.statusMsg = ""
		}
		return h, nil

	case actionDoneMsg:
		if msg.err != nil {
			if api.IsValidation(msg.err) {
				return h, h.setStatus("rejected: " + msg.err.Error())
			}
			return h, h.setStatus("failed: " + msg.err.Error())
		}
		return h, h.setStatus(msg.note)

	case tea.KeyMsg:
		return h.handleKey(msg)
	}
	return h, nil
}

func (h *Home) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Filter input swallows everything but esc/enter while active.
	if h.tree.filtering {
		switch msg.String() {
		case "esc":
			h.tree.filtering = false
			h.tree.filter.SetValue("")
			h.tree.filter.Blur()
			h.tree.rebuild(h.store)
			return h, nil
		case "enter":
			h.tree.filtering = false
			h.tree.filter.Blur()
			return h, nil
		default:
			var cmd tea.Cmd
			h.tree.filter, cmd = h.tree.filter.Update(msg)
			h.tree.rebuild(h.store)
			h.syncSelection()
			return h, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		h.quitting = true
		return h, tea.Quit

	case "up", "k":
		h.tree.moveUp()
		h.syncSelection()
		return h, nil
	case "down", "j":
		h.tree.moveDown()
		h.syncSelection()
		return h, nil
	case "enter", " ":
		h.tree.toggleCollapse()
		h.tree.rebuild(h.store)
		h.syncSelection()
		return h, nil

	case "/":
		h.tree.filtering = true
		h.tree.filter.Focus()
		return h, nil

	case "r":
		h.syncer.Refresh()
		return h, h.setStatus("refreshing")

	case "c":
		return h, h.cycleChat()
	case "C":
		return h, h.runChatOff()

	case "t":
		return h.viewerAction("tab added", func(id string) error {
			return h.tabs.AddTab(h.ctx, id)
		})
	case "x":
		return h.viewerAction("tab closed", func(id string) error {
			active, _ := h.store.ActiveTab(id)
			return h.tabs.CloseTab(h.ctx, id, active)
		})
	case "S":
		return h.viewerAction("screenshot requested", func(id string) error {
			active, _ := h.store.ActiveTab(id)
			return h.tabs.Screenshot(h.ctx, id, active)
		})
	case "L":
		return h.viewerAction("lowest quality forced", func(id string) error {
			active, _ := h.store.ActiveTab(id)
			return h.tabs.ForceLowestQuality(h.ctx, id, active)
		})
	case "[":
		h.shiftActiveTab(-1)
		return h, nil
	case "]":
		h.shiftActiveTab(1)
		return h, nil

	case "y":
		return h, h.copySelected(false)
	case "Y":
		return h, h.copySelected(true)

	case "s":
		return h.entityAction("start requested", h.startEntity)
	case "p":
		return h.entityAction("stop requested", h.stopEntity)
	case "i":
		return h.boxAction("ip refresh requested", func(id string) error {
			return h.client.RefreshBoxIP(h.ctx, id)
		})
	}
	return h, nil
}

// syncSelection moves the detail subscriptions to the selected entity.
// It runs on the update goroutine so successive moves are applied in
// order; stopping a loop only waits out an in-flight delivery, which is
// short enough to not stall input.
func (h *Home) syncSelection() {
	it, ok := h.tree.selected()
	if !ok {
		return
	}
	if it.kind == h.subKind && it.id == h.subID {
		return
	}
	oldKind, oldID := h.subKind, h.subID
	h.subKind, h.subID = it.kind, it.id

	switch {
	case oldKind == itemViewer && it.kind == itemViewer:
		h.syncer.SwitchViewer(h.ctx, oldID, it.id)
	default:
		if oldID != "" {
			if oldKind == itemViewer {
				h.syncer.UnsubscribeViewer(oldID)
			} else {
				h.syncer.UnsubscribeBox(oldID)
			}
		}
		if it.kind == itemViewer {
			h.syncer.SubscribeViewer(h.ctx, it.id)
		} else {
			h.syncer.SubscribeBox(h.ctx, it.id)
		}
	}
}

// reconcileChat runs selection fallback off the UI goroutine; it can
// briefly block on a poll loop handover.
func (h *Home) reconcileChat() tea.Cmd {
	return func() tea.Msg {
		h.chat.Reconcile(h.ctx)
		return chatReconciledMsg{}
	}
}

// cycleChat advances chat monitoring to the next eligible stream.
func (h *Home) cycleChat() tea.Cmd {
	eligible := h.chat.Eligible()
	if len(eligible) == 0 {
		return h.setStatus("no monitorable streams")
	}
	selected := h.chat.Selected()
	next := eligible[0]
	for i, opt := range eligible {
		if opt.URL == selected {
			next = eligible[(i+1)%len(eligible)]
			break
		}
	}
	return func() tea.Msg {
		h.chat.Select(h.ctx, next.URL)
		return actionDoneMsg{note: "chat: " + next.Name}
	}
}

func (h *Home) runChatOff() tea.Cmd {
	return func() tea.Msg {
		h.chat.Select(h.ctx, "")
		return actionDoneMsg{note: "chat off"}
	}
}

func (h *Home) shiftActiveTab(delta int) {
	it, ok := h.tree.selected()
	if !ok || it.kind != itemViewer {
		return
	}
	active, ok := h.store.ActiveTab(it.id)
	if !ok {
		return
	}
	h.tabs.ActivateTab(it.id, active+delta)
}

// viewerAction runs fn against the selected viewer in the background.
func (h *Home) viewerAction(note string, fn func(id string) error) (tea.Model, tea.Cmd) {
	it, ok := h.tree.selected()
	if !ok || it.kind != itemViewer {
		return h, h.setStatus("select a viewer first")
	}
	id := it.id
	return h, func() tea.Msg {
		return actionDoneMsg{note: note, err: fn(id)}
	}
}

// boxAction runs fn against the selected box in the background.
func (h *Home) boxAction(note string, fn func(id string) error) (tea.Model, tea.Cmd) {
	it, ok := h.tree.selected()
	if !ok || it.kind != itemBox {
		return h, h.setStatus("select a box first")
	}
	id := it.id
	return h, func() tea.Msg {
		return actionDoneMsg{note: note, err: fn(id)}
	}
}

// entityAction runs fn against whichever entity is selected.
func (h *Home) entityAction(note string, fn func(it listItem) error) (tea.Model, tea.Cmd) {
	it, ok := h.tree.selected()
	if !ok {
		return h, nil
	}
	return h, func() tea.Msg {
		return actionDoneMsg{note: note, err: fn(it)}
	}
}

// startEntity starts the selected box or its viewer's box, then
// resubscribes so a terminal entity's loop revives.
func (h *Home) startEntity(it listItem) error {
	boxID := it.id
	if it.kind == itemViewer {
		boxID = it.boxID
	}
	if err := h.client.StartBox(h.ctx, boxID); err != nil {
		return err
	}
	h.syncer.SubscribeBox(h.ctx, boxID)
	if it.kind == itemViewer {
		h.syncer.SubscribeViewer(h.ctx, it.id)
	}
	h.syncer.HandleEvent(fleet.KindBox, boxID)
	return nil
}

func (h *Home) stopEntity(it listItem) error {
	if it.kind == itemViewer {
		if err := h.client.StopViewer(h.ctx, it.id); err != nil {
			return err
		}
		h.syncer.HandleEvent(fleet.KindViewer, it.id)
		return nil
	}
	if err := h.client.StopBox(h.ctx, it.id); err != nil {
		return err
	}
	h.syncer.HandleEvent(fleet.KindBox, it.id)
	return nil
}

// copySelected copies the selected entity's ID, or with wantStream its
// stream URL, to the system clipboard.
func (h *Home) copySelected(wantStream bool) tea.Cmd {
	it, ok := h.tree.selected()
	if !ok {
		return nil
	}
	text := it.id
	label := "id"
	if wantStream {
		label = "stream url"
		switch it.kind {
		case itemViewer:
			v, ok := h.store.Viewer(it.id)
			if !ok || v.StreamURL == "" {
				return h.setStatus("no stream url")
			}
			text = v.StreamURL
		default:
			b, ok := h.store.Box(it.id)
			if !ok || b.StreamURL == "" {
				return h.setStatus("no stream url")
			}
			text = b.StreamURL
		}
	}
	return func() tea.Msg {
		result, err := clipboard.Copy(text)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{note: fmt.Sprintf("copied %s (%s)", label, result.Method)}
	}
}

func (h *Home) setStatus(msg string) tea.Cmd {
	h.statusMsg = msg
	h.statusAt = time.Now()
	at := h.statusAt
	return tea.Tick(statusMsgTTL, func(time.Time) tea.Msg {
		return statusExpireMsg{at: at}
	})
}

func (h *Home) View() string {
	if h.quitting {
		return ""
	}
	if h.width == 0 {
		return "loading..."
	}

	header := h.renderHeader()
	footer := h.renderFooter()
	bodyHeight := h.height - lipgloss.Height(header) - lipgloss.Height(footer) - 2

	listWidth := 32
	if h.width < 80 {
		listWidth = h.width / 3
	}
	detailWidth := h.width - listWidth - 6

	left := h.renderListPanel(listWidth, bodyHeight)

	chatHeight := bodyHeight / 3
	detailHeight := bodyHeight - chatHeight - 4
	detail := h.renderDetailPanel(detailWidth, detailHeight)
	chatPane := PanelStyle.Width(detailWidth).Height(chatHeight).
		Render(renderChatPane(h.chat, detailWidth, chatHeight))
	right := lipgloss.JoinVertical(lipgloss.Left, detail, chatPane)

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (h *Home) renderHeader() string {
	title := TitleStyle.Render("fleetdeck")

	var sys string
	if m, ok := h.store.SystemMetrics(); ok {
		sys = DimStyle.Render(fmt.Sprintf(
			"mem %.0f%%  load %.2f  viewers %d/%d running",
			m.System.Memory, m.System.LoadAvg,
			m.Application.ViewersRunning, m.Application.ViewersTotal,
		))
	}
	if msg, stale := h.store.PollError(fleet.KindSystem, ""); stale {
		sys += "  " + StaleDataStyle.Render("⚠ "+msg)
	}
	return title + "  " + sys
}

func (h *Home) renderListPanel(width, height int) string {
	inner := h.tree.view(width-4, height-2)
	if msg, stale := h.store.PollError(fleet.KindBox, ""); stale {
		warn := runewidth.Truncate("⚠ list stale: "+msg, width-4, "…")
		inner = StaleDataStyle.Render(warn) + "\n" + inner
	}
	if h.tree.filtering || h.tree.filter.Value() != "" {
		filterLine := FilterPromptStyle.Render("/") + h.tree.filter.View()
		inner = filterLine + "\n" + inner
	}
	style := PanelStyle
	if !h.tree.filtering {
		style = FocusedPanel
	}
	return style.Width(width).Height(height).Render(inner)
}

func (h *Home) renderDetailPanel(width, height int) string {
	var inner string
	it, ok := h.tree.selected()
	switch {
	case !ok:
		inner = DimStyle.Render("nothing selected")
	case it.kind == itemBox:
		inner = renderBoxDetail(h.store, it.id, h.thresholds, width-4)
	default:
		inner = renderViewerDetail(h.store, it.id, h.thresholds, width-4, height)
	}
	return PanelStyle.Width(width).Height(height).Render(inner)
}

func (h *Home) renderFooter() string {
	if h.statusMsg != "" {
		return MenuBarStyle.Render(h.statusMsg)
	}
	menu := MenuKey("↑↓", "navigate") + "  " +
		MenuKey("/", "filter") + "  " +
		MenuKey("t/x", "tabs") + "  " +
		MenuKey("[ ]", "active tab") + "  " +
		MenuKey("s/p", "start/stop") + "  " +
		MenuKey("c", "chat") + "  " +
		MenuKey("y", "copy id") + "  " +
		MenuKey("r", "refresh") + "  " +
		MenuKey("q", "quit")
	return MenuBarStyle.Render(menu)
}
