package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
)

// renderBoxDetail renders the right pane for a selected box.
func renderBoxDetail(store *fleet.Store, id string, thresholds fleet.Thresholds, width int) string {
	b, ok := store.Box(id)
	if !ok {
		return DimStyle.Render("box no longer exists")
	}

	var out strings.Builder
	title := b.Name
	if title == "" {
		title = b.ID
	}
	out.WriteString(DetailTitleStyle.Render(title) + "  " + StatusIndicator(b.Status) + " " + string(b.Status))
	out.WriteByte('\n')

	if msg, stale := store.PollError(fleet.KindBox, id); stale {
		out.WriteString(StaleDataStyle.Render("⚠ showing last known state: "+msg) + "\n")
	}
	if b.Error != "" {
		out.WriteString(ErrorStyle.Render("error: "+b.Error) + "\n")
	}

	out.WriteString(DetailHeaderStyle.Render("Box") + "\n")
	out.WriteString(fmt.Sprintf("  id       %s\n", b.ID))
	if b.IPAddress != "" {
		out.WriteString(fmt.Sprintf("  ip       %s\n", b.IPAddress))
	}
	if b.StreamURL != "" {
		out.WriteString(fmt.Sprintf("  stream   %s\n", runewidth.Truncate(b.StreamURL, width-12, "…")))
	}
	out.WriteString(fmt.Sprintf("  viewers  %d\n", len(b.ViewerIDs)))

	if snap, ok := store.Resources(fleet.KindBox, id); ok {
		out.WriteByte('\n')
		out.WriteString(renderResources(snap, snap.ResourceLimits, thresholds))
	}
	return out.String()
}

// renderViewerDetail renders the right pane for a selected viewer: tab
// strip, resources with severity, and the log tail.
func renderViewerDetail(store *fleet.Store, id string, thresholds fleet.Thresholds, width, height int) string {
	v, ok := store.Viewer(id)
	if !ok {
		return DimStyle.Render("viewer no longer exists")
	}

	var out strings.Builder
	title := v.Streamer
	if title == "" {
		title = v.ID
	}
	out.WriteString(DetailTitleStyle.Render(title) + "  " + StatusIndicator(v.Status) + " " + string(v.Status))
	if v.PlaybackStatus != "" {
		out.WriteString("  " + DetailMetaStyle.Render(v.PlaybackStatus))
	}
	out.WriteByte('\n')

	if msg, stale := store.PollError(fleet.KindViewer, id); stale {
		out.WriteString(StaleDataStyle.Render("⚠ showing last known state: "+msg) + "\n")
	}
	if v.Error != "" {
		out.WriteString(ErrorStyle.Render("error: "+v.Error) + "\n")
	}

	// Severity banner ahead of everything else when critical.
	snap, haveRes := store.Resources(fleet.KindViewer, id)
	if haveRes && fleet.Classify(snap, v.ResourceLimits, thresholds) == fleet.SeverityCritical {
		out.WriteString(CriticalBannerStyle.Render("RESOURCES CRITICAL") + "\n")
	}

	if v.StreamURL != "" {
		out.WriteString(DetailMetaStyle.Render(runewidth.Truncate(v.StreamURL, width-4, "…")) + "\n")
	}

	out.WriteByte('\n')
	out.WriteString(renderTabStrip(store, v))
	out.WriteByte('\n')

	if haveRes {
		out.WriteByte('\n')
		out.WriteString(renderResources(snap, v.ResourceLimits, thresholds))
	}

	logs := store.ViewerLogs(id)
	if len(logs) > 0 {
		out.WriteByte('\n')
		out.WriteString(DetailHeaderStyle.Render("Logs") + "\n")
		max := height / 3
		if max < 3 {
			max = 3
		}
		start := len(logs) - max
		if start < 0 {
			start = 0
		}
		for _, e := range logs[start:] {
			line := fmt.Sprintf("%s %-5s %s", e.Time.Format("15:04:05"), e.Level, e.Message)
			out.WriteString(LogLineStyle.Render(runewidth.Truncate(line, width-2, "…")) + "\n")
		}
	}
	return out.String()
}

// renderTabStrip renders the viewer's tabs with the client-side active
// tab highlighted.
func renderTabStrip(store *fleet.Store, v fleet.Viewer) string {
	if len(v.Tabs) == 0 {
		return DimStyle.Render("no tabs")
	}
	active, _ := store.ActiveTab(v.ID)

	parts := make([]string, 0, len(v.Tabs)+1)
	for i, tab := range v.Tabs {
		label := fmt.Sprintf("%d %s", i+1, StatusIndicator(tab.Status))
		if i == active {
			parts = append(parts, TabActiveStyle.Render(label))
		} else {
			parts = append(parts, TabInactiveStyle.Render(label))
		}
	}
	strip := strings.Join(parts, " ")
	return strip + " " + CountStyle.Render(fmt.Sprintf("%d/%d", len(v.Tabs), v.MaxTabs))
}

// renderResources renders the usage block. Severity colors the whole
// block; zero limits render as unconstrained.
func renderResources(snap fleet.ResourceSnapshot, limits fleet.ResourceLimits, thresholds fleet.Thresholds) string {
	sev := fleet.Classify(snap, limits, thresholds)
	style := SeverityStyle(sev)

	var out strings.Builder
	out.WriteString(DetailHeaderStyle.Render("Resources") + " " + style.Render(string(sev)) + "\n")
	out.WriteString("  " + resourceLine("cpu", snap.CPU, limits.CPULimit, "%%") + "\n")
	out.WriteString("  " + resourceLine("mem", snap.Memory, limits.MemoryLimit, " MB") + "\n")
	out.WriteString("  " + resourceLine("net", snap.NetworkRx+snap.NetworkTx, limits.NetworkLimit, " Mbps") + "\n")
	if !snap.LastUpdated.IsZero() {
		out.WriteString("  " + DetailMetaStyle.Render("as of "+snap.LastUpdated.Format("15:04:05")))
	}
	return out.String()
}

func resourceLine(name string, usage, limit float64, unit string) string {
	if limit <= 0 {
		return fmt.Sprintf("%-4s %.1f"+unit, name, usage)
	}
	return fmt.Sprintf("%-4s %.1f / %.1f"+unit+"  %s", name, usage, limit, usageBar(usage/limit, 10))
}

// usageBar renders a 10-cell ratio bar, clamped at full.
func usageBar(ratio float64, cells int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(cells))
	return strings.Repeat("█", filled) + strings.Repeat("░", cells-filled)
}
