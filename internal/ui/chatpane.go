package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
)

// renderChatPane renders the chat panel: the selected stream, the other
// eligible streams, and the latest messages.
func renderChatPane(chat *fleet.ChatSelector, width, height int) string {
	var out strings.Builder

	eligible := chat.Eligible()
	selected := chat.Selected()

	header := "Chat"
	if selected == "" {
		if len(eligible) == 0 {
			out.WriteString(DetailHeaderStyle.Render(header) + "\n")
			out.WriteString(DimStyle.Render("no monitorable streams"))
			return out.String()
		}
		out.WriteString(DetailHeaderStyle.Render(header) + " " + DimStyle.Render(fmt.Sprintf("(%d available, press c)", len(eligible))))
		return out.String()
	}

	name := selected
	for _, opt := range eligible {
		if opt.URL == selected {
			name = opt.Name
			break
		}
	}
	out.WriteString(DetailHeaderStyle.Render(header) + " " + InfoStyle.Render(runewidth.Truncate(name, width-10, "…")))
	if len(eligible) > 1 {
		out.WriteString(" " + CountStyle.Render(fmt.Sprintf("(1 of %d)", len(eligible))))
	}
	out.WriteByte('\n')

	if errMsg := chat.LastError(); errMsg != "" {
		out.WriteString(StaleDataStyle.Render("⚠ "+runewidth.Truncate(errMsg, width-4, "…")) + "\n")
	}

	msgs := chat.Messages()
	if len(msgs) == 0 {
		out.WriteString(DimStyle.Render("no messages yet"))
		return out.String()
	}

	max := height - 2
	if max < 1 {
		max = 1
	}
	start := len(msgs) - max
	if start < 0 {
		start = 0
	}
	for i, m := range msgs[start:] {
		avail := width - runewidth.StringWidth(m.Author) - 3
		if avail < 8 {
			avail = 8
		}
		text := runewidth.Truncate(m.Text, avail, "…")
		out.WriteString(ChatAuthorStyle.Render(m.Author) + " " + ChatTextStyle.Render(text))
		if i < len(msgs[start:])-1 {
			out.WriteByte('\n')
		}
	}
	return out.String()
}
