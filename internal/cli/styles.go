package cli

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/soyeahso/matchchat/internal/chatlist"
	"github.com/soyeahso/matchchat/internal/domain"
	"github.com/soyeahso/matchchat/internal/presence"
)

var (
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	mineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7B5EA7")).Bold(true)
	theirStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5FAF")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	unreadStyle  = lipgloss.NewStyle().
			Background(lipgloss.Color("#FF5FAF")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)
	nameStyle = lipgloss.NewStyle().Bold(true)
)

// renderMessage formats one timeline line.
func renderMessage(m domain.Message, me, counterpart string) string {
	who, style := counterpart, theirStyle
	if m.FromMe(me) {
		who, style = "you", mineStyle
	}

	var mark string
	switch m.Status {
	case domain.StatusPending:
		mark = " " + pendingStyle.Render("sending…")
	case domain.StatusFailed:
		mark = " " + failedStyle.Render("not delivered")
	}

	stamp := "--:--"
	if !m.CreatedAt.IsZero() {
		stamp = m.CreatedAt.Local().Format("15:04")
	}
	return fmt.Sprintf("%s %s %s%s", timeStyle.Render(stamp), style.Render(who+":"), m.Body, mark)
}

// renderPresence describes the counterpart's state for the status line.
func renderPresence(r presence.RemoteState, counterpart string) string {
	switch {
	case r.Typing:
		return statusStyle.Render(counterpart + " is typing…")
	case r.Online:
		return statusStyle.Render(counterpart + " is online")
	default:
		return statusStyle.Render(counterpart + " is offline")
	}
}

// renderEntry formats one row of the conversation list.
func renderEntry(e chatlist.Entry) string {
	name := e.CounterpartName
	if name == "" {
		name = e.CounterpartID
	}

	var b strings.Builder
	b.WriteString(nameStyle.Render(name))
	if e.UnreadCount > 0 {
		b.WriteString(" " + unreadStyle.Render(fmt.Sprint(e.UnreadCount)))
	}
	if e.Activity != "" {
		b.WriteString(" " + timeStyle.Render(e.Activity))
	}

	preview := e.LastMessageText
	if e.LastMessageFromMe && preview != "" {
		preview = "You: " + preview
	}
	b.WriteString("\n  " + truncate(preview, 60))
	b.WriteString("\n  " + timeStyle.Render("id "+e.CounterpartID))
	return b.String()
}

func renderNotice(text string) string { return noticeStyle.Render(text) }

func renderError(text string) string { return failedStyle.Render(text) }

func renderConnection(up bool, at time.Time) string {
	state := "connection lost, reconnecting"
	if up {
		state = "connected"
	}
	return statusStyle.Render(at.Format("15:04") + " " + state)
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
