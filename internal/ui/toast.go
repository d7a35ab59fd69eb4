package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type toastKind int

const (
	toastKindInfo toastKind = iota
	toastKindSuccess
)

type toastMsg struct {
	text     string
	kind     toastKind
	duration time.Duration
}

type toastExpiredMsg struct{ id int }

// toast is a transient one-line notice.
type toast struct {
	id   int
	text string
	kind toastKind
}

func showToast(text string, kind toastKind, d time.Duration) tea.Cmd {
	return func() tea.Msg { return toastMsg{text: text, kind: kind, duration: d} }
}

// show replaces the current toast and schedules its expiry.
func (t toast) show(msg toastMsg) (toast, tea.Cmd) {
	next := toast{id: t.id + 1, text: msg.text, kind: msg.kind}
	d := msg.duration
	if d <= 0 {
		d = toastDuration
	}
	id := next.id
	return next, tea.Tick(d, func(time.Time) tea.Msg { return toastExpiredMsg{id: id} })
}

func (t toast) expire(msg toastExpiredMsg) toast {
	if msg.id != t.id {
		return t
	}
	return toast{id: t.id}
}

func (t toast) View() string {
	if t.text == "" {
		return ""
	}
	if t.kind == toastKindSuccess {
		return toastSuccess.Render("✓ " + t.text)
	}
	return toastInfo.Render("⚠ " + t.text)
}
