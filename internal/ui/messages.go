package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/ephemeral-chat/internal/session"
)

// SessionMsg delivers a new auth snapshot into the program.
type SessionMsg struct {
	Session session.Session
}

// RoomChangedMsg tells the chat view the room controller has new state.
type RoomChangedMsg struct{}

type (
	scrollTickMsg  struct{}
	navigateMsg    struct{ path string }
	sendDoneMsg    struct{ err error }
	signOutDoneMsg struct{ err error }
	signInDoneMsg  struct{ err error }
	signUpDoneMsg  struct{ err error }
)

const (
	scrollDelay      = 100 * time.Millisecond
	toastDuration    = 3 * time.Second
	signupRedirectIn = 5 * time.Second
)

func navigate(path string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{path: path} }
}

func navigateAfter(d time.Duration, path string) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return navigateMsg{path: path} })
}
