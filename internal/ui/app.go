// Package ui is the terminal front end: a small router over the room, login and
// signup screens, guarded by the auth gate.
package ui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/gate"
	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
	"github.com/vovakirdan/ephemeral-chat/internal/room"
	"github.com/vovakirdan/ephemeral-chat/internal/session"
)

// Deps are the collaborators the UI drives.
type Deps struct {
	Auth    realtime.Auth
	Session *session.Store
	Room    *room.Controller
	Logger  *zerolog.Logger
}

// Model is the root bubbletea model.
type Model struct {
	deps Deps
	log  *zerolog.Logger

	route    string
	sess     session.Session
	decision gate.Decision

	chat   chatModel
	login  loginModel
	signup signupModel
	toast  toast

	width, height int
}

// New builds the root model on the room route; the gate corrects it once a session arrives.
func New(deps Deps) Model {
	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	m := Model{
		deps:   deps,
		log:    logger,
		route:  gate.RouteRoom,
		sess:   session.Session{IsLoading: true},
		chat:   newChatModel(deps.Room, deps.Auth, logger),
		login:  newLoginModel(deps.Auth, logger),
		signup: newSignupModel(deps.Auth, logger),
	}
	m.applyGate()
	return m
}

// Route returns the current path.
func (m Model) Route() string { return m.route }

func (m Model) Init() tea.Cmd {
	sess := m.deps.Session.Current()
	return func() tea.Msg { return SessionMsg{Session: sess} }
}

// applyGate follows redirects until the current route is allowed to render.
func (m *Model) applyGate() {
	for range 3 {
		m.decision = gate.Decide(m.sess, gate.IntentFor(m.route))
		if m.decision.Redirect == "" || m.decision.Redirect == m.route {
			return
		}
		m.log.Debug().Str("from", m.route).Str("to", m.decision.Redirect).Msg("redirect")
		m.route = m.decision.Redirect
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.decision.ShowOverlay {
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.chat = m.chat.resize(msg.Width, msg.Height-1)
		return m, nil
	case SessionMsg:
		m.sess = msg.Session
		m.applyGate()
		return m, nil
	case navigateMsg:
		m.route = msg.path
		m.applyGate()
		return m, nil
	case toastMsg:
		var cmd tea.Cmd
		m.toast, cmd = m.toast.show(msg)
		return m, cmd
	case toastExpiredMsg:
		m.toast = m.toast.expire(msg)
		return m, nil
	case RoomChangedMsg, scrollTickMsg, sendDoneMsg, signOutDoneMsg:
		// Room state is tracked whichever screen is showing.
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd
	case signInDoneMsg:
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		return m, cmd
	case signUpDoneMsg:
		var cmd tea.Cmd
		m.signup, cmd = m.signup.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.route {
	case gate.RouteLogin:
		m.login, cmd = m.login.Update(msg)
	case gate.RouteSignup:
		m.signup, cmd = m.signup.Update(msg)
	default:
		m.chat, cmd = m.chat.Update(msg)
	}
	return m, cmd
}

func (m Model) View() string {
	var content string
	if m.decision.RenderChildren {
		switch m.route {
		case gate.RouteLogin:
			content = m.login.View()
		case gate.RouteSignup:
			content = m.signup.View()
		default:
			content = m.chat.View()
		}
	}

	if m.decision.ShowOverlay {
		overlay := overlayStyle.Render("Loading...")
		if m.width > 0 {
			overlay = lipgloss.PlaceHorizontal(m.width, lipgloss.Center, overlay)
		}
		content = lipgloss.JoinVertical(lipgloss.Left, overlay, content)
	}

	if t := m.toast.View(); t != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, t)
	}
	return content
}

// bindSession keeps the room controller on the store's identity and forwards every
// change to send. Changes are applied one at a time from the store's latest snapshot,
// so listeners racing on different goroutines still settle on the newest identity.
// The initial identity is applied before returning; send only sees later changes.
func bindSession(deps Deps, send func(tea.Msg)) (cancel func()) {
	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	var mu sync.Mutex
	refresh := func() session.Session {
		current := deps.Session.Current()
		if deps.Room != nil {
			if err := deps.Room.SetIdentity(current.Identity); err != nil && !errors.Is(err, room.ErrClosed) {
				logger.Error().Err(err).Msg("set room identity failed")
			}
		}
		return current
	}

	cancel = deps.Session.OnChange(func(session.Session) {
		mu.Lock()
		defer mu.Unlock()
		send(SessionMsg{Session: refresh()})
	})

	mu.Lock()
	refresh()
	mu.Unlock()
	return cancel
}

// Run starts the program and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, deps Deps) error {
	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}

	p := tea.NewProgram(New(deps), tea.WithAltScreen(), tea.WithContext(ctx))

	stopSession := bindSession(deps, p.Send)
	defer stopSession()

	stopRoom := deps.Room.OnChange(func() { p.Send(RoomChangedMsg{}) })
	defer stopRoom()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
