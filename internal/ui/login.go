package ui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/gate"
	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
)

const (
	loginEmail = iota
	loginPassword
)

type loginModel struct {
	auth realtime.Auth
	log  *zerolog.Logger

	form    form
	pending bool
}

func newLoginModel(auth realtime.Auth, logger *zerolog.Logger) loginModel {
	return loginModel{
		auth: auth,
		log:  logger,
		form: newForm(
			newField("Email", "you@example.com", false),
			newField("Password", "••••••", true),
		),
	}
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if m.pending {
				return m, nil
			}
			m.pending = true
			return m, m.signIn(strings.TrimSpace(m.form.value(loginEmail)), m.form.value(loginPassword))
		case "ctrl+n":
			return m, navigate(gate.RouteSignup)
		}
	case signInDoneMsg:
		m.pending = false
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("sign in failed")
			return m, showToast(msg.err.Error(), toastKindInfo, toastDuration)
		}
		// The session store takes it from here; the gate moves us to the room.
		m.form = m.form.reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m loginModel) signIn(email, password string) tea.Cmd {
	auth := m.auth
	return func() tea.Msg {
		_, err := auth.SignInWithPassword(context.Background(), email, password)
		return signInDoneMsg{err: err}
	}
}

func (m loginModel) View() string {
	help := "enter sign in • tab next field • ctrl+n create account • ctrl+c quit"
	if m.pending {
		help = "signing in..."
	}
	return titleStyle.Render("Sign in") + "\n" + m.form.View() + mutedStyle.Render(help)
}
