package ui

import (
	"context"
	"strings"
	"unicode"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/gate"
	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
)

const (
	signupUsername = iota
	signupEmail
	signupPassword
	signupConfirm
)

const (
	msgPasswordMismatch = "Passwords do not match!"
	msgWeakPassword     = "Please use a stronger password!"
	msgSignedUp         = "Account created successfully! Please check your email for verification."
)

type signupModel struct {
	auth realtime.Auth
	log  *zerolog.Logger

	form    form
	pending bool
}

func newSignupModel(auth realtime.Auth, logger *zerolog.Logger) signupModel {
	return signupModel{
		auth: auth,
		log:  logger,
		form: newForm(
			newField("Username", "optional", false),
			newField("Email", "you@example.com", false),
			newField("Password", "••••••", true),
			newField("Confirm password", "••••••", true),
		),
	}
}

// PasswordStrength scores a password from 0 to 5: one point each for length over
// 6, length over 10, an upper-case letter, a digit and a symbol.
func PasswordStrength(password string) int {
	score := 0
	if len(password) > 6 {
		score++
	}
	if len(password) > 10 {
		score++
	}
	var upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			symbol = true
		}
	}
	for _, ok := range []bool{upper, digit, symbol} {
		if ok {
			score++
		}
	}
	return score
}

func (m signupModel) Update(msg tea.Msg) (signupModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			return m.submit()
		case "ctrl+l":
			return m, navigate(gate.RouteLogin)
		}
	case signUpDoneMsg:
		m.pending = false
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("sign up failed")
			return m, showToast(msg.err.Error(), toastKindInfo, toastDuration)
		}
		m.form = m.form.reset()
		return m, tea.Batch(
			showToast(msgSignedUp, toastKindSuccess, signupRedirectIn),
			navigateAfter(signupRedirectIn, gate.RouteLogin),
		)
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m signupModel) submit() (signupModel, tea.Cmd) {
	if m.pending {
		return m, nil
	}
	password := m.form.value(signupPassword)
	if password != m.form.value(signupConfirm) {
		return m, showToast(msgPasswordMismatch, toastKindInfo, toastDuration)
	}
	if PasswordStrength(password) < 2 {
		return m, showToast(msgWeakPassword, toastKindInfo, toastDuration)
	}

	m.pending = true
	params := realtime.SignUpParams{
		Email:    strings.TrimSpace(m.form.value(signupEmail)),
		Password: password,
		Username: strings.TrimSpace(m.form.value(signupUsername)),
	}
	auth := m.auth
	return m, func() tea.Msg {
		return signUpDoneMsg{err: auth.SignUp(context.Background(), params)}
	}
}

func (m signupModel) View() string {
	help := "enter create account • tab next field • ctrl+l sign in • ctrl+c quit"
	if m.pending {
		help = "creating account..."
	}
	return titleStyle.Render("Create account") + "\n" + m.form.View() + mutedStyle.Render(help)
}
