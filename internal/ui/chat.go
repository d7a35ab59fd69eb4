package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/realtime"
	"github.com/vovakirdan/ephemeral-chat/internal/room"
)

// chatModel is the room screen: header, transcript and input line.
type chatModel struct {
	room *room.Controller
	auth realtime.Auth
	log  *zerolog.Logger

	input      textinput.Model
	viewport   viewport.Model
	snap       room.Snapshot
	signingOut bool
	width      int
}

func newChatModel(ctrl *room.Controller, auth realtime.Auth, logger *zerolog.Logger) chatModel {
	in := textinput.New()
	in.Placeholder = "Type a message..."
	in.Prompt = "› "
	in.CharLimit = 4000
	in.Focus()

	return chatModel{
		room:     ctrl,
		auth:     auth,
		log:      logger,
		input:    in,
		viewport: viewport.New(80, 20),
		width:    80,
	}
}

func (m chatModel) resize(width, height int) chatModel {
	m.width = width
	m.input.Width = max(width-4, 10)
	// header, blank line, input, help
	m.viewport.Width = width
	m.viewport.Height = max(height-4, 3)
	m.viewport.SetContent(m.renderTranscript())
	return m
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			body := m.input.Value()
			// Cleared whatever the send outcome.
			m.input.SetValue("")
			return m, m.send(body)
		case "ctrl+o":
			if m.signingOut {
				return m, nil
			}
			m.signingOut = true
			return m, m.signOut()
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case RoomChangedMsg:
		m.snap = m.room.Snapshot()
		m.viewport.SetContent(m.renderTranscript())
		return m, tea.Tick(scrollDelay, func(time.Time) tea.Msg { return scrollTickMsg{} })
	case scrollTickMsg:
		m.viewport.GotoBottom()
		return m, nil
	case sendDoneMsg:
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("send message failed")
		}
		return m, nil
	case signOutDoneMsg:
		m.signingOut = false
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("sign out failed")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) send(body string) tea.Cmd {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	ctrl := m.room
	return func() tea.Msg {
		return sendDoneMsg{err: ctrl.Send(context.Background(), body)}
	}
}

func (m chatModel) signOut() tea.Cmd {
	auth := m.auth
	return func() tea.Msg {
		return signOutDoneMsg{err: auth.SignOut(context.Background())}
	}
}

func (m chatModel) View() string {
	name := ""
	if m.snap.Identity != nil {
		name = m.snap.Identity.DisplayName
	}
	online := OnlineText(len(m.snap.Online))
	onlineView := offlineStyle.Render("○ " + online)
	if len(m.snap.Online) > 0 {
		onlineView = onlineStyle.Render("● " + online)
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		headerStyle.Render("Signed in as "+name),
		" ",
		onlineView,
	)

	help := "enter send • ctrl+o sign out • ctrl+c quit"
	if m.signingOut {
		help = "signing out..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.input.View(),
		mutedStyle.Render(help),
	)
}

func (m chatModel) renderTranscript() string {
	if len(m.snap.Messages) == 0 {
		return mutedStyle.Render("Chat with your friends...")
	}

	bubbleWidth := max(m.width*2/3, 20)
	lines := make([]string, 0, len(m.snap.Messages))
	for _, msg := range m.snap.Messages {
		stamp := mutedStyle.Render(FormatTime(msg.SentAt))
		if msg.IsLocalEcho {
			block := lipgloss.JoinVertical(lipgloss.Right,
				ownBubble.MaxWidth(bubbleWidth).Render(msg.Body),
				stamp,
			)
			lines = append(lines, lipgloss.PlaceHorizontal(m.width, lipgloss.Right, block))
			continue
		}
		author := lipgloss.NewStyle().Bold(true).Foreground(UserColor(msg.Author)).Render(msg.Author)
		lines = append(lines, lipgloss.JoinVertical(lipgloss.Left,
			author,
			otherBubble.MaxWidth(bubbleWidth).Render(msg.Body),
			stamp,
		))
	}
	return strings.Join(lines, "\n")
}
