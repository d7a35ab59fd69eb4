package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// field is one labelled input of a form.
type field struct {
	label string
	input textinput.Model
}

// form is a vertical stack of inputs with tab focus cycling.
type form struct {
	fields []field
	focus  int
}

func newField(label, placeholder string, secret bool) field {
	in := textinput.New()
	in.Placeholder = placeholder
	in.Prompt = ""
	in.CharLimit = 256
	in.Width = 40
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return field{label: label, input: in}
}

func newForm(fields ...field) form {
	f := form{fields: fields}
	if len(f.fields) > 0 {
		f.fields[0].input.Focus()
	}
	return f
}

func (f form) value(i int) string {
	return f.fields[i].input.Value()
}

func (f form) move(delta int) form {
	f.fields[f.focus].input.Blur()
	f.focus = (f.focus + delta + len(f.fields)) % len(f.fields)
	f.fields[f.focus].input.Focus()
	return f
}

func (f form) reset() form {
	for i := range f.fields {
		f.fields[i].input.SetValue("")
		f.fields[i].input.Blur()
	}
	f.focus = 0
	f.fields[0].input.Focus()
	return f
}

// Update handles focus keys and forwards the rest to the focused input.
func (f form) Update(msg tea.Msg) (form, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			return f.move(1), nil
		case "shift+tab", "up":
			return f.move(-1), nil
		}
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return f, cmd
}

func (f form) View() string {
	var b strings.Builder
	for i, fl := range f.fields {
		label := labelStyle
		if i == f.focus {
			label = focusedLabel
		}
		b.WriteString(label.Render(fl.label))
		b.WriteString("\n")
		b.WriteString(fl.input.View())
		b.WriteString("\n\n")
	}
	return b.String()
}
