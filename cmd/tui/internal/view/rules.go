package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	rulesFieldPattern = iota
	rulesFieldSource
	rulesFieldProbe
	rulesFieldCount
)

// RulesModel teaches the matcher preferred sources and previews what a
// statement description would resolve to.
type RulesModel struct {
	CommonModel

	inputs []textinput.Model
	focus  int

	status string
	failed bool
}

func NewRulesModel(svc Services) RulesModel {
	inputs := make([]textinput.Model, rulesFieldCount)

	for i := range inputs {
		in := textinput.New()
		in.Width = 40
		inputs[i] = in
	}

	inputs[rulesFieldPattern].Prompt = "Pattern:     "
	inputs[rulesFieldPattern].Placeholder = "CONTINENTE"
	inputs[rulesFieldSource].Prompt = "Source:      "
	inputs[rulesFieldSource].Placeholder = "Groceries"
	inputs[rulesFieldProbe].Prompt = "Description: "
	inputs[rulesFieldProbe].Placeholder = "COMPRA CONTINENTE LISBOA"

	inputs[rulesFieldPattern].Focus()

	return RulesModel{CommonModel: CommonModel{svc: svc}, inputs: inputs}
}

func (m RulesModel) Title() string { return "Matching Rules" }

func (m RulesModel) ShortHelp() string {
	return "Tab: next field | Enter: save rule / preview | Esc: back"
}

func (m RulesModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m RulesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc:
			return m, Back
		case tea.KeyTab, tea.KeyDown:
			return m.focusField((m.focus + 1) % rulesFieldCount)
		case tea.KeyShiftTab, tea.KeyUp:
			return m.focusField((m.focus + rulesFieldCount - 1) % rulesFieldCount)
		case tea.KeyEnter:
			if m.focus == rulesFieldProbe {
				return m, m.suggestCmd(m.inputs[rulesFieldProbe].Value())
			}

			if m.focus == rulesFieldPattern {
				return m.focusField(rulesFieldSource)
			}

			return m, m.learnCmd(m.inputs[rulesFieldPattern].Value(), m.inputs[rulesFieldSource].Value())
		}

	case learnedMsg:
		if msg.err != nil {
			m.status, m.failed = fmt.Sprintf("Error: %v", msg.err), true
			return m, nil
		}

		m.status, m.failed = fmt.Sprintf("Saved: %q → %q", msg.pattern, msg.source), false
		m.inputs[rulesFieldPattern].SetValue("")
		m.inputs[rulesFieldSource].SetValue("")

		return m.focusField(rulesFieldPattern)

	case suggestedMsg:
		if msg.err != nil {
			m.status, m.failed = fmt.Sprintf("Error: %v", msg.err), true
			return m, nil
		}

		m.failed = false
		if msg.source == "" {
			m.status = fmt.Sprintf("No rule matches %q", msg.raw)
		} else {
			m.status = fmt.Sprintf("%q resolves to %q", msg.raw, msg.source)
		}

		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)

	return m, cmd
}

func (m RulesModel) focusField(i int) (tea.Model, tea.Cmd) {
	m.inputs[m.focus].Blur()
	m.focus = i
	cmd := m.inputs[m.focus].Focus()

	return m, cmd
}

func (m RulesModel) View() string {
	var b strings.Builder

	b.WriteString("New rule\n\n")
	b.WriteString(m.inputs[rulesFieldPattern].View() + "\n")
	b.WriteString(m.inputs[rulesFieldSource].View() + "\n\n")
	b.WriteString("Preview\n\n")
	b.WriteString(m.inputs[rulesFieldProbe].View() + "\n\n")

	if m.status != "" {
		style := successStyle
		if m.failed {
			style = errorStyle
		}

		b.WriteString(style.Render(m.status) + "\n\n")
	}

	b.WriteString(m.ShortHelp())

	return lipgloss.NewStyle().Padding(1).Render(b.String())
}

type learnedMsg struct {
	pattern string
	source  string
	err     error
}

type suggestedMsg struct {
	raw    string
	source string
	err    error
}

func (m RulesModel) learnCmd(pattern, source string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		err := m.svc.Matching.Learn(ctx, m.svc.OwnerID, pattern, source)

		return learnedMsg{pattern: pattern, source: source, err: err}
	}
}

func (m RulesModel) suggestCmd(raw string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		source, err := m.svc.Matching.Suggest(ctx, m.svc.OwnerID, raw)

		return suggestedMsg{raw: raw, source: source, err: err}
	}
}
