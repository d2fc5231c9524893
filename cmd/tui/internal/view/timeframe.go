package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type Timeframe int

const (
	TimeframeAll Timeframe = iota
	TimeframeThisMonth
	TimeframeLastMonth
	TimeframeThisYear
	TimeframeCustom
)

var timeframeLabels = map[Timeframe]string{
	TimeframeAll:       "All Time",
	TimeframeThisMonth: "This Month",
	TimeframeLastMonth: "Last Month",
	TimeframeThisYear:  "This Year",
	TimeframeCustom:    "Custom Range",
}

func (t Timeframe) String() string {
	if s, ok := timeframeLabels[t]; ok {
		return s
	}

	return "Unknown"
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Range returns the inclusive day range of a predefined timeframe relative
// to now. ok is false for TimeframeAll and TimeframeCustom.
func (t Timeframe) Range(now time.Time) (start, end time.Time, ok bool) {
	today := day(now)
	firstOfMonth := today.AddDate(0, 0, 1-today.Day())

	switch t {
	case TimeframeThisMonth:
		return firstOfMonth, today, true
	case TimeframeLastMonth:
		return firstOfMonth.AddDate(0, -1, 0), firstOfMonth.AddDate(0, 0, -1), true
	case TimeframeThisYear:
		return time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC), today, true
	}

	return time.Time{}, time.Time{}, false
}

// TimeframeSelectedMsg carries the chosen range. Both bounds are nil for
// all time.
type TimeframeSelectedMsg struct {
	Start *time.Time
	End   *time.Time
}

// Apply narrows filter to the selected range.
func (m TimeframeSelectedMsg) Apply(filter ledger.ListFilter) ledger.ListFilter {
	filter.StartDate = m.Start
	filter.EndDate = m.End

	return filter
}

// TimeframePicker selects a date range from a menu or two typed dates.
type TimeframePicker struct {
	cursor Timeframe
	custom bool

	inputs [2]textinput.Model
	focus  int

	err error
}

func NewTimeframePicker(initial Timeframe) TimeframePicker {
	p := TimeframePicker{cursor: initial}

	for i, prompt := range []string{"Start Date: ", "End Date:   "} {
		in := textinput.New()
		in.Placeholder = "YYYY-MM-DD"
		in.CharLimit = 10
		in.Width = 12
		in.Prompt = prompt
		p.inputs[i] = in
	}

	return p
}

func (p TimeframePicker) Update(msg tea.Msg) (TimeframePicker, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)

	if p.custom {
		if ok {
			switch key.String() {
			case "esc":
				p.custom = false
				p.err = nil

				return p, nil
			case "tab", "shift+tab":
				p.inputs[p.focus].Blur()
				p.focus = (p.focus + 1) % len(p.inputs)
				cmd := p.inputs[p.focus].Focus()

				return p, cmd
			case "enter":
				return p.submitCustom()
			}
		}

		var cmd tea.Cmd
		p.inputs[p.focus], cmd = p.inputs[p.focus].Update(msg)

		return p, cmd
	}

	if !ok {
		return p, nil
	}

	switch key.Type {
	case tea.KeyUp:
		if p.cursor > TimeframeAll {
			p.cursor--
		}
	case tea.KeyDown:
		if p.cursor < TimeframeCustom {
			p.cursor++
		}
	case tea.KeyEnter:
		if p.cursor == TimeframeCustom {
			p.custom = true
			p.focus = 0
			cmd := p.inputs[0].Focus()

			return p, cmd
		}

		selected := TimeframeSelectedMsg{}
		if start, end, ok := p.cursor.Range(time.Now()); ok {
			selected.Start, selected.End = &start, &end
		}

		return p, func() tea.Msg { return selected }
	}

	return p, nil
}

func (p TimeframePicker) submitCustom() (TimeframePicker, tea.Cmd) {
	start, err := time.Parse(time.DateOnly, strings.TrimSpace(p.inputs[0].Value()))
	if err != nil {
		p.err = errors.New("invalid start date (YYYY-MM-DD)")
		return p, nil
	}

	end, err := time.Parse(time.DateOnly, strings.TrimSpace(p.inputs[1].Value()))
	if err != nil {
		p.err = errors.New("invalid end date (YYYY-MM-DD)")
		return p, nil
	}

	if end.Before(start) {
		p.err = errors.New("end date is before start date")
		return p, nil
	}

	p.err = nil

	return p, func() tea.Msg { return TimeframeSelectedMsg{Start: &start, End: &end} }
}

// Selecting reports whether the picker shows the menu rather than the
// custom date inputs.
func (p TimeframePicker) Selecting() bool {
	return !p.custom
}

func (p TimeframePicker) View() string {
	var sb strings.Builder

	if p.custom {
		fmt.Fprintf(&sb, "Enter Custom Range:\n\n%s\n%s\n\n(Enter to confirm, Tab to switch, Esc to back)",
			p.inputs[0].View(), p.inputs[1].View())
	} else {
		sb.WriteString("Select Timeframe:\n\n")

		for tf := TimeframeAll; tf <= TimeframeCustom; tf++ {
			cursor := " "
			if tf == p.cursor {
				cursor = ">"
			}

			fmt.Fprintf(&sb, "%s %s\n", cursor, tf)
		}

		sb.WriteString("\n(Enter to select, Esc to back)")
	}

	if p.err != nil {
		sb.WriteString(errorStyle.Render(fmt.Sprintf("\n\nError: %v", p.err)))
	}

	return sb.String()
}

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)
