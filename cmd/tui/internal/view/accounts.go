package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/account"
)

type accountsState int

const (
	accountsStateBrowse accountsState = iota
	accountsStateCreate
)

// accountDraft backs the create form. It lives behind a pointer so the
// form's bindings survive model copies.
type accountDraft struct {
	name     string
	currency string
	opening  string
}

type AccountsModel struct {
	CommonModel

	state    accountsState
	table    table.Model
	accounts []*account.Account
	form     *huh.Form
	draft    *accountDraft

	err    error
	status string
}

func NewAccountsModel(svc Services) AccountsModel {
	return AccountsModel{
		CommonModel: CommonModel{svc: svc},
		table: newTable([]table.Column{
			{Title: "Name", Width: 24},
			{Title: "Currency", Width: 8},
			{Title: "Balance", Width: 18},
			{Title: "Opening", Width: 18},
		}),
	}
}

func (m AccountsModel) Title() string { return "Accounts" }

func (m AccountsModel) ShortHelp() string {
	if m.state == accountsStateCreate {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | n: new | v: verify balance | x: delete | r: refresh"
}

func (m AccountsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m AccountsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case accountsLoadedMsg:
		m.err = msg.err
		m.accounts = msg.accounts
		m.refreshTable()

		return m, nil

	case accountActionMsg:
		m.status = msg.status
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		m.state = accountsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	if m.state == accountsStateCreate {
		return m.updateCreate(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return m, Back
		case "r":
			return m, m.loadCmd()
		case "n":
			return m.enterCreate()
		case "v":
			if a := m.selected(); a != nil {
				return m, m.verifyCmd(a)
			}
		case "x":
			if a := m.selected(); a != nil {
				return m, m.deleteCmd(a)
			}
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m AccountsModel) selected() *account.Account {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.accounts) {
		return nil
	}

	return m.accounts[idx]
}

func (m AccountsModel) enterCreate() (tea.Model, tea.Cmd) {
	m.draft = &accountDraft{currency: "EUR", opening: "0.00"}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&m.draft.name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name cannot be empty")
					}

					return nil
				}),
			huh.NewSelect[string]().
				Title("Currency").
				Options(huh.NewOptions("EUR", "USD", "GBP", "CHF", "BRL")...).
				Value(&m.draft.currency),
			huh.NewInput().
				Title("Opening balance").
				Value(&m.draft.opening).
				Validate(validateAmount),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = accountsStateCreate
	m.table.Blur()

	return m, m.form.Init()
}

func validateAmount(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return errors.New("not a number")
	}

	if d.IsNegative() {
		return errors.New("cannot be negative")
	}

	return nil
}

func (m AccountsModel) updateCreate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc {
		m.state = accountsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.createCmd(*m.draft)
}

func (m AccountsModel) View() string {
	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	content := bordered(m.table.View())

	if m.state == accountsStateCreate && m.form != nil {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel("New Account", m.form.View()))
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *AccountsModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.accounts))
	for _, a := range m.accounts {
		rows = append(rows, table.Row{
			a.Name,
			a.Currency,
			a.Display(),
			formatMoney(a.OpeningBalance, a),
		})
	}

	m.table.SetRows(rows)
}

// Messages

type accountsLoadedMsg struct {
	accounts []*account.Account
	err      error
}

type accountActionMsg struct {
	status string
	err    error
}

func (m AccountsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		accounts, err := m.svc.Accounts.List(ctx, m.svc.OwnerID)

		return accountsLoadedMsg{accounts: accounts, err: err}
	}
}

func (m AccountsModel) createCmd(d accountDraft) tea.Cmd {
	return func() tea.Msg {
		opening, err := decimal.NewFromString(strings.TrimSpace(d.opening))
		if err != nil {
			return accountActionMsg{err: err}
		}

		ctx, cancel := DbCtx()
		defer cancel()

		a, err := m.svc.Accounts.Create(ctx, account.CreateParams{
			OwnerID:        m.svc.OwnerID,
			Name:           d.name,
			Currency:       d.currency,
			OpeningBalance: opening,
		})
		if err != nil {
			return accountActionMsg{err: err}
		}

		return accountActionMsg{status: fmt.Sprintf("Created %s with %s.", a.Name, a.Display())}
	}
}

func (m AccountsModel) verifyCmd(a *account.Account) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		r, err := m.svc.Ledger.Reconcile(ctx, m.svc.OwnerID, a.ID, false)
		if err != nil {
			return accountActionMsg{err: err}
		}

		if err := r.Err(); err != nil {
			return accountActionMsg{err: err}
		}

		return accountActionMsg{status: fmt.Sprintf("%s balance matches its transactions.", a.Name)}
	}
}

func (m AccountsModel) deleteCmd(a *account.Account) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if err := m.svc.Accounts.Delete(ctx, m.svc.OwnerID, a.ID); err != nil {
			return accountActionMsg{err: err}
		}

		return accountActionMsg{status: fmt.Sprintf("Deleted %s.", a.Name)}
	}
}

// Shared table chrome

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

func bordered(s string) string {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(s)
}

func panel(title, body string) string {
	return lipgloss.NewStyle().
		Padding(1, 2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(48).
		Render(title + "\n\n" + body)
}
