package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type listState int

const (
	listStateBrowse listState = iota
	listStateTimeframe
	listStateCreate
	listStateEdit
)

var typeFilters = []ledger.Type{"", ledger.TypeIncome, ledger.TypeExpense, ledger.TypeTransfer}

// txDraft backs the create and edit forms.
type txDraft struct {
	typ       ledger.Type
	accountID string
	toAccount string
	amount    string
	source    string
	date      string
}

type ListModel struct {
	CommonModel

	state    listState
	table    table.Model
	txs      []*ledger.Transaction
	accounts []*account.Account
	byID     map[uuid.UUID]*account.Account
	form     *huh.Form
	draft    *txDraft
	picker   TimeframePicker

	accountFilterIdx int
	typeFilterIdx    int
	timeframe        TimeframeSelectedMsg

	loading bool
	err     error
	status  string
}

func NewListModel(svc Services) ListModel {
	return ListModel{
		CommonModel: CommonModel{svc: svc},
		table: newTable([]table.Column{
			{Title: "Date", Width: 12},
			{Title: "Type", Width: 10},
			{Title: "Amount", Width: 14},
			{Title: "Account", Width: 24},
			{Title: "Source", Width: 36},
		}),
		picker:  NewTimeframePicker(TimeframeAll),
		loading: true,
	}
}

func (m ListModel) Title() string { return "Transactions" }

func (m ListModel) ShortHelp() string {
	switch m.state {
	case listStateCreate, listStateEdit:
		return "Navigate form | Esc: cancel"
	case listStateTimeframe:
		return "Enter: select | Esc: cancel"
	}

	return "Esc: back | n: new | e: edit | x: delete | a: account | t: type | d: dates | r: refresh"
}

func (m ListModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadListMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.txs = msg.txs
		m.accounts = msg.accounts
		m.byID = accountIndex(msg.accounts)
		m.refreshTable()

		return m, nil

	case listSaveMsg:
		m.status = msg.status
		if msg.err != nil {
			m.status = describeError(msg.err)
		}

		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadCmd()

	case TimeframeSelectedMsg:
		m.timeframe = msg
		m.state = listStateBrowse
		m.table.Focus()

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case listStateTimeframe:
		if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc && m.picker.Selecting() {
			m.state = listStateBrowse
			m.table.Focus()

			return m, nil
		}

		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)

		return m, cmd
	case listStateCreate, listStateEdit:
		return m.updateForm(msg)
	}

	return m.updateBrowse(msg)
}

func (m ListModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "n":
			return m.enterCreate()
		case "e":
			return m.enterEdit()
		case "x":
			if t := m.selected(); t != nil {
				return m, m.deleteCmd(t)
			}
		case "a":
			m.accountFilterIdx = (m.accountFilterIdx + 1) % (len(m.accounts) + 1)
			return m, m.loadCmd()
		case "t":
			m.typeFilterIdx = (m.typeFilterIdx + 1) % len(typeFilters)
			return m, m.loadCmd()
		case "d":
			m.state = listStateTimeframe
			m.picker = NewTimeframePicker(TimeframeAll)
			m.table.Blur()

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m ListModel) selected() *ledger.Transaction {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.txs) {
		return nil
	}

	return m.txs[idx]
}

func (m ListModel) filter() ledger.ListFilter {
	filter := m.timeframe.Apply(ledger.ListFilter{})

	if m.accountFilterIdx > 0 && m.accountFilterIdx <= len(m.accounts) {
		filter.AccountID = &m.accounts[m.accountFilterIdx-1].ID
	}

	if typ := typeFilters[m.typeFilterIdx]; typ != "" {
		filter.Type = &typ
	}

	return filter
}

func (m ListModel) accountOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(m.accounts))
	for _, a := range m.accounts {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%s (%s)", a.Name, a.Display()), a.ID.String()))
	}

	return opts
}

func (m ListModel) enterCreate() (tea.Model, tea.Cmd) {
	if len(m.accounts) == 0 {
		m.status = "Create an account first."
		return m, nil
	}

	m.draft = &txDraft{
		typ:       ledger.TypeExpense,
		accountID: m.accounts[0].ID.String(),
		date:      FormatDate(time.Now()),
	}

	d := m.draft

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ledger.Type]().
				Title("Type").
				Options(huh.NewOptions(ledger.TypeExpense, ledger.TypeIncome, ledger.TypeTransfer)...).
				Value(&d.typ),
			huh.NewSelect[string]().
				Title("Account").
				Options(m.accountOptions()...).
				Value(&d.accountID),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("To account").
				Options(m.accountOptions()...).
				Value(&d.toAccount),
		).WithHideFunc(func() bool { return d.typ != ledger.TypeTransfer }),
		huh.NewGroup(
			huh.NewInput().Title("Amount").Placeholder("0.00").Value(&d.amount).Validate(validateAmount),
			huh.NewInput().Title("Source").Value(&d.source),
			huh.NewInput().Title("Date").Placeholder("YYYY-MM-DD").Value(&d.date).Validate(validateDate),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = listStateCreate
	m.table.Blur()

	return m, m.form.Init()
}

func (m ListModel) enterEdit() (tea.Model, tea.Cmd) {
	t := m.selected()
	if t == nil {
		return m, nil
	}

	m.draft = &txDraft{
		amount: t.Amount.StringFixed(2),
		source: t.Source,
		date:   FormatDate(t.Date),
	}

	d := m.draft

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Amount").Value(&d.amount).Validate(validateAmount),
			huh.NewInput().Title("Source").Value(&d.source),
			huh.NewInput().Title("Date").Value(&d.date).Validate(validateDate),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = listStateEdit
	m.table.Blur()

	return m, m.form.Init()
}

func validateDate(s string) error {
	if _, err := time.Parse(time.DateOnly, strings.TrimSpace(s)); err != nil {
		return errors.New("expected YYYY-MM-DD")
	}

	return nil
}

func (m ListModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc {
		m.state = listStateBrowse
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

	if m.state == listStateCreate {
		return m, m.createCmd(*m.draft)
	}

	return m, m.updateCmd(m.selected(), *m.draft)
}

func (m ListModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading transactions...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	if m.state == listStateTimeframe {
		return lipgloss.NewStyle().Padding(1).Render(m.picker.View())
	}

	accountLabel := "All"
	if m.accountFilterIdx > 0 && m.accountFilterIdx <= len(m.accounts) {
		accountLabel = m.accounts[m.accountFilterIdx-1].Name
	}

	typeLabel := "All"
	if typ := typeFilters[m.typeFilterIdx]; typ != "" {
		typeLabel = string(typ)
	}

	dateLabel := "All Time"
	if m.timeframe.Start != nil {
		dateLabel = FormatDate(*m.timeframe.Start) + " .. " + FormatDate(*m.timeframe.End)
	}

	header := fmt.Sprintf(
		"Filter: [a] Account: %s | [t] Type: %s | [d] Dates: %s",
		activeStyle.Render(accountLabel),
		activeStyle.Render(typeLabel),
		activeStyle.Render(dateLabel),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		bordered(m.table.View()),
	)

	if m.form != nil {
		title := "New Transaction"
		if m.state == listStateEdit {
			title = "Edit Transaction"
		}

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel(title, m.form.View()))
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *ListModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.txs))

	for _, t := range m.txs {
		target := accountName(m.byID, &t.AccountID)
		if t.ToAccountID != nil {
			target += " -> " + accountName(m.byID, t.ToAccountID)
		}

		rows = append(rows, table.Row{
			FormatDate(t.Date),
			string(t.Type),
			FormatAmount(t, m.byID[t.AccountID]),
			target,
			t.Source,
		})
	}

	m.table.SetRows(rows)
}

// describeError lists each violation of a rejected transaction.
func describeError(err error) string {
	var verr *ledger.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Sprintf("Error: %v", err)
	}

	msgs := make([]string, len(verr.Violations))
	for i, v := range verr.Violations {
		msgs[i] = v.Field + ": " + v.Message
	}

	return "Rejected: " + strings.Join(msgs, "; ")
}

// Messages

type loadListMsg struct {
	txs      []*ledger.Transaction
	accounts []*account.Account
	err      error
}

type listSaveMsg struct {
	status string
	err    error
}

func (m ListModel) loadCmd() tea.Cmd {
	filter := m.filter()

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		accounts, err := m.svc.Accounts.List(ctx, m.svc.OwnerID)
		if err != nil {
			return loadListMsg{err: err}
		}

		txs, err := m.svc.Ledger.List(ctx, m.svc.OwnerID, filter)

		return loadListMsg{txs: txs, accounts: accounts, err: err}
	}
}

func (m ListModel) createCmd(d txDraft) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		c := ledger.Candidate{
			Type:      d.typ,
			Amount:    strings.TrimSpace(d.amount),
			AccountID: d.accountID,
			Source:    d.source,
			Date:      strings.TrimSpace(d.date),
		}
		if d.typ == ledger.TypeTransfer {
			c.ToAccountID = d.toAccount
		}

		t, err := m.svc.Ledger.Create(ctx, m.svc.OwnerID, c)
		if err != nil {
			return listSaveMsg{err: err}
		}

		return listSaveMsg{status: fmt.Sprintf("Recorded %s of %s.", t.Type, t.Amount.StringFixed(2))}
	}
}

func (m ListModel) updateCmd(t *ledger.Transaction, d txDraft) tea.Cmd {
	if t == nil {
		return nil
	}

	id := t.ID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		_, err := m.svc.Ledger.Update(ctx, m.svc.OwnerID, id, ledger.Patch{
			Amount: new(strings.TrimSpace(d.amount)),
			Source: new(d.source),
			Date:   new(strings.TrimSpace(d.date)),
		})
		if err != nil {
			return listSaveMsg{err: err}
		}

		return listSaveMsg{status: "Transaction updated."}
	}
}

func (m ListModel) deleteCmd(t *ledger.Transaction) tea.Cmd {
	id := t.ID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if err := m.svc.Ledger.Delete(ctx, m.svc.OwnerID, id); err != nil {
			return listSaveMsg{err: err}
		}

		return listSaveMsg{status: "Transaction deleted."}
	}
}
