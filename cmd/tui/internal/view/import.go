package view

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/importer"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateBankSelect importState = iota
	importStateAccountSelect
	importStateFilePick
	importStateImporting
	importStateConflicts
	importStateResult
)

type ImportModel struct {
	CommonModel

	state      importState
	filePicker filepicker.Model

	banks      []importer.Bank
	bankCursor int
	bank       importer.Bank

	accounts      []*account.Account
	accountCursor int
	account       *account.Account

	newRows      []ledger.ImportRow
	conflicts    []ledger.Conflict
	conflictList list.Model
	selected     map[int]bool

	status string
	err    error
}

func NewImportModel(svc Services) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".CSV"}
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		CommonModel: CommonModel{svc: svc},
		filePicker:  fp,
		banks:       svc.Importer.Banks(),
		selected:    make(map[int]bool),
	}
}

func (m ImportModel) Title() string { return "Import Statement" }

func (m ImportModel) ShortHelp() string {
	if m.state == importStateConflicts {
		return "Space: toggle | a: all | n: none | Enter: confirm | Esc: cancel"
	}

	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.loadAccountsCmd()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

		switch m.state {
		case importStateBankSelect:
			return m.updateBankSelect(msg)
		case importStateAccountSelect:
			return m.updateAccountSelect(msg)
		case importStateConflicts:
			return m.updateConflicts(msg)
		}

	case importAccountsMsg:
		m.accounts = msg.accounts
		if msg.err != nil {
			m.state = importStateResult
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		return m, nil

	case importResultMsg:
		return m.handleImportResult(msg)

	case confirmResultMsg:
		m.state = importStateResult
		if msg.err != nil {
			m.err = msg.err
			m.status = describeError(msg.err)

			return m, nil
		}

		m.status = fmt.Sprintf("Imported %d transactions into %s.", msg.count, m.account.Name)

		return m, nil
	}

	if m.state != importStateFilePick {
		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = importStateImporting
		m.status = fmt.Sprintf("Importing from %s...", path)

		return m, m.importCmd(path)
	}

	return m, cmd
}

func (m ImportModel) handleImportResult(msg importResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.state = importStateResult
		m.err = msg.err
		m.status = describeError(msg.err)

		return m, nil
	}

	if len(msg.result.Conflicts) == 0 {
		m.state = importStateResult
		m.err = nil
		m.status = fmt.Sprintf("Imported %d transactions into %s.", len(msg.result.Imported), m.account.Name)

		return m, nil
	}

	m.newRows = msg.result.New
	m.conflicts = msg.result.Conflicts
	m.selected = make(map[int]bool)
	m.state = importStateConflicts

	items := make([]list.Item, len(m.conflicts))
	for i, c := range m.conflicts {
		items[i] = conflictItem{conflict: c, index: i}
	}

	delegate := conflictDelegate{selected: m.selected, account: m.account}
	m.conflictList = list.New(items, delegate, 80, 20)
	m.conflictList.Title = fmt.Sprintf("Possible duplicates (%d new rows will be imported)", len(m.newRows))
	m.conflictList.SetShowStatusBar(false)
	m.conflictList.SetFilteringEnabled(false)
	m.conflictList.SetShowHelp(false)

	return m, nil
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStateAccountSelect, importStateFilePick, importStateResult:
		m.state = importStateBankSelect
		m.err = nil
		m.status = ""

		return m, nil
	case importStateConflicts:
		m.state = importStateBankSelect
		m.conflicts = nil
		m.newRows = nil
		m.selected = make(map[int]bool)

		return m, nil
	}

	return m, Back
}

func (m ImportModel) updateBankSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.bankCursor > 0 {
			m.bankCursor--
		}
	case tea.KeyDown:
		if m.bankCursor < len(m.banks)-1 {
			m.bankCursor++
		}
	case tea.KeyEnter:
		if len(m.banks) == 0 {
			return m, nil
		}

		m.bank = m.banks[m.bankCursor]
		m.state = importStateAccountSelect
	}

	return m, nil
}

func (m ImportModel) updateAccountSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.accountCursor > 0 {
			m.accountCursor--
		}
	case tea.KeyDown:
		if m.accountCursor < len(m.accounts)-1 {
			m.accountCursor++
		}
	case tea.KeyEnter:
		if len(m.accounts) == 0 {
			return m, nil
		}

		m.account = m.accounts[m.accountCursor]
		m.state = importStateFilePick

		return m, m.filePicker.Init()
	}

	return m, nil
}

func (m ImportModel) updateConflicts(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case " ":
		idx := m.conflictList.Index()
		m.selected[idx] = !m.selected[idx]

		return m, nil
	case "a":
		for i := range m.conflicts {
			m.selected[i] = true
		}

		return m, nil
	case "n":
		for i := range m.conflicts {
			m.selected[i] = false
		}

		return m, nil
	case "enter":
		return m, m.confirmCmd()
	}

	var cmd tea.Cmd
	m.conflictList, cmd = m.conflictList.Update(msg)

	return m, cmd
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateBankSelect:
		return m.viewMenu("Select Bank:", len(m.banks), m.bankCursor, func(i int) string { return string(m.banks[i]) })
	case importStateAccountSelect:
		if len(m.accounts) == 0 {
			return lipgloss.NewStyle().Padding(2).Render("No accounts yet. Create one first.\n\n(Esc to go back)")
		}

		return m.viewMenu("Import into account:", len(m.accounts), m.accountCursor, func(i int) string {
			return fmt.Sprintf("%s (%s)", m.accounts[i].Name, m.accounts[i].Display())
		})
	case importStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("Select %s statement for %s:\n\n%s", m.bank, m.account.Name, m.filePicker.View()),
		)
	case importStateImporting:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case importStateConflicts:
		return lipgloss.NewStyle().Padding(1).Render(m.conflictList.View())
	case importStateResult:
		style := successStyle
		if m.err != nil {
			style = errorStyle
		}

		return lipgloss.NewStyle().Padding(2).Render(style.Render(m.status) + "\n\n(Esc to go back)")
	}

	return ""
}

func (m ImportModel) viewMenu(title string, n, cursor int, label func(int) string) string {
	s := title + "\n\n"

	for i := range n {
		marker := " "
		if i == cursor {
			marker = ">"
		}

		s += fmt.Sprintf("%s %s\n", marker, label(i))
	}

	return lipgloss.NewStyle().Padding(2).Render(s)
}

// Messages

type importAccountsMsg struct {
	accounts []*account.Account
	err      error
}

type importResultMsg struct {
	result *ledger.ImportResult
	err    error
}

type confirmResultMsg struct {
	count int
	err   error
}

func (m ImportModel) loadAccountsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		accounts, err := m.svc.Accounts.List(ctx, m.svc.OwnerID)

		return importAccountsMsg{accounts: accounts, err: err}
	}
}

func (m ImportModel) importCmd(path string) tea.Cmd {
	bank := m.bank
	accountID := m.account.ID

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importResultMsg{err: err}
		}
		defer f.Close()

		rows, err := m.svc.Importer.Import(bank, f)
		if err != nil {
			return importResultMsg{err: err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		if err := m.suggestSources(ctx, rows); err != nil {
			return importResultMsg{err: err}
		}

		result, err := m.svc.Ledger.ImportBatch(ctx, m.svc.OwnerID, accountID, rows)
		if err != nil {
			return importResultMsg{err: err}
		}

		return importResultMsg{result: result}
	}
}

func (m ImportModel) suggestSources(ctx context.Context, rows []ledger.ImportRow) error {
	raw := make([]string, len(rows))
	for i, r := range rows {
		raw[i] = r.RawSource
	}

	sources, err := m.svc.Matching.Apply(ctx, m.svc.OwnerID, raw)
	if err != nil {
		return err
	}

	for i := range rows {
		if rows[i].Source == "" {
			rows[i].Source = sources[i]
		}
	}

	return nil
}

func (m ImportModel) confirmCmd() tea.Cmd {
	rows := append([]ledger.ImportRow(nil), m.newRows...)

	for i, c := range m.conflicts {
		if m.selected[i] {
			rows = append(rows, c.Incoming)
		}
	}

	accountID := m.account.ID

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		txs, err := m.svc.Ledger.CreateBatch(ctx, m.svc.OwnerID, accountID, rows)
		if err != nil {
			return confirmResultMsg{err: err}
		}

		return confirmResultMsg{count: len(txs)}
	}
}

// Conflict list item

type conflictItem struct {
	conflict ledger.Conflict
	index    int
}

func (i conflictItem) FilterValue() string { return i.conflict.Incoming.RawSource }

type conflictDelegate struct {
	selected map[int]bool
	account  *account.Account
}

func (d conflictDelegate) Height() int                             { return 3 }
func (d conflictDelegate) Spacing() int                            { return 0 }
func (d conflictDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d conflictDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(conflictItem)
	if !ok {
		return
	}

	checkbox := "[ ]"
	if d.selected[item.index] {
		checkbox = "[x]"
	}

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
	}

	incoming := item.conflict.Incoming
	existing := item.conflict.Existing

	incomingTx := &ledger.Transaction{Type: incoming.Type, Amount: incoming.Amount}

	fmt.Fprintf(w, "%s%s %s  %s  %s\n      Existing: %s  %s  %s [%s]\n",
		cursor, checkbox,
		FormatDate(incoming.Date), FormatAmount(incomingTx, d.account), incoming.RawSource,
		FormatDate(existing.Date), FormatAmount(existing, d.account), existing.Source, shortID(existing.ID),
	)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
