package main

import (
	"context"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/tally/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/tally/internal/account"
	accountStore "github.com/MrJamesThe3rd/tally/internal/account/store"
	"github.com/MrJamesThe3rd/tally/internal/config"
	"github.com/MrJamesThe3rd/tally/internal/database"
	"github.com/MrJamesThe3rd/tally/internal/export"
	"github.com/MrJamesThe3rd/tally/internal/importer"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	ledgerStore "github.com/MrJamesThe3rd/tally/internal/ledger/store"
	"github.com/MrJamesThe3rd/tally/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/tally/internal/matching/store"
)

type View int

const (
	ViewMenu View = iota
	ViewAccounts
	ViewTransactions
	ViewImport
	ViewExport
	ViewRules
)

type model struct {
	svc view.Services

	currentView View

	accountsView view.AccountsModel
	listView     view.ListModel
	importView   view.ImportModel
	exportView   view.ExportModel
	rulesView    view.RulesModel
}

func initialModel() model {
	_ = godotenv.Load()

	cfg, err := config.LoadTUI()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(context.Background(), cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	accountSvc := account.NewService(accountStore.New(db))
	ledgerSvc := ledger.NewService(ledgerStore.New(db))

	svc := view.Services{
		OwnerID:  cfg.OwnerID,
		Accounts: accountSvc,
		Ledger:   ledgerSvc,
		Matching: matching.NewService(matchingStore.New(db)),
		Importer: importer.NewService(),
		Export:   export.NewService(ledgerSvc, accountSvc),
	}

	return model{svc: svc, currentView: ViewMenu}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			return m.updateMenu(msg)
		}

		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	var (
		next tea.Model
		cmd  tea.Cmd
	)

	switch m.currentView {
	case ViewAccounts:
		next, cmd = m.accountsView.Update(msg)
		m.accountsView = next.(view.AccountsModel)
	case ViewTransactions:
		next, cmd = m.listView.Update(msg)
		m.listView = next.(view.ListModel)
	case ViewImport:
		next, cmd = m.importView.Update(msg)
		m.importView = next.(view.ImportModel)
	case ViewExport:
		next, cmd = m.exportView.Update(msg)
		m.exportView = next.(view.ExportModel)
	case ViewRules:
		next, cmd = m.rulesView.Update(msg)
		m.rulesView = next.(view.RulesModel)
	}

	return m, cmd
}

// updateMenu rebuilds the chosen view so it always opens on fresh data.
func (m model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "1":
		m.currentView = ViewAccounts
		m.accountsView = view.NewAccountsModel(m.svc)

		return m, m.accountsView.Init()
	case "2":
		m.currentView = ViewTransactions
		m.listView = view.NewListModel(m.svc)

		return m, m.listView.Init()
	case "3":
		m.currentView = ViewImport
		m.importView = view.NewImportModel(m.svc)

		return m, m.importView.Init()
	case "4":
		m.currentView = ViewExport
		m.exportView = view.NewExportModel(m.svc)

		return m, m.exportView.Init()
	case "5":
		m.currentView = ViewRules
		m.rulesView = view.NewRulesModel(m.svc)

		return m, m.rulesView.Init()
	}

	return m, nil
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"Tally\n\n" +
				"1. Accounts\n" +
				"2. Transactions\n" +
				"3. Import Statement\n" +
				"4. Export Transactions\n" +
				"5. Matching Rules\n\n" +
				"q. Quit",
		)
	case ViewAccounts:
		return m.accountsView.View()
	case ViewTransactions:
		return m.listView.View()
	case ViewImport:
		return m.importView.View()
	case ViewExport:
		return m.exportView.View()
	case ViewRules:
		return m.rulesView.View()
	}

	return "Unknown View"
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
