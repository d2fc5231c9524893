package view

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/export"
	"github.com/MrJamesThe3rd/tally/internal/importer"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/matching"
)

const dbTimeout = 5 * time.Second

// Services is everything a view may call. The terminal client acts for a
// single owner.
type Services struct {
	OwnerID  uuid.UUID
	Accounts *account.Service
	Ledger   *ledger.Service
	Matching *matching.Service
	Importer *importer.Service
	Export   *export.Service
}

type CommonModel struct {
	svc Services
}

type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}
