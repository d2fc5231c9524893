package transaction

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type transactionResponse struct {
	ID          uuid.UUID   `json:"id"`
	Type        ledger.Type `json:"type"`
	Amount      string      `json:"amount"`
	AccountID   uuid.UUID   `json:"account_id"`
	ToAccountID *uuid.UUID  `json:"to_account_id,omitempty"`
	Source      string      `json:"source"`
	Date        string      `json:"date"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
}

func toResponse(t *ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      t.Amount.StringFixed(2),
		AccountID:   t.AccountID,
		ToAccountID: t.ToAccountID,
		Source:      t.Source,
		Date:        t.Date.Format(time.DateOnly),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toResponseList(txs []*ledger.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, t := range txs {
		resp[i] = toResponse(t)
	}

	return resp
}

// amount accepts either a JSON string ("12.50") or a bare number (12.50)
// and keeps the literal text so the validator sees exactly what was sent.
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}

		*a = amount(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}

	*a = amount(n)

	return nil
}
