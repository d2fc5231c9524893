package export

import (
	"net/http"

	"github.com/MrJamesThe3rd/tally/internal/export"
	"github.com/MrJamesThe3rd/tally/internal/http/auth"
	"github.com/MrJamesThe3rd/tally/internal/http/render"
	"github.com/MrJamesThe3rd/tally/internal/http/transaction"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

// Export streams the owner's transactions as CSV, or as a plain-text
// summary when format=summary. It accepts the same filters as the
// transaction list.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	filter, ok := transaction.ParseFilter(w, r)
	if !ok {
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)

		if err := h.svc.WriteCSV(r.Context(), owner, filter, w); err != nil {
			render.DomainError(w, r, err)
		}
	case "summary":
		items, err := h.svc.Items(r.Context(), owner, filter)
		if err != nil {
			render.DomainError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(export.Summary(items)))
	default:
		render.Error(w, http.StatusBadRequest, "format must be csv or summary")
	}
}
