package account

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/http/auth"
	"github.com/MrJamesThe3rd/tally/internal/http/render"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type Handler struct {
	accounts *account.Service
	ledger   *ledger.Service
}

func NewHandler(accounts *account.Service, ledgerSvc *ledger.Service) *Handler {
	return &Handler{accounts: accounts, ledger: ledgerSvc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.rename)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/reconcile", h.reconcile)
}

type accountResponse struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Currency       string     `json:"currency"`
	OpeningBalance string     `json:"opening_balance"`
	Balance        string     `json:"balance"`
	Display        string     `json:"display"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

func toResponse(a *account.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Currency:       a.Currency,
		OpeningBalance: a.OpeningBalance.StringFixed(2),
		Balance:        a.Balance.StringFixed(2),
		Display:        a.Display(),
		Version:        a.Version,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type createRequest struct {
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	var req createRequest
	if !render.Decode(w, r, &req) {
		return
	}

	a, err := h.accounts.Create(r.Context(), account.CreateParams{
		OwnerID:        owner,
		Name:           req.Name,
		Currency:       req.Currency,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, toResponse(a))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	accounts, err := h.accounts.List(r.Context(), owner)
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	resp := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		resp[i] = toResponse(a)
	}

	render.JSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	id, ok := accountID(w, r)
	if !ok {
		return
	}

	a, err := h.accounts.Get(r.Context(), owner, id)
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(a))
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req renameRequest
	if !render.Decode(w, r, &req) {
		return
	}

	if err := h.accounts.Rename(r.Context(), owner, id, req.Name); err != nil {
		render.DomainError(w, r, err)
		return
	}

	a, err := h.accounts.Get(r.Context(), owner, id)
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	id, ok := accountID(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Delete(r.Context(), owner, id); err != nil {
		render.DomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type reconcileResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Cached    string    `json:"cached"`
	Computed  string    `json:"computed"`
	Drift     string    `json:"drift"`
	Applied   bool      `json:"applied"`
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	id, ok := accountID(w, r)
	if !ok {
		return
	}

	apply := false

	if s := r.URL.Query().Get("apply"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			render.Error(w, http.StatusBadRequest, "apply must be a boolean")
			return
		}

		apply = v
	}

	rec, err := h.ledger.Reconcile(r.Context(), owner, id, apply)
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, reconcileResponse{
		AccountID: rec.AccountID,
		Cached:    rec.Cached.StringFixed(2),
		Computed:  rec.Computed.StringFixed(2),
		Drift:     rec.Drift.StringFixed(2),
		Applied:   rec.Applied,
	})
}

func accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Error(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}

	return id, true
}
