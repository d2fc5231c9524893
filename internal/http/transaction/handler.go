package transaction

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/http/auth"
	"github.com/MrJamesThe3rd/tally/internal/http/render"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type Handler struct {
	svc *ledger.Service
}

func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type createRequest struct {
	Type        ledger.Type `json:"type"`
	Amount      amount      `json:"amount"`
	AccountID   string      `json:"account_id"`
	ToAccountID string      `json:"to_account_id"`
	Source      string      `json:"source"`
	Date        string      `json:"date"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	var req createRequest
	if !render.Decode(w, r, &req) {
		return
	}

	t, err := h.svc.Create(r.Context(), owner, ledger.Candidate{
		Type:        req.Type,
		Amount:      string(req.Amount),
		AccountID:   req.AccountID,
		ToAccountID: req.ToAccountID,
		Source:      req.Source,
		Date:        req.Date,
	})
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	filter, ok := ParseFilter(w, r)
	if !ok {
		return
	}

	txs, err := h.svc.List(r.Context(), owner, filter)
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponseList(txs))
}

// ParseFilter reads account_id, type, start_date and end_date from the query.
func ParseFilter(w http.ResponseWriter, r *http.Request) (ledger.ListFilter, bool) {
	var filter ledger.ListFilter

	q := r.URL.Query()

	if s := q.Get("account_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			render.Error(w, http.StatusBadRequest, "invalid account_id")
			return filter, false
		}

		filter.AccountID = &id
	}

	if s := q.Get("type"); s != "" {
		typ := ledger.Type(s)
		if !typ.Valid() {
			render.Error(w, http.StatusBadRequest, "invalid type")
			return filter, false
		}

		filter.Type = &typ
	}

	for key, dst := range map[string]**time.Time{"start_date": &filter.StartDate, "end_date": &filter.EndDate} {
		s := q.Get(key)
		if s == "" {
			continue
		}

		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			render.Error(w, http.StatusBadRequest, "invalid "+key)
			return filter, false
		}

		*dst = &t
	}

	return filter, true
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	t, err := h.svc.Get(r.Context(), owner, id)
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(t))
}

type updateRequest struct {
	Type        *ledger.Type `json:"type"`
	Amount      *amount      `json:"amount"`
	AccountID   *string      `json:"account_id"`
	ToAccountID *string      `json:"to_account_id"`
	Source      *string      `json:"source"`
	Date        *string      `json:"date"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if !render.Decode(w, r, &req) {
		return
	}

	patch := ledger.Patch{
		Type:        req.Type,
		AccountID:   req.AccountID,
		ToAccountID: req.ToAccountID,
		Source:      req.Source,
		Date:        req.Date,
	}

	if req.Amount != nil {
		patch.Amount = new(string(*req.Amount))
	}

	t, err := h.svc.Update(r.Context(), owner, id, patch)
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), owner, id); err != nil {
		render.DomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func transactionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Error(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}

	return id, true
}
