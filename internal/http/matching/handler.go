package matching

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/tally/internal/http/auth"
	"github.com/MrJamesThe3rd/tally/internal/http/render"
	"github.com/MrJamesThe3rd/tally/internal/matching"
)

type Handler struct {
	svc *matching.Service
}

func NewHandler(svc *matching.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/suggest", h.suggest)
	r.Post("/", h.learn)
}

type suggestResponse struct {
	RawSource       string `json:"raw_source"`
	PreferredSource string `json:"preferred_source"`
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	raw := r.URL.Query().Get("raw_source")
	if raw == "" {
		render.Error(w, http.StatusBadRequest, "raw_source query parameter is required")
		return
	}

	preferred, err := h.svc.Suggest(r.Context(), owner, raw)
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, suggestResponse{
		RawSource:       raw,
		PreferredSource: preferred,
	})
}

type learnRequest struct {
	RawPattern      string `json:"raw_pattern"`
	PreferredSource string `json:"preferred_source"`
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	var req learnRequest
	if !render.Decode(w, r, &req) {
		return
	}

	if err := h.svc.Learn(r.Context(), owner, req.RawPattern, req.PreferredSource); err != nil {
		render.DomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}
