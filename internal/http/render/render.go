// Package render writes JSON responses and maps domain errors to HTTP
// statuses for the API handlers.
package render

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/matching"
)

type errorResponse struct {
	Error      string      `json:"error"`
	Violations []violation `json:"violations,omitempty"`
}

type violation struct {
	Field     string     `json:"field"`
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	AccountID *uuid.UUID `json:"account_id,omitempty"`
	Available string     `json:"available,omitempty"`
	Requested string     `json:"requested,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorResponse{Error: msg})
}

// Decode reads a JSON body into v and answers 400 on failure.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}

	return true
}

// DomainError answers with the status matching err. Unexpected errors are
// logged and reported as 500 without detail.
func DomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ledger.ValidationError

	switch {
	case errors.As(err, &verr):
		JSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:      ledger.ErrValidationFailed.Error(),
			Violations: violations(verr.Violations),
		})
	case errors.Is(err, ledger.ErrNotFound):
		Error(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, account.ErrNotFound):
		Error(w, http.StatusNotFound, "account not found")
	case errors.Is(err, account.ErrInUse):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrInvalid), errors.Is(err, matching.ErrInvalid):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

func violations(vs []ledger.Violation) []violation {
	out := make([]violation, len(vs))

	for i, v := range vs {
		out[i] = violation{Field: v.Field, Code: v.Code, Message: v.Message}

		if v.Code == ledger.CodeInsufficientBalance {
			out[i].AccountID = &v.AccountID
		}

		if v.Available != nil {
			out[i].Available = v.Available.StringFixed(2)
		}

		if v.Requested != nil {
			out[i].Requested = v.Requested.StringFixed(2)
		}
	}

	return out
}
