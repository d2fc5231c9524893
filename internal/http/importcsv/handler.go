package importcsv

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/http/auth"
	"github.com/MrJamesThe3rd/tally/internal/http/render"
	"github.com/MrJamesThe3rd/tally/internal/importer"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/matching"
)

const maxUpload = 10 << 20

type Handler struct {
	importSvc *importer.Service
	ledgerSvc *ledger.Service
	matchSvc  *matching.Service
}

func NewHandler(importSvc *importer.Service, ledgerSvc *ledger.Service, matchSvc *matching.Service) *Handler {
	return &Handler{
		importSvc: importSvc,
		ledgerSvc: ledgerSvc,
		matchSvc:  matchSvc,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/banks", h.banks)
	r.Post("/", h.importCSV)
	r.Post("/confirm", h.confirmImport)
}

type rowDTO struct {
	Date      string          `json:"date"`
	Type      ledger.Type     `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Source    string          `json:"source"`
	RawSource string          `json:"raw_source,omitempty"`
}

type transactionResponse struct {
	ID        uuid.UUID   `json:"id"`
	Type      ledger.Type `json:"type"`
	Amount    string      `json:"amount"`
	AccountID uuid.UUID   `json:"account_id"`
	Source    string      `json:"source"`
	Date      string      `json:"date"`
	CreatedAt time.Time   `json:"created_at"`
}

type importSuccessResponse struct {
	Imported     int                   `json:"imported"`
	Transactions []transactionResponse `json:"transactions"`
}

type conflictDTO struct {
	Incoming rowDTO              `json:"incoming"`
	Existing transactionResponse `json:"existing"`
}

type importConflictResponse struct {
	New       []rowDTO      `json:"new"`
	Conflicts []conflictDTO `json:"conflicts"`
}

type confirmRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Rows      []rowDTO  `json:"rows"`
}

func (h *Handler) banks(w http.ResponseWriter, _ *http.Request) {
	render.JSON(w, http.StatusOK, map[string][]importer.Bank{"banks": h.importSvc.Banks()})
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		render.Error(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}

	bank := importer.Bank(r.FormValue("bank"))
	if bank == "" {
		render.Error(w, http.StatusBadRequest, "bank field is required")
		return
	}

	accountID, err := uuid.Parse(r.FormValue("account_id"))
	if err != nil {
		render.Error(w, http.StatusBadRequest, "account_id field is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		render.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	rows, err := h.importSvc.Import(bank, file)
	if err != nil {
		render.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.suggestSources(r, owner, rows); err != nil {
		render.DomainError(w, r, err)
		return
	}

	result, err := h.ledgerSvc.ImportBatch(r.Context(), owner, accountID, rows)
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	if len(result.Conflicts) > 0 {
		resp := importConflictResponse{
			New:       make([]rowDTO, 0, len(result.New)),
			Conflicts: make([]conflictDTO, 0, len(result.Conflicts)),
		}

		for _, row := range result.New {
			resp.New = append(resp.New, toRowDTO(row))
		}

		for _, c := range result.Conflicts {
			resp.Conflicts = append(resp.Conflicts, conflictDTO{
				Incoming: toRowDTO(c.Incoming),
				Existing: toTxResponse(c.Existing),
			})
		}

		render.JSON(w, http.StatusConflict, resp)

		return
	}

	render.JSON(w, http.StatusCreated, toSuccessResponse(result.Imported))
}

// suggestSources fills Source from the owner's learned mappings, falling
// back to the statement description.
func (h *Handler) suggestSources(r *http.Request, owner uuid.UUID, rows []ledger.ImportRow) error {
	raw := make([]string, len(rows))
	for i, row := range rows {
		raw[i] = row.RawSource
	}

	sources, err := h.matchSvc.Apply(r.Context(), owner, raw)
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

func (h *Handler) confirmImport(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerID(r.Context())

	var req confirmRequest
	if !render.Decode(w, r, &req) {
		return
	}

	rows := make([]ledger.ImportRow, 0, len(req.Rows))

	for i, dto := range req.Rows {
		date, err := time.Parse(time.DateOnly, dto.Date)
		if err != nil {
			render.Error(w, http.StatusBadRequest, fmt.Sprintf("rows[%d].date: expected YYYY-MM-DD", i))
			return
		}

		rows = append(rows, ledger.ImportRow{
			Date:      date,
			Type:      dto.Type,
			Amount:    dto.Amount,
			Source:    dto.Source,
			RawSource: dto.RawSource,
		})
	}

	txs, err := h.ledgerSvc.CreateBatch(r.Context(), owner, req.AccountID, rows)
	if err != nil {
		render.DomainError(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, toSuccessResponse(txs))
}

func toSuccessResponse(txs []*ledger.Transaction) importSuccessResponse {
	responses := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		responses = append(responses, toTxResponse(t))
	}

	return importSuccessResponse{
		Imported:     len(txs),
		Transactions: responses,
	}
}

func toTxResponse(t *ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:        t.ID,
		Type:      t.Type,
		Amount:    t.Amount.StringFixed(2),
		AccountID: t.AccountID,
		Source:    t.Source,
		Date:      t.Date.Format(time.DateOnly),
		CreatedAt: t.CreatedAt,
	}
}

func toRowDTO(row ledger.ImportRow) rowDTO {
	return rowDTO{
		Date:      row.Date.Format(time.DateOnly),
		Type:      row.Type,
		Amount:    row.Amount,
		Source:    row.Source,
		RawSource: row.RawSource,
	}
}
