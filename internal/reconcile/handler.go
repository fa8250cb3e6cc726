package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/banking"
	"github.com/ledgerline/ledgerline/internal/invoices"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler wires the transaction reconciliation endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validator   *validator.Validate
	idempotency *shared.IdempotencyStore
}

// NewHandler constructs a Handler instance. idempotency may be nil, which
// disables Idempotency-Key handling.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		validator:   validator.New(),
		idempotency: idempotency,
	}
}

// claimIdempotencyKey inserts the request key when the caller supplied one.
// A duplicate key answers 409 without running the operation again. The
// returned release frees the key so a failed operation can be retried with
// the same key; callers must not release after success.
func (h *Handler) claimIdempotencyKey(w http.ResponseWriter, r *http.Request, module string) (func(), bool) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" || h.idempotency == nil {
		return func() {}, true
	}
	if err := h.idempotency.CheckAndInsert(r.Context(), key, module); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
			return nil, false
		}
		h.logger.Error("idempotency check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return nil, false
	}
	return func() {
		if err := h.idempotency.Delete(context.WithoutCancel(r.Context()), key); err != nil {
			h.logger.Warn("idempotency release", slog.String("key", key), slog.Any("error", err))
		}
	}, true
}

// MountRoutes registers transaction routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/explain", h.explainNew)
	r.Post("/delete", h.deleteMany)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.deleteOne)
	r.Post("/{id}/explain", h.explainExisting)
	r.Post("/{id}/unexplain", h.unexplain)
}

type explainPayload struct {
	BankAccountID     int64               `json:"bank_account_id" validate:"required,gt=0"`
	Category          string              `json:"category" validate:"required"`
	Amount            decimal.Decimal     `json:"amount"`
	Date              string              `json:"date" validate:"required"`
	Description       string              `json:"description"`
	ExchangeRate      decimal.Decimal     `json:"exchange_rate"`
	Flag              string              `json:"flag" validate:"omitempty,oneof=D C"`
	ContactID         *int64              `json:"contact_id"`
	AttachmentRef     *string             `json:"attachment_ref"`
	Allocations       []InvoiceAllocation `json:"invoices" validate:"omitempty,dive"`
	CreditNoteID      *int64              `json:"credit_note_id"`
	PayrollIDs        []int64             `json:"payroll_ids" validate:"omitempty,dive,gt=0"`
	FilingID          *int64              `json:"filing_id"`
	TargetAccountName string              `json:"target_account"`
	VatAmount         decimal.Decimal     `json:"vat_amount"`
	ExchangeGainLoss  decimal.Decimal     `json:"exchange_gain_loss"`
}

func (p explainPayload) toRequest(transactionID *int64) (ExplainRequest, error) {
	date, err := time.Parse("2006-01-02", p.Date)
	if err != nil {
		return ExplainRequest{}, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
	}
	return ExplainRequest{
		TransactionID:     transactionID,
		BankAccountID:     p.BankAccountID,
		Category:          ledger.Category(p.Category),
		Amount:            p.Amount,
		Date:              date,
		Description:       p.Description,
		ExchangeRate:      p.ExchangeRate,
		ContactID:         p.ContactID,
		AttachmentRef:     p.AttachmentRef,
		Flag:              p.Flag,
		Allocations:       p.Allocations,
		CreditNoteID:      p.CreditNoteID,
		PayrollIDs:        p.PayrollIDs,
		FilingID:          p.FilingID,
		TargetAccountName: p.TargetAccountName,
		VatAmount:         p.VatAmount,
		ExchangeGainLoss:  p.ExchangeGainLoss,
	}, nil
}

func (h *Handler) explainNew(w http.ResponseWriter, r *http.Request) {
	h.explain(w, r, nil)
}

func (h *Handler) explainExisting(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	h.explain(w, r, &id)
}

func (h *Handler) explain(w http.ResponseWriter, r *http.Request, transactionID *int64) {
	release, ok := h.claimIdempotencyKey(w, r, shared.IdempotencyModuleExplain)
	if !ok {
		return
	}
	var payload explainPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		release()
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		release()
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	req, err := payload.toRequest(transactionID)
	if err != nil {
		release()
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Explain(r.Context(), req)
	if err != nil {
		release()
		h.respondDomainError(w, "explain", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"transaction": result.Transaction,
		"explanation": result.Explanation,
	})
}

type unexplainPayload struct {
	ExplanationID int64 `json:"explanation_id" validate:"required,gt=0"`
}

func (h *Handler) unexplain(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	release, ok := h.claimIdempotencyKey(w, r, shared.IdempotencyModuleUnexplain)
	if !ok {
		return
	}
	var payload unexplainPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		release()
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		release()
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	txn, err := h.service.Unexplain(r.Context(), UnexplainRequest{
		TransactionID: id,
		ExplanationID: payload.ExplanationID,
	})
	if err != nil {
		release()
		h.respondDomainError(w, "unexplain", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok", "transaction": txn})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accountID, err := strconv.ParseInt(q.Get("bank_account_id"), 10, 64)
	if err != nil || accountID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bank_account_id query parameter required")
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := banking.ListFilter{
		BankAccountID: accountID,
		Status:        banking.ExplanationStatus(q.Get("status")),
		Pagination:    shared.NewPagination(page, perPage, 0),
	}
	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondDomainError(w, "list transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"account":         result.Account,
		"transactions":    result.Transactions,
		"explained_count": result.ExplainedCount,
		"pagination":      shared.NewPagination(page, perPage, result.Total),
	})
}

func (h *Handler) deleteOne(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondDomainError(w, "delete transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok", "note": deleteNote})
}

// Deleting does not reverse postings. Callers are told so on every delete.
const deleteNote = "postings were not reversed; unexplain before deleting to restore documents and balances"

type deleteManyPayload struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

func (h *Handler) deleteMany(w http.ResponseWriter, r *http.Request) {
	var payload deleteManyPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.service.DeleteMany(r.Context(), payload.IDs); err != nil {
		h.respondDomainError(w, "delete transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok", "note": deleteNote})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return 0, false
	}
	return id, true
}

// respondDomainError maps domain sentinels onto the RFC 7807 responder.
// Anything unmapped is logged and answered as an internal error.
func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrUnrecognizedCategory),
		errors.Is(err, ErrAmountMismatch),
		errors.Is(err, invoices.ErrOverpayment):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnprocessable, err))
	case errors.Is(err, ErrAlreadyExplained),
		errors.Is(err, ErrNothingToReverse),
		errors.Is(err, ErrTransactionBusy):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	case errors.Is(err, ErrDocumentNotFound),
		errors.Is(err, ErrExplanationNotFound),
		errors.Is(err, banking.ErrTransactionNotFound),
		errors.Is(err, banking.ErrAccountNotFound),
		errors.Is(err, ledger.ErrJournalNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
