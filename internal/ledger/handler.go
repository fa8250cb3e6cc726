package ledger

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Handler serves read-only journal endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.getJournal)
	r.Get("/", h.listByTransaction)
}

func (h *Handler) getJournal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid journal id")
		return
	}
	journal, err := h.service.GetJournal(r.Context(), id)
	if err != nil {
		if err == ErrJournalNotFound {
			httpx.RespondError(w, fmt.Errorf("%w: journal %d", httpx.ErrNotFound, id))
			return
		}
		h.logger.Error("get journal", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, journal)
}

func (h *Handler) listByTransaction(w http.ResponseWriter, r *http.Request) {
	txnID, err := strconv.ParseInt(r.URL.Query().Get("transaction_id"), 10, 64)
	if err != nil || txnID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "transaction_id query parameter required")
		return
	}
	journals, err := h.service.ListByTransaction(r.Context(), txnID)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err), slog.Int64("transaction_id", txnID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": journals})
}
