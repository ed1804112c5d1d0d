package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verdant-pos/verdant-pos/internal/platform/httpx"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// Handler exposes read access to inventory records and their audit trail.
// Mutations only happen through the bulk operations endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	devMode bool
}

// NewHandler constructs Handler. devMode controls error detail exposure.
func NewHandler(logger *slog.Logger, service *Service, devMode bool) *Handler {
	return &Handler{logger: logger, service: service, devMode: devMode}
}

// MountRoutes registers inventory read routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory/{inventoryID}", h.handleGetRecord)
	r.Get("/inventory/{inventoryID}/transactions", h.handleListTransactions)
}

type recordResponse struct {
	ID                string `json:"id"`
	ProductID         string `json:"productId"`
	LocationID        string `json:"locationId"`
	Quantity          string `json:"quantity"`
	LowStockThreshold string `json:"lowStockThreshold"`
	UpdatedAt         string `json:"updatedAt"`
}

type transactionResponse struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	QuantityBefore string `json:"quantityBefore"`
	QuantityChange string `json:"quantityChange"`
	QuantityAfter  string `json:"quantityAfter"`
	Reason         string `json:"reason,omitempty"`
	ReferenceType  string `json:"referenceType,omitempty"`
	PerformedBy    string `json:"performedBy,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		ID:                rec.ID,
		ProductID:         rec.ProductID,
		LocationID:        rec.LocationID,
		Quantity:          rec.Quantity.String(),
		LowStockThreshold: rec.LowStockThreshold.String(),
		UpdatedAt:         rec.UpdatedAt.Format(time.RFC3339),
	}
}

// getScopedRecord loads the record and hides rows belonging to other
// vendors behind a not-found.
func (h *Handler) getScopedRecord(r *http.Request, vc shared.VendorContext) (Record, error) {
	rec, err := h.service.GetRecord(r.Context(), chi.URLParam(r, "inventoryID"))
	if err != nil {
		return Record{}, err
	}
	if rec.VendorID != vc.VendorID {
		return Record{}, shared.ErrNotFound
	}
	return rec, nil
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	vc, ok := shared.VendorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "vendor identity required")
		return
	}

	rec, err := h.getScopedRecord(r, vc)
	if err != nil {
		h.writeError(w, err, "load inventory record")
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	vc, ok := shared.VendorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "vendor identity required")
		return
	}

	rec, err := h.getScopedRecord(r, vc)
	if err != nil {
		h.writeError(w, err, "load inventory record")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid request", "limit must be a non-negative integer")
			return
		}
	}

	txs, err := h.service.ListTransactions(r.Context(), rec.ID, limit)
	if err != nil {
		h.writeError(w, err, "list inventory transactions")
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionResponse{
			ID:             tx.ID,
			Type:           string(tx.Type),
			QuantityBefore: tx.QuantityBefore.String(),
			QuantityChange: tx.QuantityChange.String(),
			QuantityAfter:  tx.QuantityAfter.String(),
			Reason:         tx.Reason,
			ReferenceType:  tx.ReferenceType,
			PerformedBy:    tx.PerformedBy,
			CreatedAt:      tx.CreatedAt.Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"record":       toRecordResponse(rec),
		"transactions": out,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, ErrRecordNotFound) {
		err = shared.ErrNotFound
	}
	if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(action, slog.Any("error", err))
	}
	httpx.RespondError(w, err, h.devMode)
}
