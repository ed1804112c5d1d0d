package bulkops

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/verdant-pos/verdant-pos/internal/platform/httpx"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// Handler wires the bulk inventory operations endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	devMode bool
}

// NewHandler constructs Handler. devMode controls error detail exposure.
func NewHandler(logger *slog.Logger, service *Service, devMode bool) *Handler {
	return &Handler{logger: logger, service: service, devMode: devMode}
}

// MountRoutes registers bulk operation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/bulk-inventory-operations", h.handleExecute)
}

type itemRequest struct {
	InventoryID      string           `json:"inventoryId"`
	ProductID        string           `json:"productId"`
	ProductName      string           `json:"productName"`
	LocationID       string           `json:"locationId"`
	NewQuantity      *decimal.Decimal `json:"newQuantity"`
	TransferQuantity *decimal.Decimal `json:"transferQuantity"`
}

type executeRequest struct {
	Operation    string        `json:"operation" validate:"required,oneof=zero_out audit transfer"`
	Items        []itemRequest `json:"items" validate:"required,min=1"`
	ToLocationID string        `json:"toLocationId"`
}

type executeResponse struct {
	Success bool    `json:"success"`
	Results Results `json:"results"`
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	vc, ok := shared.VendorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "vendor identity required")
		return
	}

	var req executeRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, Item{
			InventoryID:      it.InventoryID,
			ProductID:        it.ProductID,
			ProductName:      it.ProductName,
			LocationID:       it.LocationID,
			NewQuantity:      it.NewQuantity,
			TransferQuantity: it.TransferQuantity,
		})
	}

	results, err := h.service.Execute(r.Context(), vc, Request{
		Operation:    Operation(req.Operation),
		Items:        items,
		ToLocationID: req.ToLocationID,
	})
	if err != nil {
		if errors.Is(err, ErrMalformedRequest) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		h.logger.Error("bulk operation failed", slog.Any("error", err), slog.String("operation", req.Operation))
		httpx.RespondError(w, err, h.devMode)
		return
	}

	h.logger.Info("bulk operation complete",
		slog.String("operation", req.Operation),
		slog.Int("success", results.Success),
		slog.Int("failed", results.Failed),
		slog.String("vendor_id", vc.VendorID))
	httpx.JSON(w, http.StatusOK, executeResponse{Success: true, Results: results})
}
