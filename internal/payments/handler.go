package payments

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/verdant-pos/verdant-pos/internal/platform/httpx"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// Handler wires the payment processing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	devMode bool
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, devMode bool) *Handler {
	return &Handler{logger: logger, service: service, devMode: devMode}
}

// MountRoutes registers payment routes. One resource path, three verbs:
// POST charges, PUT refunds, DELETE voids.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payment/process", h.handleSale)
	r.Put("/payment/process", h.handleRefund)
	r.Delete("/payment/process", h.handleVoid)
}

type saleRequest struct {
	Amount        decimal.Decimal   `json:"amount" validate:"required"`
	TipAmount     decimal.Decimal   `json:"tipAmount"`
	PaymentMethod string            `json:"paymentMethod" validate:"required"`
	LocationID    string            `json:"locationId" validate:"required"`
	RegisterID    string            `json:"registerId"`
	SessionID     string            `json:"sessionId"`
	OrderID       string            `json:"orderId"`
	ReferenceID   string            `json:"referenceId"`
	InvoiceNumber string            `json:"invoiceNumber"`
	CustomerID    string            `json:"customerId"`
	Metadata      map[string]string `json:"metadata"`
}

type refundRequest struct {
	TransactionID string           `json:"transactionId" validate:"required"`
	Amount        *decimal.Decimal `json:"amount"`
	Reason        string           `json:"reason"`
}


func (h *Handler) handleSale(w http.ResponseWriter, r *http.Request) {
	vc, ok := shared.VendorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "vendor identity required")
		return
	}

	var req saleRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	result, err := h.service.ProcessSale(r.Context(), vc, SaleRequest{
		Amount:        req.Amount,
		TipAmount:     req.TipAmount,
		PaymentMethod: req.PaymentMethod,
		LocationID:    req.LocationID,
		RegisterID:    req.RegisterID,
		SessionID:     req.SessionID,
		OrderID:       req.OrderID,
		UserID:        vc.UserID,
		ReferenceID:   req.ReferenceID,
		InvoiceNumber: req.InvoiceNumber,
		CustomerID:    req.CustomerID,
		Metadata:      req.Metadata,
	})
	if err != nil {
		h.writeSaleError(w, r, err)
		return
	}

	h.logger.Info("payment sale processed",
		slog.Bool("success", result.Success),
		slog.String("transaction_id", result.TransactionID),
		slog.String("method", result.PaymentMethod),
		slog.String("vendor_id", vc.VendorID))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) writeSaleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, shared.ErrProcessorNotFound):
		httpx.Problem(w, http.StatusBadRequest, "No payment processor", "no payment processor is configured for this register or location")
	case errors.Is(err, shared.ErrProcessorInactive):
		httpx.Problem(w, http.StatusBadRequest, "Processor inactive", "the configured payment processor is inactive")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate request", "a payment with this reference was already submitted")
	default:
		if pe, ok := AsError(err); ok && pe.Terminal {
			httpx.Problem(w, http.StatusServiceUnavailable, "Terminal unavailable", pe.Message)
			return
		}
		h.logger.Error("payment sale failed", slog.Any("error", err))
		httpx.RespondError(w, err, h.devMode)
	}
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	vc, ok := shared.VendorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "vendor identity required")
		return
	}

	var req refundRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	result, err := h.service.ProcessRefund(r.Context(), vc, RefundRequest{
		OriginalTransactionID: req.TransactionID,
		Amount:                req.Amount,
		Reason:                req.Reason,
		UserID:                vc.UserID,
	})
	if err != nil {
		h.writeReversalError(w, err, "refund")
		return
	}

	h.logger.Info("payment refund processed",
		slog.Bool("success", result.Success),
		slog.String("transaction_id", result.TransactionID),
		slog.String("vendor_id", vc.VendorID))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	vc, ok := shared.VendorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "vendor identity required")
		return
	}

	// DELETE carries no body; the target rides in the query string.
	transactionID := r.URL.Query().Get("transactionId")
	if transactionID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "transactionId query parameter is required")
		return
	}

	result, err := h.service.VoidTransaction(r.Context(), vc, VoidRequest{
		TransactionID: transactionID,
		UserID:        vc.UserID,
		Reason:        r.URL.Query().Get("reason"),
	})
	if err != nil {
		h.writeReversalError(w, err, "void")
		return
	}

	h.logger.Info("payment void processed",
		slog.Bool("success", result.Success),
		slog.String("transaction_id", result.TransactionID),
		slog.String("vendor_id", vc.VendorID))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) writeReversalError(w http.ResponseWriter, err error, kind string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", "original transaction not found")
	case errors.Is(err, ErrNotRefundable):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Not allowed", "only approved sales can be reversed")
	case errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, shared.ErrProcessorNotFound):
		httpx.Problem(w, http.StatusBadRequest, "No payment processor", "the original processor configuration is gone")
	default:
		if pe, ok := AsError(err); ok && (pe.Terminal || pe.Timeout) {
			httpx.Problem(w, http.StatusServiceUnavailable, "Terminal unavailable", pe.Message)
			return
		}
		h.logger.Error("payment reversal failed", slog.String("kind", kind), slog.Any("error", err))
		httpx.RespondError(w, err, h.devMode)
	}
}
