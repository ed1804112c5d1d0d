package pos

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/verdant-pos/verdant-pos/internal/platform/httpx"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// Handler wires the POS session endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	devMode bool
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, devMode bool) *Handler {
	return &Handler{logger: logger, service: service, devMode: devMode}
}

// MountRoutes registers session routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sessions/get-or-create", h.handleGetOrCreate)
	r.Get("/sessions/status", h.handleStatus)
	r.Post("/sessions/close", h.handleClose)
	r.Get("/processor-status", h.handleProcessorStatus)
}

type getOrCreateRequest struct {
	RegisterID  string           `json:"registerId" validate:"required"`
	LocationID  string           `json:"locationId" validate:"required"`
	OpeningCash *decimal.Decimal `json:"openingCash"`
}

type getOrCreateResponse struct {
	Session Session `json:"session"`
	Created bool    `json:"created"`
}

func (h *Handler) handleGetOrCreate(w http.ResponseWriter, r *http.Request) {
	vc, ok := shared.VendorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "vendor identity required")
		return
	}

	var req getOrCreateRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	openingCash := decimal.Zero
	if req.OpeningCash != nil {
		openingCash = *req.OpeningCash
	}
	sess, created, err := h.service.GetOrCreate(r.Context(), vc, req.RegisterID, req.LocationID, openingCash)
	if err != nil {
		h.writeError(w, err, "get-or-create session")
		return
	}

	h.logger.Info("pos session resolved",
		slog.String("session_id", sess.ID),
		slog.String("register_id", req.RegisterID),
		slog.Bool("created", created),
		slog.String("vendor_id", vc.VendorID))
	httpx.JSON(w, http.StatusOK, getOrCreateResponse{Session: sess, Created: created})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	vc, ok := shared.VendorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "vendor identity required")
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "sessionId query parameter is required")
		return
	}

	status, err := h.service.Status(r.Context(), vc, sessionID)
	if err != nil {
		h.writeError(w, err, "session status")
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

type closeRequest struct {
	SessionID   string           `json:"sessionId" validate:"required"`
	ClosingCash *decimal.Decimal `json:"closingCash"`
	Notes       string           `json:"notes"`
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	vc, ok := shared.VendorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "vendor identity required")
		return
	}

	var req closeRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	closingCash := decimal.Zero
	if req.ClosingCash != nil {
		closingCash = *req.ClosingCash
	}
	result, err := h.service.Close(r.Context(), vc, req.SessionID, closingCash, req.Notes)
	if err != nil {
		h.writeError(w, err, "close session")
		return
	}

	h.logger.Info("pos session closed",
		slog.String("session_id", req.SessionID),
		slog.Bool("already_closed", result.AlreadyClosed),
		slog.String("vendor_id", vc.VendorID))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleProcessorStatus(w http.ResponseWriter, r *http.Request) {
	vc, ok := shared.VendorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "vendor identity required")
		return
	}

	registerID := r.URL.Query().Get("registerId")
	if registerID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "registerId query parameter is required")
		return
	}

	status, err := h.service.ProcessorStatusForRegister(r.Context(), vc, registerID, r.URL.Query().Get("locationId"))
	if err != nil {
		h.writeError(w, err, "processor status")
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, ErrSessionNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not found", "session not found")
		return
	}
	h.logger.Error(op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err, h.devMode)
}
