package report

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verdant-pos/verdant-pos/internal/platform/httpx"
	"github.com/verdant-pos/verdant-pos/internal/pos"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// SessionSummarizer supplies a session with its reconciled totals.
type SessionSummarizer interface {
	Summary(ctx context.Context, vc shared.VendorContext, sessionID string) (pos.CloseResult, error)
}

var zreportTmpl = template.Must(template.New("zreport").Parse(`<html>
<head><title>Session Report {{.Session.ID}}</title></head>
<body>
<h1>Register Session Report</h1>
<p>Session #{{.Session.SessionNumber}} ({{.Session.ID}}) — register {{.Session.RegisterID}} at {{.Session.LocationID}}</p>
<p>Opened {{.Session.OpenedAt.Format "2006-01-02 15:04"}}{{if .Session.ClosedAt}}, closed {{.Session.ClosedAt.Format "2006-01-02 15:04"}}{{end}}</p>
<table border="1" cellpadding="4">
<tr><th>Opening cash</th><td>{{.Session.OpeningCash}}</td></tr>
<tr><th>Transactions</th><td>{{.Totals.TransactionCount}}</td></tr>
<tr><th>Cash</th><td>{{.Totals.CashTotal}}</td></tr>
<tr><th>Card</th><td>{{.Totals.CardTotal}}</td></tr>
<tr><th>Refunds</th><td>-{{.Totals.RefundTotal}}</td></tr>
<tr><th>Net</th><td>{{.Totals.GrandTotal}}</td></tr>
{{if not .Session.Open}}<tr><th>Declared drawer</th><td>{{.Session.ClosingCash}}</td></tr>{{end}}
</table>
<p>Generated {{.GeneratedAt}}</p>
</body></html>`))

// Handler serves rendered session reports.
type Handler struct {
	client   *Client
	sessions SessionSummarizer
	logger   *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, sessions SessionSummarizer, logger *slog.Logger) *Handler {
	return &Handler{client: client, sessions: sessions, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sessions/report", h.sessionReport)
}

func (h *Handler) sessionReport(w http.ResponseWriter, r *http.Request) {
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

	summary, err := h.sessions.Summary(r.Context(), vc, sessionID)
	if err != nil {
		if errors.Is(err, pos.ErrSessionNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not found", "session not found")
			return
		}
		h.logger.Error("session summary", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "internal error")
		return
	}

	var buf bytes.Buffer
	if err := zreportTmpl.Execute(&buf, struct {
		pos.CloseResult
		GeneratedAt string
	}{summary, time.Now().Format(time.RFC1123)}); err != nil {
		h.logger.Error("render report template", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "internal error")
		return
	}

	pdf, err := h.client.RenderHTML(r.Context(), buf.String())
	if err != nil {
		h.logger.Error("render session pdf", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Render failed", "report renderer unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=session-"+sessionID+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
