package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/verdant-pos/verdant-pos/internal/platform/httpx"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

const userIDHeader = "X-Verdant-User"

// Middleware authenticates the request and binds the vendor identity to the
// request context. Routes behind it can assume shared.VendorFromContext
// succeeds.
func Middleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
				return
			}
			vc, err := service.Authenticate(r.Context(), token)
			if err != nil {
				logger.Warn("api key rejected", slog.String("path", r.URL.Path))
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
				return
			}
			// Acting user is advisory display metadata supplied by the POS
			// client; authorization is decided by the key alone.
			vc.UserID = r.Header.Get(userIDHeader)
			ctx := shared.ContextWithVendor(r.Context(), vc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
