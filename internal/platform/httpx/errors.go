package httpx

import (
	"errors"
	"net/http"

	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// RespondError maps the shared error taxonomy onto problem responses.
// Handlers with richer taxonomies handle their own sentinels first and
// fall through here. Unknown errors become an opaque 500; devMode leaks
// the underlying message for local debugging.
func RespondError(w http.ResponseWriter, err error, devMode bool) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInsufficientQuantity), errors.Is(err, shared.ErrSessionClosed):
		Problem(w, http.StatusUnprocessableEntity, "Not allowed", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrProcessorNotFound), errors.Is(err, shared.ErrProcessorInactive):
		Problem(w, http.StatusBadRequest, "No payment processor", shared.UserSafeMessage(err))
	default:
		detail := "internal error"
		if devMode {
			detail = err.Error()
		}
		Problem(w, http.StatusInternalServerError, "Internal error", detail)
	}
}
