package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verdant-pos/verdant-pos/internal/shared"
)

func TestRespondErrorMapsSharedSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{shared.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("load record: %w", shared.ErrNotFound), http.StatusNotFound},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{shared.ErrInsufficientQuantity, http.StatusUnprocessableEntity},
		{shared.ErrSessionClosed, http.StatusUnprocessableEntity},
		{shared.ErrProcessorNotFound, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err, false)
		require.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestRespondErrorHidesDetailOutsideDevMode(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pg: connection refused"), false)
	require.NotContains(t, rec.Body.String(), "connection refused")

	rec = httptest.NewRecorder()
	RespondError(rec, errors.New("pg: connection refused"), true)
	require.Contains(t, rec.Body.String(), "connection refused")
}
