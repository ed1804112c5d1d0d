package payments

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/verdant-pos/verdant-pos/internal/masterdata"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

func newTestRouter(t *testing.T, svc *Service) http.Handler {
	t.Helper()
	h := NewHandler(testLogger(), svc, false)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithVendor(r.Context(), testVendor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	return r
}

func post(router http.Handler, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/payment/process", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCashSale(t *testing.T) {
	repo := newMemTxRepo()
	svc := newTestService(&stubResolver{err: errors.New("unused")}, repo, newMemIdem())
	router := newTestRouter(t, svc)

	rec := post(router, http.MethodPost, `{"amount":"25.50","paymentMethod":"cash","locationId":"loc-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res SaleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success)
	require.Equal(t, PaymentMethodCash, res.PaymentMethod)
}

func TestHandlerDeclineIsStill200(t *testing.T) {
	proc := &stubProcessor{saleErr: DeclinedError("05", "Do not honor")}
	resolver := &stubResolver{proc: proc, cfg: masterdata.ProcessorConfig{ID: "p1", Active: true}}
	svc := newTestService(resolver, newMemTxRepo(), newMemIdem())
	router := newTestRouter(t, svc)

	rec := post(router, http.MethodPost, `{"amount":"25.50","paymentMethod":"credit","locationId":"loc-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res SaleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.False(t, res.Success)
	require.True(t, res.Declined)
	require.False(t, res.Timeout)
	require.False(t, res.TerminalError)
}

func TestHandlerTimeoutIsStill200(t *testing.T) {
	proc := &stubProcessor{saleErr: TimeoutError(errors.New("deadline"))}
	resolver := &stubResolver{proc: proc, cfg: masterdata.ProcessorConfig{ID: "p1", Active: true}}
	svc := newTestService(resolver, newMemTxRepo(), newMemIdem())
	router := newTestRouter(t, svc)

	rec := post(router, http.MethodPost, `{"amount":"25.50","paymentMethod":"credit","locationId":"loc-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res SaleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.False(t, res.Success)
	require.True(t, res.Timeout)
}

func TestHandlerTerminalFaultIs503(t *testing.T) {
	proc := &stubProcessor{saleErr: TerminalError(errors.New("connection refused"))}
	resolver := &stubResolver{proc: proc, cfg: masterdata.ProcessorConfig{ID: "p1", Active: true}}
	svc := newTestService(resolver, newMemTxRepo(), newMemIdem())
	router := newTestRouter(t, svc)

	rec := post(router, http.MethodPost, `{"amount":"25.50","paymentMethod":"credit","locationId":"loc-1"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerMissingProcessorIs400(t *testing.T) {
	resolver := &stubResolver{err: shared.ErrProcessorNotFound}
	svc := newTestService(resolver, newMemTxRepo(), newMemIdem())
	router := newTestRouter(t, svc)

	rec := post(router, http.MethodPost, `{"amount":"25.50","paymentMethod":"credit","locationId":"loc-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRefundRoute(t *testing.T) {
	repo := newMemTxRepo()
	svc := newTestService(&stubResolver{}, repo, newMemIdem())
	orig := seedSale(repo, "", "")
	router := newTestRouter(t, svc)

	rec := post(router, http.MethodPut, `{"transactionId":"`+orig.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res RefundResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success)
}

func TestHandlerVoidRouteUsesQueryParams(t *testing.T) {
	repo := newMemTxRepo()
	svc := newTestService(&stubResolver{}, repo, newMemIdem())
	orig := seedSale(repo, "", "")
	router := newTestRouter(t, svc)

	// Void is a DELETE with no body.
	req := httptest.NewRequest(http.MethodDelete, "/payment/process?transactionId="+orig.ID+"&reason=keyed+in+wrong+amount", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res VoidResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success)
}

func TestHandlerVoidUnknownTransactionIs404(t *testing.T) {
	svc := newTestService(&stubResolver{}, newMemTxRepo(), newMemIdem())
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodDelete, "/payment/process?transactionId=missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerVoidRequiresTransactionID(t *testing.T) {
	svc := newTestService(&stubResolver{}, newMemTxRepo(), newMemIdem())
	router := newTestRouter(t, svc)

	rec := post(router, http.MethodDelete, ``)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRequiresVendorContext(t *testing.T) {
	h := NewHandler(testLogger(), newTestService(&stubResolver{}, newMemTxRepo(), newMemIdem()), false)
	r := chi.NewRouter()
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment/process", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
