package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verdant-pos/verdant-pos/internal/masterdata"
)

func readJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func dejavooFor(t *testing.T, srv *httptest.Server, timeout time.Duration) *dejavooProcessor {
	t.Helper()
	cfg := masterdata.ProcessorConfig{Kind: GatewayDejavoo, Endpoint: srv.URL, TerminalID: "tpn-1", APIKey: "k"}
	proc, err := NewProcessor(cfg, &http.Client{Timeout: timeout})
	require.NoError(t, err)
	return proc.(*dejavooProcessor)
}

func TestGatewayApproval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Write([]byte(`{"resultCode":"0","message":"Approved","authCode":"A1","transactionId":"gw-1","cardType":"MC","last4":"1111"}`))
	}))
	defer srv.Close()

	res, err := dejavooFor(t, srv, time.Second).ProcessSale(context.Background(), SaleRequest{Amount: dec("10.00")})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "A1", res.AuthorizationCode)
	require.Equal(t, "1111", res.CardLast4)
	require.Equal(t, "gw-1", res.ReceiptData["gatewayTransactionId"])
}

func TestGatewayDecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resultCode":"51","message":"Insufficient funds"}`))
	}))
	defer srv.Close()

	_, err := dejavooFor(t, srv, time.Second).ProcessSale(context.Background(), SaleRequest{Amount: dec("10.00")})
	pe, ok := AsError(err)
	require.True(t, ok)
	require.True(t, pe.Declined)
	require.False(t, pe.Terminal)
	require.False(t, pe.Timeout)
	require.Equal(t, "51", pe.Code)
}

func TestGatewayTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := dejavooFor(t, srv, 20*time.Millisecond).ProcessSale(context.Background(), SaleRequest{Amount: dec("10.00")})
	pe, ok := AsError(err)
	require.True(t, ok)
	require.True(t, pe.Timeout)
	require.False(t, pe.Declined)
}

func TestGatewayConnectionFaultClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := dejavooFor(t, srv, time.Second).ProcessSale(context.Background(), SaleRequest{Amount: dec("10.00")})
	pe, ok := AsError(err)
	require.True(t, ok)
	require.True(t, pe.Terminal)
	require.False(t, pe.Timeout)
}

func TestGatewayServerErrorIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := dejavooFor(t, srv, time.Second).ProcessSale(context.Background(), SaleRequest{Amount: dec("10.00")})
	pe, ok := AsError(err)
	require.True(t, ok)
	require.True(t, pe.Terminal)
}

func TestPaxAmountsInCents(t *testing.T) {
	var got paxRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, readJSON(r, &got))
		w.Write([]byte(`{"responseCode":"000000","responseMessage":"OK","authCode":"A2","refNum":"gw-2","maskedPan":"************4242"}`))
	}))
	defer srv.Close()

	cfg := masterdata.ProcessorConfig{Kind: GatewayPAX, Endpoint: srv.URL, TerminalID: "sn-1"}
	proc, err := NewProcessor(cfg, srv.Client())
	require.NoError(t, err)

	res, err := proc.ProcessSale(context.Background(), SaleRequest{Amount: dec("19.99"), TipAmount: dec("2.01")})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, int64(1999), got.AmountCents)
	require.Equal(t, int64(201), got.TipCents)
	require.Equal(t, "4242", res.CardLast4)
}
