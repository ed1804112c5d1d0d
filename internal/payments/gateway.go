package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/verdant-pos/verdant-pos/internal/masterdata"
)

// gatewayClient is the transport shared by all terminal backends. It owns
// failure classification so every Processor reports the same error taxonomy.
type gatewayClient struct {
	client     *http.Client
	endpoint   string
	terminalID string
	apiKey     string
}

func newGatewayClient(cfg masterdata.ProcessorConfig, client *http.Client) *gatewayClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &gatewayClient{
		client:     client,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		terminalID: cfg.TerminalID,
		apiKey:     cfg.APIKey,
	}
}

func (g *gatewayClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return classifyTransportError(err)
	}
	if resp.StatusCode >= 500 {
		return TerminalError(fmt.Errorf("gateway returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return TerminalError(fmt.Errorf("gateway rejected request: %d %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return TerminalError(fmt.Errorf("decode gateway response: %w", err))
	}
	return nil
}

// classifyTransportError separates "the terminal never answered in time"
// from "we could not talk to the terminal at all". A deadline hit after the
// request was sent is ambiguous and must surface as a timeout, not a fault.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return TimeoutError(err)
	}
	if errors.Is(err, context.Canceled) {
		return TerminalError(err)
	}
	return TerminalError(err)
}
