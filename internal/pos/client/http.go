package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/verdant-pos/verdant-pos/internal/pos"
)

// APIClient implements SessionAPI against the HTTP endpoints under /pos.
type APIClient struct {
	base   string
	token  string
	userID string
	client *http.Client
}

// NewAPIClient builds a client. token is the vendor API key sent as a
// Bearer credential; userID, when set, is forwarded as the acting user.
func NewAPIClient(baseURL, token, userID string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &APIClient{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		userID: userID,
		client: httpClient,
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if c.userID != "" {
		req.Header.Set("X-Verdant-User", c.userID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pos.ErrSessionNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("pos api: %s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *APIClient) GetOrCreate(ctx context.Context, registerID, locationID string, openingCash decimal.Decimal) (pos.Session, error) {
	var resp struct {
		Session pos.Session `json:"session"`
	}
	err := c.do(ctx, http.MethodPost, "/pos/sessions/get-or-create", map[string]any{
		"registerId":  registerID,
		"locationId":  locationID,
		"openingCash": openingCash,
	}, &resp)
	return resp.Session, err
}

func (c *APIClient) Status(ctx context.Context, sessionID string) (pos.StatusResult, error) {
	var out pos.StatusResult
	err := c.do(ctx, http.MethodGet, "/pos/sessions/status?sessionId="+url.QueryEscape(sessionID), nil, &out)
	return out, err
}

func (c *APIClient) Close(ctx context.Context, sessionID string) (pos.CloseResult, error) {
	var out pos.CloseResult
	err := c.do(ctx, http.MethodPost, "/pos/sessions/close", map[string]any{
		"sessionId":   sessionID,
		"closingCash": "0",
		"notes":       "closed from register",
	}, &out)
	return out, err
}

func (c *APIClient) ProcessorActive(ctx context.Context, registerID string) (bool, error) {
	var out pos.ProcessorStatus
	err := c.do(ctx, http.MethodGet, "/pos/processor-status?registerId="+url.QueryEscape(registerID), nil, &out)
	return out.Active, err
}
