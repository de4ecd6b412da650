// Package polymarket holds the REST and WebSocket wire layer for the
// Polymarket Gamma and CLOB APIs.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgaray/polyarb/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit Order
// Book) API. Order submission carries its authentication inside the signed
// order itself, so no separate API-key flow is needed.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PostOrder submits a signed FOK order and returns the raw response body.
// Any completed HTTP exchange returns the body, rejections included; the
// exchange's verdict on a crossed market is diagnostic data, not a client
// failure. Only transport-level failures return an error.
func (c *ClobClient) PostOrder(ctx context.Context, signed domain.SignedOrder) ([]byte, error) {
	jsonBody, err := json.Marshal(signed)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: post order: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: read response: %w", err)
	}

	return respBody, nil
}
