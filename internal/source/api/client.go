// Package api implements the receipt data-source client over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"receiptdash/internal/core"
	ports "receiptdash/internal/source"
)

// Client fetches receipt records from the upstream API. One fetch attempt
// per call, no retries.
type Client struct {
	endpoint string
	httpc    *http.Client
}

// Ensure interface conformance
var _ ports.ReceiptFetcher = (*Client)(nil)

// NewClient creates a data-source client for the given endpoint, e.g.
// "https://api.example.com". The "/api" path is appended on fetch.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		httpc:    newPooledHTTPClient(),
	}
}

// newPooledHTTPClient builds an HTTP client with connection pooling and
// conservative timeouts for the upstream API.
func newPooledHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// payload is the success body of the data source.
type payload struct {
	Items []core.RawReceipt `json:"items"`
}

// Fetch performs a single GET against the endpoint with the bearer
// credential. A 401 maps to ports.ErrUnauthorized; any other non-2xx status,
// transport failure, or undecodable body is returned as an error and the
// aggregation pipeline is never invoked on partial data.
func (c *Client) Fetch(ctx context.Context, token string) ([]core.RawReceipt, error) {
	if token == "" {
		return nil, ports.ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch receipts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w (HTTP 401)", ports.ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for the log, then discard.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.WarnContext(ctx, "Data source returned error status",
			"status", resp.StatusCode,
			"body", string(snippet))
		return nil, fmt.Errorf("data source returned HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var body payload
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("data source returned an empty body")
		}
		return nil, fmt.Errorf("decode receipts payload: %w", err)
	}

	slog.DebugContext(ctx, "Fetched receipts", "count", len(body.Items))
	return body.Items, nil
}
