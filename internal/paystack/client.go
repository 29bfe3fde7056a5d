// Package paystack is a minimal client for the two Paystack transaction
// endpoints this application needs: initialize and verify.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrNotConfigured = errors.New("paystack secret key is not configured")

// Client talks to the Paystack REST API.
type Client struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

// New creates a Paystack client. An empty secret key yields a client whose
// calls fail with ErrNotConfigured.
func New(secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &Client{
		secretKey: secretKey,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// InitializeRequest is the payload for creating a transaction. Amount is in
// kobo, per the Paystack API.
type InitializeRequest struct {
	Email      string `json:"email"`
	AmountKobo int64  `json:"amount"`
	Reference  string `json:"reference"`
	Currency   string `json:"currency,omitempty"`
}

// Transaction is the subset of Paystack's transaction object we consume.
type Transaction struct {
	AuthorizationURL string `json:"authorization_url,omitempty"`
	AccessCode       string `json:"access_code,omitempty"`
	Reference        string `json:"reference"`
	Status           string `json:"status,omitempty"`
	AmountKobo       int64  `json:"amount,omitempty"`
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize creates a pending transaction and returns the checkout URL.
func (c *Client) Initialize(ctx context.Context, req *InitializeRequest) (*Transaction, error) {
	if req.Currency == "" {
		req.Currency = "NGN"
	}
	var tx Transaction
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", req, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Verify fetches the settled state of a transaction by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*Transaction, error) {
	var tx Transaction
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.secretKey == "" {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paystack request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !envelope.Status {
		return fmt.Errorf("paystack error (HTTP %d): %s", resp.StatusCode, envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode transaction: %w", err)
		}
	}
	return nil
}
