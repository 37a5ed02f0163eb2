package vaultkey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPBackend calls the vault endpoints of the apivault backend
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPBackend
type HTTPOption func(*HTTPBackend)

// WithHTTPClient replaces the default client
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(b *HTTPBackend) {
		b.client = client
	}
}

// NewHTTPBackend creates a backend client rooted at baseURL
func NewHTTPBackend(baseURL string, opts ...HTTPOption) *HTTPBackend {
	b := &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CreateVault implements Backend
func (b *HTTPBackend) CreateVault(ctx context.Context, accountID string, proof Proof) error {
	return b.register(ctx, "create", PathCreate, accountID, proof)
}

// ResetVault implements Backend
func (b *HTTPBackend) ResetVault(ctx context.Context, accountID string, proof Proof) error {
	return b.register(ctx, "reset", PathReset, accountID, proof)
}

func (b *HTTPBackend) register(ctx context.Context, op, path, accountID string, proof Proof) error {
	var resp ErrorResponse
	if err := b.post(ctx, op, path, accountID, proof, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return &RequestError{Op: op, StatusCode: http.StatusOK, Message: resp.Error}
	}
	return nil
}

// VerifyA implements Backend
func (b *HTTPBackend) VerifyA(ctx context.Context, accountID, srpA string) (Challenge, error) {
	var ch Challenge
	if err := b.post(ctx, "verify-a", PathVerifyA, accountID, VerifyARequest{SRPA: srpA}, &ch); err != nil {
		return Challenge{}, err
	}
	if ch.Error != "" {
		return Challenge{}, &RequestError{Op: "verify-a", StatusCode: http.StatusOK, Message: ch.Error}
	}
	return ch, nil
}

// VerifyM1 implements Backend. A rejected proof returns ErrVaultKeyInvalid.
func (b *HTTPBackend) VerifyM1(ctx context.Context, accountID, sessionStarterID, srpM1 string) (string, error) {
	var resp VerifyM1Response
	err := b.post(ctx, "verify-m1", PathVerifyM1, accountID, VerifyM1Request{
		SRPM1:            srpM1,
		SessionStarterID: sessionStarterID,
	}, &resp)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusUnauthorized {
			return "", fmt.Errorf("%w: %s", ErrVaultKeyInvalid, reqErr.Message)
		}
		return "", err
	}
	if resp.Error != "" {
		return "", &RequestError{Op: "verify-m1", StatusCode: http.StatusOK, Message: resp.Error}
	}
	return resp.SRPM2, nil
}

func (b *HTTPBackend) post(ctx context.Context, op, path, accountID string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AccountHeader, accountID)

	resp, err := b.client.Do(req)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp ErrorResponse
		_ = json.Unmarshal(data, &errResp)
		msg := errResp.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}
