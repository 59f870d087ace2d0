// Package coordclient is the Coordinator's HTTP client for talking to
// Participants: prepare, commit, rollback, balance, each with a bounded
// per-call timeout.
package coordclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ledgerflow/twopc/pkg/model"
)

// Client talks to one Participant over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client for the Participant at baseURL, with the given
// per-call timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Prepare asks the Participant to prepare txnID for amount in the given
// direction. Only a 200 is success; a 409 maps to model.ErrInsufficientFunds,
// and any other status or a transport error is surfaced as model.ErrDependency.
func (c *Client) Prepare(ctx context.Context, txnID string, amount int64, direction model.Direction, crashAfterPrepare bool) error {
	body := model.PrepareRequest{
		TransactionID:     txnID,
		Amount:            amount,
		Direction:         direction,
		CrashAfterPrepare: crashAfterPrepare,
	}

	status, _, err := c.post(ctx, "/prepare", body)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", model.ErrDependency, err)
	}
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		return model.ErrInsufficientFunds
	default:
		return fmt.Errorf("%w: prepare returned status %d", model.ErrDependency, status)
	}
}

// Commit asks the Participant to commit txnID. Commit is idempotent and
// recoverable on the Participant side, so callers may retry freely.
func (c *Client) Commit(ctx context.Context, txnID string) error {
	status, _, err := c.post(ctx, "/commit", model.TxnIDRequest{TransactionID: txnID})
	if err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrDependency, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: commit returned status %d", model.ErrDependency, status)
	}
	return nil
}

// Rollback asks the Participant to roll back txnID. The Participant returns
// success for known and unknown ids alike; an error here means it could not
// be reached or failed to flush its state.
func (c *Client) Rollback(ctx context.Context, txnID string) error {
	status, _, err := c.post(ctx, "/rollback", model.TxnIDRequest{TransactionID: txnID})
	if err != nil {
		return fmt.Errorf("%w: rollback: %v", model.ErrDependency, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: rollback returned status %d", model.ErrDependency, status)
	}
	return nil
}

// Balance fetches the Participant's current balance, holds and pendings.
func (c *Client) Balance(ctx context.Context) (*model.BalanceResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/balance", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: balance: %v", model.ErrDependency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: balance returned status %d", model.ErrDependency, resp.StatusCode)
	}
	var bal model.BalanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&bal); err != nil {
		return nil, fmt.Errorf("decode balance response: %w", err)
	}
	return &bal, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}
