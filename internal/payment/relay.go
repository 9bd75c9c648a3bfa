package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Settlement is the canonical outcome of one settlement attempt. It is
// transient: produced once per verification, never persisted standalone,
// never retried within a request.
type Settlement struct {
	OK      bool   `json:"ok"`
	Payer   string `json:"payer"`
	TxID    string `json:"txid"`
	Network string `json:"network"`
	Reason  string `json:"reason,omitempty"`
}

// Constraints are the settlement expectations handed to the relay.
type Constraints struct {
	ExpectedRecipient string `json:"expectedRecipient"`
	MinAmount         int64  `json:"minAmount"`
	TokenType         string `json:"tokenType"`
}

// Relay drives settlement of a signed transaction through the external
// settlement relay.
type Relay interface {
	// BroadcastSponsored submits a sponsored transaction to the relay's
	// broadcast endpoint together with the settlement constraints.
	BroadcastSponsored(ctx context.Context, rawTx string, constraints Constraints) (*Settlement, error)

	// Settle settles a non-sponsored transaction against the relay.
	Settle(ctx context.Context, rawTx string, constraints Constraints) (*Settlement, error)
}

// HTTPRelay implements Relay against the relay's HTTP API.
type HTTPRelay struct {
	baseURL string
	network string
	http    *http.Client
}

// NewHTTPRelay constructs a relay client with an enforced timeout.
func NewHTTPRelay(baseURL, network string, timeout time.Duration) *HTTPRelay {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRelay{
		baseURL: strings.TrimRight(baseURL, "/"),
		network: network,
		http:    &http.Client{Timeout: timeout},
	}
}

type relayRequest struct {
	Transaction string      `json:"transaction"`
	Settle      Constraints `json:"settle"`
}

type relayResponse struct {
	Success    bool   `json:"success"`
	TxID       string `json:"txid"`
	Error      string `json:"error,omitempty"`
	Settlement struct {
		Sender  string `json:"sender"`
		Network string `json:"network,omitempty"`
	} `json:"settlement"`
}

// BroadcastSponsored submits a sponsored transaction for fee-covered broadcast.
func (r *HTTPRelay) BroadcastSponsored(ctx context.Context, rawTx string, constraints Constraints) (*Settlement, error) {
	return r.post(ctx, "/relay", rawTx, constraints)
}

// Settle settles a non-sponsored transaction.
func (r *HTTPRelay) Settle(ctx context.Context, rawTx string, constraints Constraints) (*Settlement, error) {
	return r.post(ctx, "/settle", rawTx, constraints)
}

func (r *HTTPRelay) post(ctx context.Context, path, rawTx string, constraints Constraints) (*Settlement, error) {
	body, err := json.Marshal(relayRequest{Transaction: rawTx, Settle: constraints})
	if err != nil {
		return nil, fmt.Errorf("marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call relay: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed relayResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse relay response: %w", err)
	}

	settlement := &Settlement{
		OK:      parsed.Success,
		Payer:   parsed.Settlement.Sender,
		TxID:    parsed.TxID,
		Network: parsed.Settlement.Network,
		Reason:  parsed.Error,
	}
	if settlement.Network == "" {
		settlement.Network = r.network
	}
	return settlement, nil
}
