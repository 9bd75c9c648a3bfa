package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Assertion is the payer's claim of payment, carried in the X-Payment
// request header: the asset being paid, the target network, and the
// fully signed transaction ready for settlement.
type Assertion struct {
	Asset       string `json:"asset"`
	Network     string `json:"network,omitempty"`
	Transaction string `json:"transaction"`
}

// DecodeAssertion parses a payment header. The canonical encoding is
// base64 JSON; plain JSON in the same header is accepted as a fallback
// for older clients.
func DecodeAssertion(header string) (*Assertion, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("empty payment header")
	}

	payload := []byte(header)
	if decoded, err := base64.StdEncoding.DecodeString(header); err == nil {
		payload = decoded
	}

	var assertion Assertion
	if err := json.Unmarshal(payload, &assertion); err != nil {
		return nil, fmt.Errorf("parse payment header: %w", err)
	}
	if assertion.Transaction == "" {
		return nil, fmt.Errorf("payment header missing transaction")
	}
	return &assertion, nil
}
