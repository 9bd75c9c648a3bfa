package payment

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Mode is the settlement path a transaction requires.
type Mode string

const (
	// ModeStandard means the payer covers network fees themselves.
	ModeStandard Mode = "standard"
	// ModeSponsored means a third party covers network fees; the
	// transaction must go through the relay's broadcast endpoint.
	ModeSponsored Mode = "sponsored"
)

// Stacks wire layout: version (1), chain id (4), auth type (1), ...
// The auth type byte distinguishes standard from sponsored authorization.
const (
	authOffset         = 5
	authTypeStandard   = 0x04
	authTypeSponsored  = 0x05
	minTransactionSize = authOffset + 1
)

// Classify decodes the signed transaction's authorization structure and
// reports which settlement path it needs. Deterministic and local; the
// mode is never guessed from request metadata.
func Classify(rawTx string) (Mode, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(rawTx), "0x"))
	if err != nil {
		return "", fmt.Errorf("decode transaction hex: %w", err)
	}
	if len(raw) < minTransactionSize {
		return "", fmt.Errorf("transaction too short: %d bytes", len(raw))
	}

	switch raw[authOffset] {
	case authTypeStandard:
		return ModeStandard, nil
	case authTypeSponsored:
		return ModeSponsored, nil
	default:
		return "", fmt.Errorf("unknown authorization type 0x%02x", raw[authOffset])
	}
}
