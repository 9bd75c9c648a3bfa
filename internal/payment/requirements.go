package payment

import (
	"encoding/base64"
	"encoding/json"
)

// AssetSBTC is the single asset this deployment accepts. The network's
// native coin (STX) is deliberately not accepted.
const AssetSBTC = "sbtc"

// Requirements describes what a payer must settle to deliver a message.
// The pay-to target is the recipient, derived fresh per request; there
// is no platform-wide collection address.
type Requirements struct {
	PriceSats   int64  `json:"price"`
	Recipient   string `json:"recipient"`
	Asset       string `json:"asset"`
	Network     string `json:"network"`
	Description string `json:"description,omitempty"`
}

// RequirementsFor computes the payment requirements for delivering to
// recipient on network. Pure; never cached across recipients.
func RequirementsFor(recipient, network string, priceSats int64) Requirements {
	return Requirements{
		PriceSats:   priceSats,
		Recipient:   recipient,
		Asset:       AssetSBTC,
		Network:     network,
		Description: "message delivery to " + recipient,
	}
}

// Encode renders the requirements as the base64 JSON carried in the
// payment-required response header.
func (r Requirements) Encode() string {
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}
