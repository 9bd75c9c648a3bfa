package payment

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Verifier validates a payment assertion against the per-recipient
// requirements and drives settlement through the relay. One outbound
// relay call per attempt; no retries, no local state.
type Verifier struct {
	relay     Relay
	network   string
	priceSats int64
	log       *zerolog.Logger
}

// NewVerifier builds a verifier for one network and flat price.
func NewVerifier(relay Relay, network string, priceSats int64, logger *zerolog.Logger) *Verifier {
	return &Verifier{
		relay:     relay,
		network:   network,
		priceSats: priceSats,
		log:       logger,
	}
}

// RequirementsFor computes the requirements for delivering to recipient.
func (v *Verifier) RequirementsFor(recipient string) Requirements {
	return RequirementsFor(recipient, v.network, v.priceSats)
}

// Verify checks the assertion and settles the payment to recipient.
// Failures carry a *Error with one of the ErrCode constants; all are
// terminal for this attempt.
func (v *Verifier) Verify(ctx context.Context, assertion *Assertion, recipient string) (*Settlement, error) {
	// Local checks first; no network call happens for a wrong asset.
	if !strings.EqualFold(assertion.Asset, AssetSBTC) {
		return nil, paymentError(ErrCodeInvalidAsset,
			"only "+AssetSBTC+" payments are accepted", assertion.Asset)
	}

	mode, err := Classify(assertion.Transaction)
	if err != nil {
		return nil, paymentError(ErrCodeInvalidDocument, "invalid payment transaction", err.Error())
	}

	constraints := Constraints{
		ExpectedRecipient: recipient,
		MinAmount:         v.priceSats,
		TokenType:         AssetSBTC,
	}

	var settlement *Settlement
	switch mode {
	case ModeSponsored:
		settlement, err = v.relay.BroadcastSponsored(ctx, assertion.Transaction, constraints)
	default:
		settlement, err = v.relay.Settle(ctx, assertion.Transaction, constraints)
	}
	if err != nil {
		v.log.Warn().Err(err).Str("mode", string(mode)).Msg("settlement attempt failed")
		return nil, paymentError(ErrCodeSettleError, "settlement failed", err.Error())
	}

	if !settlement.OK {
		v.log.Info().Str("reason", settlement.Reason).Msg("relay rejected settlement")
		return nil, paymentError(ErrCodeSettleError, "settlement rejected", settlement.Reason)
	}

	// A settlement that succeeds without an identifiable payer is never
	// treated as verified.
	if settlement.Payer == "" {
		return nil, paymentError(ErrCodeSenderMismatch,
			"settlement succeeded without an identifiable payer", settlement.TxID)
	}

	v.log.Info().
		Str("payer", settlement.Payer).
		Str("txid", settlement.TxID).
		Str("mode", string(mode)).
		Msg("payment settled")
	return settlement, nil
}
