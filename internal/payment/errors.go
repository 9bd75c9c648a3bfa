package payment

// Error codes surfaced to the HTTP boundary. All are terminal for the
// verification attempt; the boundary decides whether to re-present a
// payment-required challenge.
const (
	ErrCodeInvalidAsset    = "INVALID_ASSET"
	ErrCodeSettleError     = "UNEXPECTED_SETTLE_ERROR"
	ErrCodeSenderMismatch  = "SENDER_MISMATCH"
	ErrCodeInvalidDocument = "INVALID_PAYMENT"
)

// Error wraps a code, a human-readable message and optional detail from
// the settlement relay.
type Error struct {
	Code    string
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func paymentError(code, msg, detail string) *Error {
	return &Error{Code: code, Message: msg, Detail: detail}
}
