package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/satbox/satbox-server/internal/inbox"
	"github.com/satbox/satbox-server/internal/payment"
	"github.com/satbox/satbox-server/internal/store"
)

// Payment protocol headers.
const (
	// HeaderPayment carries the payer's assertion on submission.
	HeaderPayment = "X-Payment"
	// HeaderPaymentRequired carries base64 requirements on a 402.
	HeaderPaymentRequired = "X-Payment-Required"
	// HeaderPaymentResponse summarizes settlement on success.
	HeaderPaymentResponse = "X-Payment-Response"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// MessageHandlers provides HTTP handlers for message submission and replies.
type MessageHandlers struct {
	service *inbox.Service
	log     *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(service *inbox.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		service: service,
		log:     logger,
	}
}

// SendMessageRequest represents the paid submission request body.
type SendMessageRequest struct {
	ToAddress    string `json:"toAddress" binding:"required"`
	ToBtcAddress string `json:"toBtcAddress"`
	Content      string `json:"content" binding:"required"`
	Signature    string `json:"signature"`
}

// SendMessageResponse represents a successful delivery.
type SendMessageResponse struct {
	ID            string `json:"id"`
	From          string `json:"from"`
	SentAt        string `json:"sentAt"`
	Authenticated bool   `json:"authenticated"`
}

// PaymentRequiredResponse re-presents the payment requirements.
type PaymentRequiredResponse struct {
	Error   string               `json:"error"`
	Code    string               `json:"code,omitempty"`
	Payment payment.Requirements `json:"payment"`
}

// paymentResponseHeader is the settlement summary attached on success.
type paymentResponseHeader struct {
	Payer       string `json:"payer"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
}

// SendMessage handles a paid message submission.
// POST /api/v1/messages
func (h *MessageHandlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	paymentHeader := c.GetHeader(HeaderPayment)
	if paymentHeader == "" {
		h.paymentRequired(c, req.ToAddress, "payment required", "")
		return
	}

	assertion, err := payment.DecodeAssertion(paymentHeader)
	if err != nil {
		h.log.Debug().Err(err).Msg("unparseable payment header")
		h.paymentRequired(c, req.ToAddress, "invalid payment header", payment.ErrCodeInvalidDocument)
		return
	}

	msg, settlement, err := h.service.Deliver(c.Request.Context(), inbox.Submission{
		ToAddress:    req.ToAddress,
		ToBtcAddress: req.ToBtcAddress,
		Content:      req.Content,
		Signature:    req.Signature,
		Assertion:    assertion,
	})
	if err != nil {
		h.deliveryError(c, req.ToAddress, err)
		return
	}

	c.Header(HeaderPaymentResponse, encodeHeader(paymentResponseHeader{
		Payer:       settlement.Payer,
		Transaction: settlement.TxID,
		Network:     settlement.Network,
	}))
	c.JSON(http.StatusCreated, SendMessageResponse{
		ID:            msg.ID,
		From:          msg.FromAddress,
		SentAt:        msg.SentAt.Format(time.RFC3339),
		Authenticated: msg.Authenticated,
	})
}

// ReplyRequest represents the reply request body.
type ReplyRequest struct {
	From    string `json:"from" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// ReplyResponse represents a stored reply.
type ReplyResponse struct {
	MessageID string `json:"messageId"`
	From      string `json:"from"`
	Content   string `json:"content"`
	RepliedAt string `json:"repliedAt"`
}

// Reply attaches a reply to a delivered message.
// POST /api/v1/messages/:id/reply
func (h *MessageHandlers) Reply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid reply request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	reply, err := h.service.Reply(c.Request.Context(), c.Param("id"), req.From, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
		case errors.Is(err, inbox.ErrEmptyContent), errors.Is(err, inbox.ErrContentTooLarge):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Str("message_id", c.Param("id")).Msg("failed to store reply")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, ReplyResponse{
		MessageID: reply.MessageID,
		From:      reply.From,
		Content:   reply.Content,
		RepliedAt: reply.RepliedAt.Format(time.RFC3339),
	})
}

// deliveryError maps write-path failures onto HTTP responses. Payment
// failures re-present the requirements so the client can retry the whole
// payment flow.
func (h *MessageHandlers) deliveryError(c *gin.Context, recipient string, err error) {
	var perr *payment.Error
	switch {
	case errors.As(err, &perr):
		h.log.Info().Str("code", perr.Code).Str("detail", perr.Detail).Msg("payment verification failed")
		h.paymentRequired(c, recipient, perr.Message, perr.Code)
	case errors.Is(err, inbox.ErrInvalidRecipient),
		errors.Is(err, inbox.ErrEmptyContent),
		errors.Is(err, inbox.ErrContentTooLarge):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrDuplicateMessage):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "duplicate message id"})
	default:
		h.log.Error().Err(err).Msg("message delivery failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// paymentRequired answers with 402, the requirements header, and the same
// requirements in the body.
func (h *MessageHandlers) paymentRequired(c *gin.Context, recipient, msg, code string) {
	requirements := h.service.Requirements(recipient)
	c.Header(HeaderPaymentRequired, requirements.Encode())
	c.JSON(http.StatusPaymentRequired, PaymentRequiredResponse{
		Error:   msg,
		Code:    code,
		Payment: requirements,
	})
}

func encodeHeader(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}
