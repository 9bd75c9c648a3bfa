package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/satbox/satbox-server/internal/query"
	"github.com/satbox/satbox-server/internal/store"
)

// InboxHandlers provides HTTP handlers for browsing message history.
type InboxHandlers struct {
	engine *query.Engine
	log    *zerolog.Logger
}

// NewInboxHandlers creates a new inbox handlers instance.
func NewInboxHandlers(engine *query.Engine, logger *zerolog.Logger) *InboxHandlers {
	return &InboxHandlers{
		engine: engine,
		log:    logger,
	}
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID            string `json:"id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Content       string `json:"content"`
	PaymentTx     string `json:"paymentTx"`
	PaymentSats   int64  `json:"paymentSats"`
	SentAt        string `json:"sentAt"`
	Authenticated bool   `json:"authenticated"`
}

// PaginationResponse describes whether more pages exist.
type PaginationResponse struct {
	HasMore    bool `json:"hasMore"`
	NextOffset int  `json:"nextOffset"`
}

// InboxResponse is the merged history page for an address.
type InboxResponse struct {
	Messages      []MessageResponse        `json:"messages"`
	Replies       map[string]ReplyResponse `json:"replies"`
	ReceivedCount int                      `json:"receivedCount"`
	SentCount     int                      `json:"sentCount"`
	UnreadCount   int                      `json:"unreadCount"`
	Economics     query.Economics          `json:"economics"`
	Pagination    PaginationResponse       `json:"pagination"`
	Partners      []query.Partner          `json:"partners,omitempty"`
}

// GetInbox returns one page of an address's bidirectional history.
// GET /api/v1/inbox/:address
func (h *InboxHandlers) GetInbox(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing address"})
		return
	}

	opts, err := parseListOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	page, err := h.engine.List(c.Request.Context(), address, opts)
	if err != nil {
		if errors.Is(err, query.ErrOffsetTooLarge) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "offset too large"})
			return
		}
		h.log.Error().Err(err).Str("address", address).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toInboxResponse(page))
}

func parseListOptions(c *gin.Context) (query.Options, error) {
	opts := query.Options{View: query.View(c.DefaultQuery("view", string(query.ViewAll)))}

	switch opts.View {
	case query.ViewAll, query.ViewSent, query.ViewReceived:
	default:
		return opts, errors.New("view must be one of all, sent, received")
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(query.DefaultLimit)))
	if err != nil || limit < 1 || limit > query.MaxLimit {
		return opts, errors.New("limit must be between 1 and 100")
	}
	opts.Limit = limit

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return opts, errors.New("offset must be non-negative")
	}
	opts.Offset = offset

	opts.IncludePartners = c.Query("includePartners") == "true"
	return opts, nil
}

func toInboxResponse(page *query.Page) InboxResponse {
	messages := make([]MessageResponse, 0, len(page.Messages))
	for _, msg := range page.Messages {
		messages = append(messages, toMessageResponse(msg))
	}

	replies := make(map[string]ReplyResponse, len(page.Replies))
	for id, reply := range page.Replies {
		replies[id] = ReplyResponse{
			MessageID: reply.MessageID,
			From:      reply.From,
			Content:   reply.Content,
			RepliedAt: reply.RepliedAt.Format(time.RFC3339),
		}
	}

	return InboxResponse{
		Messages:      messages,
		Replies:       replies,
		ReceivedCount: page.ReceivedCount,
		SentCount:     page.SentCount,
		UnreadCount:   page.UnreadCount,
		Economics:     page.Economics,
		Pagination: PaginationResponse{
			HasMore:    page.HasMore,
			NextOffset: page.NextOffset,
		},
		Partners: page.Partners,
	}
}

func toMessageResponse(msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:            msg.ID,
		From:          msg.FromAddress,
		To:            msg.ToAddress,
		Content:       msg.Content,
		PaymentTx:     msg.PaymentTx,
		PaymentSats:   msg.PaymentSats,
		SentAt:        msg.SentAt.Format(time.RFC3339),
		Authenticated: msg.Authenticated,
	}
}
