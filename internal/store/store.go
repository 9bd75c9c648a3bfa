package store

import (
	"errors"
	"time"
)

// UnknownSender is recorded as FromAddress when settlement succeeds but
// the payer could not be resolved to a registered identity.
const UnknownSender = "unknown"

var (
	// ErrDuplicateMessage is returned when a message id already exists.
	// Stored messages are immutable and never overwritten.
	ErrDuplicateMessage = errors.New("duplicate message id")

	// ErrMessageNotFound is returned when no message exists for an id.
	ErrMessageNotFound = errors.New("message not found")

	// ErrReplyNotFound is returned when a message has no reply attached.
	ErrReplyNotFound = errors.New("reply not found")
)

// Message is a paid inbox message. Immutable once stored.
type Message struct {
	ID           string    `json:"id"`
	FromAddress  string    `json:"from"`
	ToAddress    string    `json:"to"`
	ToBtcAddress string    `json:"toBtcAddress,omitempty"`
	Content      string    `json:"content"`
	PaymentTx    string    `json:"paymentTx"`
	PaymentSats  int64     `json:"paymentSats"`
	SentAt       time.Time `json:"sentAt"`

	// Authenticated is true when the sender additionally proved control
	// of a signing identity; SenderIdentity and SenderProof are only set
	// in that case.
	Authenticated  bool   `json:"authenticated"`
	SenderIdentity string `json:"senderIdentity,omitempty"`
	SenderProof    string `json:"senderProof,omitempty"`
}

// Reply is a single response attached to a stored message.
type Reply struct {
	MessageID string    `json:"messageId"`
	From      string    `json:"from"`
	Content   string    `json:"content"`
	RepliedAt time.Time `json:"repliedAt"`
}

// IndexKind selects one of the two per-address message indices.
type IndexKind string

const (
	IndexReceived IndexKind = "received"
	IndexSent     IndexKind = "sent"
)

// IndexEntry is a per-address index record. MessageIDs are kept in
// append order; readers sort by message timestamp, not index position.
type IndexEntry struct {
	MessageIDs  []string  `json:"messageIds"`
	UnreadCount int       `json:"unreadCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MessageStore persists individual messages in a flat keyspace.
type MessageStore interface {
	// PutMessage stores a message under its id. The id must be generated
	// by the calling boundary, never taken from the remote party; a
	// pre-existing id fails with ErrDuplicateMessage and no effect.
	PutMessage(msg *Message) error

	// GetMessage retrieves a message by id, or ErrMessageNotFound.
	GetMessage(id string) (*Message, error)
}

// IndexStore maintains the per-address received and sent indices.
// Appends are read-modify-write without compare-and-swap; concurrent
// appends to the same address can lose an entry. Accepted: the message
// store remains the source of truth and duplicate ids are impossible.
type IndexStore interface {
	// AppendReceived appends a message id to the address's received
	// index and increments its unread counter.
	AppendReceived(address, messageID string, at time.Time) error

	// AppendSent appends a message id to the address's sent index.
	AppendSent(address, messageID string, at time.Time) error

	// ReadIndex returns the index record for the address, or an empty
	// record when the address has never been indexed.
	ReadIndex(address string, kind IndexKind) (*IndexEntry, error)
}

// ReplyStore persists at most one reply per message.
type ReplyStore interface {
	// PutReply attaches a reply to a message, overwriting any previous one.
	PutReply(reply *Reply) error

	// GetReply returns the reply for a message id, or ErrReplyNotFound.
	GetReply(messageID string) (*Reply, error)
}

// Store aggregates all persistence interfaces.
type Store interface {
	MessageStore
	IndexStore
	ReplyStore

	Close() error
}
