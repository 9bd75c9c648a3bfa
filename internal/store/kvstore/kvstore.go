package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/satbox/satbox-server/internal/kv"
	"github.com/satbox/satbox-server/internal/store"
)

// Keyspace layout: each record type gets its own prefix in the flat
// key-value namespace. There are no secondary indices below this layer.
const (
	msgPrefix   = "msg:"
	inboxPrefix = "inbox:"
	sentPrefix  = "outbox:"
	replyPrefix = "reply:"
)

// KVStore implements store.Store over a key-value capability.
type KVStore struct {
	db kv.Store
}

// New wraps a key-value store.
func New(db kv.Store) *KVStore {
	return &KVStore{db: db}
}

// Close closes the underlying key-value store.
func (s *KVStore) Close() error {
	return s.db.Close()
}

// ==== MessageStore implementation ====

// PutMessage stores a message under its id, rejecting collisions.
func (s *KVStore) PutMessage(msg *store.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("message id is empty")
	}

	key := []byte(msgPrefix + msg.ID)
	if _, err := s.db.Get(key); err == nil {
		return store.ErrDuplicateMessage
	} else if !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("check message id: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.db.Put(key, data); err != nil {
		return fmt.Errorf("put message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by id.
func (s *KVStore) GetMessage(id string) (*store.Message, error) {
	data, err := s.db.Get([]byte(msgPrefix + id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, store.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}

	var msg store.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

// ==== IndexStore implementation ====

// AppendReceived appends to the address's received index and bumps unread.
func (s *KVStore) AppendReceived(address, messageID string, at time.Time) error {
	return s.appendIndex(inboxPrefix+address, messageID, at, true)
}

// AppendSent appends to the address's sent index.
func (s *KVStore) AppendSent(address, messageID string, at time.Time) error {
	return s.appendIndex(sentPrefix+address, messageID, at, false)
}

// appendIndex is a read-modify-write append. Not CAS-guarded; see the
// contract note on store.IndexStore.
func (s *KVStore) appendIndex(key, messageID string, at time.Time, countUnread bool) error {
	entry, err := s.readIndexKey(key)
	if err != nil {
		return err
	}

	entry.MessageIDs = append(entry.MessageIDs, messageID)
	if countUnread {
		entry.UnreadCount++
	}
	entry.UpdatedAt = at

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := s.db.Put([]byte(key), data); err != nil {
		return fmt.Errorf("put index: %w", err)
	}
	return nil
}

// ReadIndex returns the index record for an address, empty if absent.
func (s *KVStore) ReadIndex(address string, kind store.IndexKind) (*store.IndexEntry, error) {
	key := inboxPrefix + address
	if kind == store.IndexSent {
		key = sentPrefix + address
	}
	return s.readIndexKey(key)
}

func (s *KVStore) readIndexKey(key string) (*store.IndexEntry, error) {
	data, err := s.db.Get([]byte(key))
	if errors.Is(err, kv.ErrNotFound) {
		return &store.IndexEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get index: %w", err)
	}

	var entry store.IndexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal index: %w", err)
	}
	return &entry, nil
}

// ==== ReplyStore implementation ====

// PutReply attaches a reply to a message, overwriting any previous one.
func (s *KVStore) PutReply(reply *store.Reply) error {
	if reply.MessageID == "" {
		return fmt.Errorf("reply message id is empty")
	}

	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	if err := s.db.Put([]byte(replyPrefix+reply.MessageID), data); err != nil {
		return fmt.Errorf("put reply: %w", err)
	}
	return nil
}

// GetReply returns the reply attached to a message, if any.
func (s *KVStore) GetReply(messageID string) (*store.Reply, error) {
	data, err := s.db.Get([]byte(replyPrefix + messageID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, store.ErrReplyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reply: %w", err)
	}

	var reply store.Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("unmarshal reply: %w", err)
	}
	return &reply, nil
}
