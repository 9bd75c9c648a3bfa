package kvstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/satbox/satbox-server/internal/kv"
	"github.com/satbox/satbox-server/internal/store"
)

func newTestStore(t *testing.T) *KVStore {
	t.Helper()
	return New(kv.NewMemory())
}

func TestPutMessageRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)

	msg := &store.Message{
		ID:          "m1",
		FromAddress: "SP1SENDER",
		ToAddress:   "SP2RECIPIENT",
		Content:     "hello",
		PaymentTx:   "0xabc",
		PaymentSats: 1000,
		SentAt:      time.Now().UTC(),
	}
	require.NoError(t, s.PutMessage(msg))

	// Same id again must fail and leave the original untouched.
	clash := *msg
	clash.Content = "overwrite attempt"
	err := s.PutMessage(&clash)
	require.ErrorIs(t, err, store.ErrDuplicateMessage)

	got, err := s.GetMessage("m1")
	require.NoError(t, err)
	require.Equal(t, "hello", got.Content)
}

func TestPutMessageRequiresID(t *testing.T) {
	s := newTestStore(t)
	err := s.PutMessage(&store.Message{Content: "no id"})
	require.Error(t, err)
}

func TestGetMessageNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetMessage("missing")
	require.ErrorIs(t, err, store.ErrMessageNotFound)
}

func TestIndexAppendAndRead(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.AppendReceived("SP2RECIPIENT", "m1", now))
	require.NoError(t, s.AppendReceived("SP2RECIPIENT", "m2", now.Add(time.Second)))
	require.NoError(t, s.AppendSent("SP2RECIPIENT", "m3", now.Add(2*time.Second)))

	received, err := s.ReadIndex("SP2RECIPIENT", store.IndexReceived)
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m2"}, received.MessageIDs)
	require.Equal(t, 2, received.UnreadCount)
	require.Equal(t, now.Add(time.Second), received.UpdatedAt)

	sent, err := s.ReadIndex("SP2RECIPIENT", store.IndexSent)
	require.NoError(t, err)
	require.Equal(t, []string{"m3"}, sent.MessageIDs)
	// unread counts only track the received side
	require.Equal(t, 0, sent.UnreadCount)
}

func TestReadIndexEmptyAddress(t *testing.T) {
	s := newTestStore(t)

	entry, err := s.ReadIndex("SPNOBODY", store.IndexReceived)
	require.NoError(t, err)
	require.Empty(t, entry.MessageIDs)
	require.Zero(t, entry.UnreadCount)
}

func TestReplyRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetReply("m1")
	require.ErrorIs(t, err, store.ErrReplyNotFound)

	reply := &store.Reply{
		MessageID: "m1",
		From:      "SP2RECIPIENT",
		Content:   "thanks",
		RepliedAt: time.Now().UTC(),
	}
	require.NoError(t, s.PutReply(reply))

	got, err := s.GetReply("m1")
	require.NoError(t, err)
	require.Equal(t, "thanks", got.Content)

	// replies are last-write-wins
	reply.Content = "thanks again"
	require.NoError(t, s.PutReply(reply))
	got, err = s.GetReply("m1")
	require.NoError(t, err)
	require.Equal(t, "thanks again", got.Content)
}
