package inbox

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/satbox/satbox-server/internal/identity"
	"github.com/satbox/satbox-server/internal/kv"
	"github.com/satbox/satbox-server/internal/payment"
	"github.com/satbox/satbox-server/internal/store"
	"github.com/satbox/satbox-server/internal/store/kvstore"
)

const (
	payerAddr     = "SP1PAYER"
	recipientAddr = "SP2RECIPIENT"
	sponsoredTx   = "000000000105deadbeef"
)

// fakeRelay settles everything with a fixed payer.
type fakeRelay struct {
	payer string
	calls int
}

func (f *fakeRelay) BroadcastSponsored(_ context.Context, _ string, _ payment.Constraints) (*payment.Settlement, error) {
	f.calls++
	return &payment.Settlement{OK: true, Payer: f.payer, TxID: "0xfeed", Network: "testnet"}, nil
}

func (f *fakeRelay) Settle(_ context.Context, _ string, _ payment.Constraints) (*payment.Settlement, error) {
	f.calls++
	return &payment.Settlement{OK: true, Payer: f.payer, TxID: "0xfeed", Network: "testnet"}, nil
}

type fixture struct {
	service  *Service
	backend  *kvstore.KVStore
	registry *identity.KVRegistry
	relay    *fakeRelay
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := kv.NewMemory()
	backend := kvstore.New(db)
	registry := identity.NewKVRegistry(db)
	relay := &fakeRelay{payer: payerAddr}
	logger := zerolog.Nop()

	verifier := payment.NewVerifier(relay, "testnet", 1000, &logger)
	return &fixture{
		service:  NewService(backend, registry, verifier, 280, &logger),
		backend:  backend,
		registry: registry,
		relay:    relay,
	}
}

func sbtcAssertion() *payment.Assertion {
	return &payment.Assertion{Asset: "sbtc", Transaction: sponsoredTx}
}

func TestDeliverStoresAndIndexes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Save(&identity.Record{Address: payerAddr}))

	msg, settlement, err := f.service.Deliver(context.Background(), Submission{
		ToAddress: recipientAddr,
		Content:   "gm",
		Assertion: sbtcAssertion(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	require.Equal(t, payerAddr, msg.FromAddress)
	require.Equal(t, int64(1000), msg.PaymentSats)
	require.False(t, msg.Authenticated)
	require.Equal(t, "0xfeed", settlement.TxID)
	require.Equal(t, 1, f.relay.calls)

	stored, err := f.backend.GetMessage(msg.ID)
	require.NoError(t, err)
	require.Equal(t, "gm", stored.Content)

	received, err := f.backend.ReadIndex(recipientAddr, store.IndexReceived)
	require.NoError(t, err)
	require.Equal(t, []string{msg.ID}, received.MessageIDs)
	require.Equal(t, 1, received.UnreadCount)

	sent, err := f.backend.ReadIndex(payerAddr, store.IndexSent)
	require.NoError(t, err)
	require.Equal(t, []string{msg.ID}, sent.MessageIDs)
}

func TestDeliverUnregisteredSenderSkipsSentIndex(t *testing.T) {
	f := newFixture(t)

	msg, _, err := f.service.Deliver(context.Background(), Submission{
		ToAddress: recipientAddr,
		Content:   "from a stranger",
		Assertion: sbtcAssertion(),
	})
	require.NoError(t, err)

	received, err := f.backend.ReadIndex(recipientAddr, store.IndexReceived)
	require.NoError(t, err)
	require.Equal(t, []string{msg.ID}, received.MessageIDs)

	sent, err := f.backend.ReadIndex(payerAddr, store.IndexSent)
	require.NoError(t, err)
	require.Empty(t, sent.MessageIDs)
}

func TestDeliverValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		sub     Submission
		wantErr error
	}{
		{"missing recipient", Submission{Content: "x", Assertion: sbtcAssertion()}, ErrInvalidRecipient},
		{"empty content", Submission{ToAddress: recipientAddr, Assertion: sbtcAssertion()}, ErrEmptyContent},
		{
			"oversized content",
			Submission{ToAddress: recipientAddr, Content: string(make([]byte, 281)), Assertion: sbtcAssertion()},
			ErrContentTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.service.Deliver(context.Background(), tt.sub)
			require.ErrorIs(t, err, tt.wantErr)
			require.Zero(t, f.relay.calls, "validation failures must not reach the relay")
		})
	}
}

func TestDeliverWrongAsset(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.service.Deliver(context.Background(), Submission{
		ToAddress: recipientAddr,
		Content:   "paying in the wrong coin",
		Assertion: &payment.Assertion{Asset: "stx", Transaction: sponsoredTx},
	})

	var perr *payment.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, payment.ErrCodeInvalidAsset, perr.Code)

	// Nothing stored.
	received, readErr := f.backend.ReadIndex(recipientAddr, store.IndexReceived)
	require.NoError(t, readErr)
	require.Empty(t, received.MessageIDs)
}

func TestDeliverAuthenticatedSender(t *testing.T) {
	f := newFixture(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	btcAddr := base58.CheckEncode(btcutil.Hash160(crypto.CompressPubkey(&key.PublicKey)), 0)
	require.NoError(t, f.registry.Save(&identity.Record{Address: payerAddr, BtcAddress: btcAddr}))

	content := "signed hello"
	raw, err := crypto.Sign(messageDigestForTest(content), key)
	require.NoError(t, err)
	compact := append([]byte{byte(27+raw[64]) + 4}, raw[:64]...)
	signature := base64.StdEncoding.EncodeToString(compact)

	msg, _, err := f.service.Deliver(context.Background(), Submission{
		ToAddress: recipientAddr,
		Content:   content,
		Signature: signature,
		Assertion: sbtcAssertion(),
	})
	require.NoError(t, err)
	require.True(t, msg.Authenticated)
	require.Equal(t, payerAddr, msg.SenderIdentity)
	require.Equal(t, signature, msg.SenderProof)
}

func TestDeliverBadSignatureStillDelivers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Save(&identity.Record{
		Address:    payerAddr,
		BtcAddress: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
	}))

	msg, _, err := f.service.Deliver(context.Background(), Submission{
		ToAddress: recipientAddr,
		Content:   "hello",
		Signature: "garbage",
		Assertion: sbtcAssertion(),
	})
	require.NoError(t, err)
	require.False(t, msg.Authenticated)
	require.Empty(t, msg.SenderIdentity)
}

func TestReply(t *testing.T) {
	f := newFixture(t)

	msg, _, err := f.service.Deliver(context.Background(), Submission{
		ToAddress: recipientAddr,
		Content:   "question",
		Assertion: sbtcAssertion(),
	})
	require.NoError(t, err)

	reply, err := f.service.Reply(context.Background(), msg.ID, recipientAddr, "answer")
	require.NoError(t, err)
	require.Equal(t, msg.ID, reply.MessageID)

	got, err := f.backend.GetReply(msg.ID)
	require.NoError(t, err)
	require.Equal(t, "answer", got.Content)
}

// messageDigestForTest mirrors the bitcoin signed-message digest for the
// short payloads used here (single-byte varint length).
func messageDigestForTest(message string) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x18Bitcoin Signed Message:\n")
	buf.WriteByte(byte(len(message)))
	buf.WriteString(message)
	first := sha256.Sum256(buf.Bytes())
	second := sha256.Sum256(first[:])
	return second[:]
}

func TestReplyToMissingMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Reply(context.Background(), "nope", recipientAddr, "answer")
	require.ErrorIs(t, err, store.ErrMessageNotFound)
}
