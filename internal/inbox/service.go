package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/satbox/satbox-server/internal/identity"
	"github.com/satbox/satbox-server/internal/payment"
	"github.com/satbox/satbox-server/internal/store"
)

var (
	// ErrInvalidRecipient is returned for a missing or malformed recipient.
	ErrInvalidRecipient = errors.New("invalid recipient address")

	// ErrContentTooLarge is returned when content exceeds the configured bound.
	ErrContentTooLarge = errors.New("message content too large")

	// ErrEmptyContent is returned for a blank message body.
	ErrEmptyContent = errors.New("message content is empty")
)

// Submission is one paid message delivery attempt.
type Submission struct {
	ToAddress    string
	ToBtcAddress string
	Content      string
	Signature    string
	Assertion    *payment.Assertion
}

// Service runs the payment-gated write path: verify, store, index.
type Service struct {
	store           store.Store
	registry        identity.Registry
	verifier        *payment.Verifier
	maxContentBytes int
	log             *zerolog.Logger
}

// NewService wires the delivery pipeline.
func NewService(st store.Store, registry identity.Registry, verifier *payment.Verifier, maxContentBytes int, logger *zerolog.Logger) *Service {
	return &Service{
		store:           st,
		registry:        registry,
		verifier:        verifier,
		maxContentBytes: maxContentBytes,
		log:             logger,
	}
}

// Requirements returns the payment requirements for delivering to recipient.
func (s *Service) Requirements(recipient string) payment.Requirements {
	return s.verifier.RequirementsFor(recipient)
}

// Deliver validates the submission, settles its payment, and persists the
// message. The store write is the primary task; index appends run
// concurrently and their failure never rolls back the message.
func (s *Service) Deliver(ctx context.Context, sub Submission) (*store.Message, *payment.Settlement, error) {
	if err := s.validate(sub); err != nil {
		return nil, nil, err
	}

	// The only third-party wait in the request: one relay round trip.
	settlement, err := s.verifier.Verify(ctx, sub.Assertion, sub.ToAddress)
	if err != nil {
		return nil, nil, err
	}

	from := settlement.Payer
	if from == "" {
		from = store.UnknownSender
	}

	// Sender-index gating and signature checks both need the sender's
	// registry record; unregistered senders simply skip both.
	sender, lookupErr := s.registry.Lookup(from)
	if lookupErr != nil && !errors.Is(lookupErr, identity.ErrNotRegistered) {
		s.log.Warn().Err(lookupErr).Str("address", from).Msg("sender identity lookup failed")
		sender = nil
	}

	msg := &store.Message{
		ID:           uuid.NewString(),
		FromAddress:  from,
		ToAddress:    sub.ToAddress,
		ToBtcAddress: sub.ToBtcAddress,
		Content:      sub.Content,
		PaymentTx:    settlement.TxID,
		PaymentSats:  s.verifier.RequirementsFor(sub.ToAddress).PriceSats,
		SentAt:       time.Now().UTC(),
	}
	s.authenticate(msg, sender, sub.Signature)

	var (
		wg       sync.WaitGroup
		storeErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		storeErr = s.store.PutMessage(msg)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.store.AppendReceived(sub.ToAddress, msg.ID, msg.SentAt); err != nil {
			s.log.Error().Err(err).Str("address", sub.ToAddress).Msg("received-index append failed")
		}
	}()

	if sender != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.AppendSent(sender.Address, msg.ID, msg.SentAt); err != nil {
				s.log.Error().Err(err).Str("address", sender.Address).Msg("sent-index append failed")
			}
		}()
	}

	wg.Wait()
	if storeErr != nil {
		return nil, nil, storeErr
	}

	s.log.Info().
		Str("message_id", msg.ID).
		Str("from", msg.FromAddress).
		Str("to", msg.ToAddress).
		Bool("authenticated", msg.Authenticated).
		Msg("message delivered")
	return msg, settlement, nil
}

// Reply attaches a reply to an existing message.
func (s *Service) Reply(ctx context.Context, messageID, from, content string) (*store.Reply, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if len(content) > s.maxContentBytes {
		return nil, ErrContentTooLarge
	}

	if _, err := s.store.GetMessage(messageID); err != nil {
		return nil, err
	}

	reply := &store.Reply{
		MessageID: messageID,
		From:      from,
		Content:   content,
		RepliedAt: time.Now().UTC(),
	}
	if err := s.store.PutReply(reply); err != nil {
		return nil, fmt.Errorf("store reply: %w", err)
	}
	return reply, nil
}

func (s *Service) validate(sub Submission) error {
	if sub.ToAddress == "" {
		return ErrInvalidRecipient
	}
	if sub.Content == "" {
		return ErrEmptyContent
	}
	if len(sub.Content) > s.maxContentBytes {
		return ErrContentTooLarge
	}
	return nil
}

// authenticate marks the message authenticated when the optional
// signature recovers to the sender's registered bitcoin address.
func (s *Service) authenticate(msg *store.Message, sender *identity.Record, signature string) {
	if signature == "" || sender == nil || sender.BtcAddress == "" {
		return
	}

	recovered, err := identity.VerifyMessage(msg.Content, signature)
	if err != nil {
		s.log.Debug().Err(err).Str("from", msg.FromAddress).Msg("sender signature rejected")
		return
	}
	if recovered != sender.BtcAddress {
		s.log.Debug().
			Str("from", msg.FromAddress).
			Str("recovered", recovered).
			Msg("sender signature recovered to a different address")
		return
	}

	msg.Authenticated = true
	msg.SenderIdentity = sender.Address
	msg.SenderProof = signature
}
