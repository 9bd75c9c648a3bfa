package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/satbox/satbox-server/internal/identity"
	"github.com/satbox/satbox-server/internal/store"
)

// View selects which direction of an address's history to page through.
type View string

const (
	ViewAll      View = "all"
	ViewSent     View = "sent"
	ViewReceived View = "received"
)

const (
	// DefaultLimit and MaxLimit bound the page size.
	DefaultLimit = 20
	MaxLimit     = 100

	// topPartners caps the partner list.
	topPartners = 10

	// fetchConcurrency bounds parallel message body reads.
	fetchConcurrency = 8
)

// ErrOffsetTooLarge is returned when the requested offset exceeds the
// configured cap. The merged view re-fetches offset+limit rows per
// direction on every page, so deep offsets are refused outright.
var ErrOffsetTooLarge = errors.New("offset too large")

// Backend is the persistence surface the engine reads from.
type Backend interface {
	store.MessageStore
	store.IndexStore
	store.ReplyStore
}

// Options controls a single List call.
type Options struct {
	View            View
	Limit           int
	Offset          int
	IncludePartners bool
}

// Economics is the derived sats summary for an address. It assumes a
// uniform per-message price; if pricing ever becomes variable this must
// switch to summing stored payment amounts.
type Economics struct {
	SatsReceived int64 `json:"satsReceived"`
	SatsSent     int64 `json:"satsSent"`
	SatsNet      int64 `json:"satsNet"`
}

// Partner is an aggregated interaction summary for one counterparty.
type Partner struct {
	Address           string    `json:"address"`
	Name              string    `json:"name,omitempty"`
	MessageCount      int       `json:"messageCount"`
	LastInteractionAt time.Time `json:"lastInteractionAt"`
	Direction         string    `json:"direction"` // sent, received, or both
}

// Page is the merged, paginated result of a List call.
type Page struct {
	Messages      []*store.Message
	Replies       map[string]*store.Reply
	ReceivedCount int
	SentCount     int
	UnreadCount   int
	Economics     Economics
	HasMore       bool
	NextOffset    int
	Partners      []Partner
}

// Engine merges the two per-address indices into paginated views and
// computes partner aggregates on demand.
type Engine struct {
	backend   Backend
	registry  identity.Registry
	priceSats int64
	maxOffset int
	log       *zerolog.Logger
}

// New builds a query engine over the given backend.
func New(backend Backend, registry identity.Registry, priceSats int64, maxOffset int, logger *zerolog.Logger) *Engine {
	return &Engine{
		backend:   backend,
		registry:  registry,
		priceSats: priceSats,
		maxOffset: maxOffset,
		log:       logger,
	}
}

// List returns one page of the address's history.
func (e *Engine) List(ctx context.Context, address string, opts Options) (*Page, error) {
	opts = normalize(opts)
	if e.maxOffset > 0 && opts.Offset > e.maxOffset {
		return nil, ErrOffsetTooLarge
	}

	// Both indices are read regardless of view: the economics and
	// direction counts always cover both directions.
	var received, sent *store.IndexEntry
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		received, err = e.backend.ReadIndex(address, store.IndexReceived)
		return err
	})
	g.Go(func() error {
		var err error
		sent, err = e.backend.ReadIndex(address, store.IndexSent)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read indices: %w", err)
	}

	window := opts.Offset + opts.Limit

	// Over-fetch strategy for the merged view: pull the newest
	// offset+limit entries from each direction, merge, sort, slice.
	// Correct for any page, at the cost of re-reading earlier entries.
	var fetchReceived, fetchSent []string
	switch opts.View {
	case ViewReceived:
		fetchReceived = newestIDs(received.MessageIDs, window)
		if opts.IncludePartners {
			fetchSent = newestIDs(sent.MessageIDs, window)
		}
	case ViewSent:
		fetchSent = newestIDs(sent.MessageIDs, window)
		if opts.IncludePartners {
			fetchReceived = newestIDs(received.MessageIDs, window)
		}
	default:
		fetchReceived = newestIDs(received.MessageIDs, window)
		fetchSent = newestIDs(sent.MessageIDs, window)
	}

	fetched, err := e.fetchMessages(ctx, dedupe(fetchReceived, fetchSent))
	if err != nil {
		return nil, err
	}

	// Page over the requested view only; the rest of the fetched window
	// still feeds replies and partner aggregation.
	pageable := fetched
	if opts.View == ViewReceived || opts.View == ViewSent {
		pageable = filterByDirection(fetched, address, opts.View)
	}
	sortNewestFirst(pageable)

	total := e.viewTotal(opts.View, received, sent)
	page := slicePage(pageable, opts.Offset, opts.Limit)

	replies, err := e.fetchReplies(ctx, fetched)
	if err != nil {
		return nil, err
	}

	result := &Page{
		Messages:      page,
		Replies:       replies,
		ReceivedCount: len(received.MessageIDs),
		SentCount:     len(sent.MessageIDs),
		UnreadCount:   received.UnreadCount,
		Economics:     e.economics(len(received.MessageIDs), len(sent.MessageIDs)),
		HasMore:       window < total,
	}
	if result.HasMore {
		result.NextOffset = window
	}

	if opts.IncludePartners {
		result.Partners = e.aggregatePartners(ctx, address, fetched)
	}
	return result, nil
}

func normalize(opts Options) Options {
	switch opts.View {
	case ViewSent, ViewReceived:
	default:
		opts.View = ViewAll
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Limit > MaxLimit {
		opts.Limit = MaxLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}

// newestIDs returns up to n ids from the tail of the append-ordered list.
func newestIDs(ids []string, n int) []string {
	if len(ids) <= n {
		return ids
	}
	return ids[len(ids)-n:]
}

func dedupe(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// fetchMessages loads message bodies concurrently. Ids without a visible
// body are skipped: an index entry may briefly precede its store write.
func (e *Engine) fetchMessages(ctx context.Context, ids []string) ([]*store.Message, error) {
	var (
		mu       sync.Mutex
		messages []*store.Message
	)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			msg, err := e.backend.GetMessage(id)
			if errors.Is(err, store.ErrMessageNotFound) {
				e.log.Debug().Str("message_id", id).Msg("indexed message not yet visible")
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch message %s: %w", id, err)
			}
			mu.Lock()
			messages = append(messages, msg)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return messages, nil
}

// fetchReplies resolves replies for every message in the fetched window,
// not just the final page.
func (e *Engine) fetchReplies(ctx context.Context, messages []*store.Message) (map[string]*store.Reply, error) {
	var mu sync.Mutex
	replies := make(map[string]*store.Reply)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, msg := range messages {
		g.Go(func() error {
			reply, err := e.backend.GetReply(msg.ID)
			if errors.Is(err, store.ErrReplyNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch reply for %s: %w", msg.ID, err)
			}
			mu.Lock()
			replies[msg.ID] = reply
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return replies, nil
}

func filterByDirection(messages []*store.Message, address string, view View) []*store.Message {
	out := make([]*store.Message, 0, len(messages))
	for _, msg := range messages {
		// A self-send matches both directions.
		if (view == ViewReceived && msg.ToAddress == address) ||
			(view == ViewSent && msg.FromAddress == address) {
			out = append(out, msg)
		}
	}
	return out
}

func sortNewestFirst(messages []*store.Message) {
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].SentAt.Equal(messages[j].SentAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].SentAt.After(messages[j].SentAt)
	})
}

func slicePage(messages []*store.Message, offset, limit int) []*store.Message {
	if offset >= len(messages) {
		return []*store.Message{}
	}
	end := offset + limit
	if end > len(messages) {
		end = len(messages)
	}
	return messages[offset:end]
}

// viewTotal is the number of entries the requested view can page over.
func (e *Engine) viewTotal(view View, received, sent *store.IndexEntry) int {
	switch view {
	case ViewReceived:
		return len(received.MessageIDs)
	case ViewSent:
		return len(sent.MessageIDs)
	default:
		// A self-send appears in both indices but is one message.
		return len(dedupe(received.MessageIDs, sent.MessageIDs))
	}
}

func (e *Engine) economics(receivedCount, sentCount int) Economics {
	in := int64(receivedCount) * e.priceSats
	out := int64(sentCount) * e.priceSats
	return Economics{SatsReceived: in, SatsSent: out, SatsNet: in - out}
}
