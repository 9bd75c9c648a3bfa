package query

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/satbox/satbox-server/internal/identity"
	"github.com/satbox/satbox-server/internal/store"
)

const (
	directionSent     = "sent"
	directionReceived = "received"
	directionBoth     = "both"
)

// aggregatePartners groups every fetched message (both directions, not
// the paginated slice) by counterparty and returns the top partners by
// message count, recency breaking ties. Name resolution is best-effort.
func (e *Engine) aggregatePartners(ctx context.Context, address string, messages []*store.Message) []Partner {
	byAddress := make(map[string]*Partner)

	for _, msg := range messages {
		partnerAddr, direction := counterparty(msg, address)
		if partnerAddr == "" {
			continue
		}

		partner, ok := byAddress[partnerAddr]
		if !ok {
			partner = &Partner{Address: partnerAddr, Direction: direction}
			byAddress[partnerAddr] = partner
		} else if partner.Direction != direction {
			partner.Direction = directionBoth
		}

		partner.MessageCount++
		if msg.SentAt.After(partner.LastInteractionAt) {
			partner.LastInteractionAt = msg.SentAt
		}
	}

	partners := make([]Partner, 0, len(byAddress))
	for _, partner := range byAddress {
		partners = append(partners, *partner)
	}

	sort.Slice(partners, func(i, j int) bool {
		if partners[i].MessageCount != partners[j].MessageCount {
			return partners[i].MessageCount > partners[j].MessageCount
		}
		return partners[i].LastInteractionAt.After(partners[j].LastInteractionAt)
	})
	if len(partners) > topPartners {
		partners = partners[:topPartners]
	}

	e.resolvePartnerNames(ctx, partners)
	return partners
}

// counterparty returns the other side of a message from the viewpoint of
// address, along with the direction the message contributes.
func counterparty(msg *store.Message, address string) (string, string) {
	if msg.ToAddress == address {
		return msg.FromAddress, directionReceived
	}
	if msg.FromAddress == address {
		return msg.ToAddress, directionSent
	}
	return "", ""
}

// resolvePartnerNames fans out registry lookups for the final partner
// list. Failures leave the name empty; they never fail the query.
func (e *Engine) resolvePartnerNames(ctx context.Context, partners []Partner) {
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i := range partners {
		g.Go(func() error {
			record, err := e.registry.Lookup(partners[i].Address)
			if err != nil {
				if !errors.Is(err, identity.ErrNotRegistered) {
					e.log.Debug().Err(err).Str("address", partners[i].Address).Msg("partner name lookup failed")
				}
				return nil
			}
			mu.Lock()
			partners[i].Name = record.Name
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}
