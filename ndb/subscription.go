package ndb

import (
	"fmt"
	"slices"
	"sync"

	"github.com/beyondbrewing/brewery-nostrdb/nostr"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/logger"
)

// Subscription identifies a live subscription. Zero is never issued.
type Subscription uint64

type subscription struct {
	filters []Filter
	queue   []uint64
	dropped uint64
}

// subscriptions is the registry of live subscriptions. Matching happens on
// the ingest path; delivery is pull-based through PollForNotes.
type subscriptions struct {
	mu     sync.Mutex
	next   Subscription
	live   map[Subscription]*subscription
	limit  int
	logger logger.Logger
}

func newSubscriptions(limit int, log logger.Logger) *subscriptions {
	return &subscriptions{
		next:   1,
		live:   make(map[Subscription]*subscription),
		limit:  limit,
		logger: log,
	}
}

func (s *subscriptions) publish(ev *nostr.Event, key uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.live {
		if !slices.ContainsFunc(sub.filters, func(f Filter) bool { return f.Matches(ev) }) {
			continue
		}
		if len(sub.queue) >= s.limit {
			sub.dropped++
			// Log once per overflow run.
			if sub.dropped == 1 {
				s.logger.Warn("subscription queue full, dropping notes", "subscription", uint64(id), "capacity", s.limit)
			}
			continue
		}
		sub.dropped = 0
		sub.queue = append(sub.queue, key)
	}
}

func (s *subscriptions) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.live)
}

// Subscribe registers filters and returns the subscription id. Notes
// ingested afterwards that match any of the filters are queued for
// PollForNotes.
func (n *Ndb) Subscribe(filters []Filter) (Subscription, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed.Load() {
		return 0, ErrClosed
	}
	if len(filters) == 0 {
		return 0, fmt.Errorf("%w: subscription needs at least one filter", ErrInvalidFilter)
	}

	s := n.subs
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.live[id] = &subscription{filters: slices.Clone(filters)}
	n.logger.Debug("subscribed", "subscription", uint64(id), "filters", len(filters))
	return id, nil
}

// PollForNotes removes and returns up to maxNotes queued note keys, oldest
// first. It never blocks.
func (n *Ndb) PollForNotes(id Subscription, maxNotes int) ([]uint64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed.Load() {
		return nil, ErrClosed
	}

	s := n.subs
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.live[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrSubscriptionNotFound, id)
	}
	if maxNotes <= 0 || len(sub.queue) == 0 {
		return []uint64{}, nil
	}
	k := min(maxNotes, len(sub.queue))
	out := slices.Clone(sub.queue[:k])
	sub.queue = slices.Delete(sub.queue, 0, k)
	return out, nil
}

// Unsubscribe removes a subscription and discards its queue.
func (n *Ndb) Unsubscribe(id Subscription) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed.Load() {
		return ErrClosed
	}

	s := n.subs
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[id]; !ok {
		return fmt.Errorf("%w: %d", ErrSubscriptionNotFound, id)
	}
	delete(s.live, id)
	n.logger.Debug("unsubscribed", "subscription", uint64(id))
	return nil
}
