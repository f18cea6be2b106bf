// Package events implements the in-process notification fan-out. The claim
// scheduler and resource registry publish change events keyed by circle;
// connected clients subscribe to one circle's stream (served over SSE by the
// HTTP layer, which owns the transport).
//
// Publishing never blocks: each subscriber has a buffered channel and a slow
// consumer drops events rather than stalling the scheduler. The stream is a
// notification channel, not a durable log — clients that care about missed
// updates re-fetch through the regular API.
package events

import (
	"sync"
	"time"
)

// Type identifies what changed.
type Type string

const (
	TypeClaimCreated    Type = "claim_created"
	TypeClaimUpdated    Type = "claim_updated"
	TypeClaimCancelled  Type = "claim_cancelled"
	TypeClaimReturned   Type = "claim_returned"
	TypeResourceUpdated Type = "resource_updated"
	TypeMemberJoined    Type = "member_joined"
)

// Event is a single change notification delivered to subscribers of the
// owning circle's stream.
type Event struct {
	Type      Type      `json:"type"`
	CircleID  string    `json:"circle_id"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriberBuffer is the per-subscriber channel depth. Beyond it, events for
// that subscriber are dropped.
const subscriberBuffer = 16

// Subscriber receives the events of one circle. Close it exactly once via
// Bus.Unsubscribe.
type Subscriber struct {
	circleID string
	ch       chan Event
	done     chan struct{}
}

// Events returns the receive channel. It is closed when the subscriber is
// unsubscribed or the bus shuts down.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Done is closed when the bus has discarded this subscriber.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Bus is a minimal publish/subscribe hub keyed by circle id. It is safe for
// concurrent use.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscriber]struct{}
	closed bool
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers a new subscriber for circleID.
func (b *Bus) Subscribe(circleID string) *Subscriber {
	s := &Subscriber{
		circleID: circleID,
		ch:       make(chan Event, subscriberBuffer),
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		close(s.done)
		return s
	}
	set, ok := b.subs[circleID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subs[circleID] = set
	}
	set[s] = struct{}{}
	return s
}

// Unsubscribe removes s and closes its channels. Safe to call once per
// subscriber; typically deferred by the SSE handler.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[s.circleID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(b.subs, s.circleID)
	}
	close(s.ch)
	close(s.done)
}

// Publish fans evt out to the subscribers of evt.CircleID. A zero Timestamp
// is stamped with the current UTC time. Slow subscribers are skipped.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for s := range b.subs[evt.CircleID] {
		select {
		case s.ch <- evt:
		default:
			// Buffer full; drop rather than block the publisher.
		}
	}
}

// Close shuts the bus down and disconnects every subscriber. Subsequent
// publishes are no-ops and subsequent subscribes return closed subscribers.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, set := range b.subs {
		for s := range set {
			close(s.ch)
			close(s.done)
		}
	}
	b.subs = make(map[string]map[*Subscriber]struct{})
}

// SubscriberCount reports the number of live subscribers for a circle.
// Exposed for tests and operational introspection.
func (b *Bus) SubscriberCount(circleID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[circleID])
}
