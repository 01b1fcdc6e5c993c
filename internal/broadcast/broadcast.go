// Package broadcast is an in-process publish-subscribe fan-out of domain
// events to SSE subscribers, with a bounded channel per subscriber and
// drop-on-lag semantics: a slow subscriber loses messages rather than
// back-pressuring the rest of the system.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Capacity is the bounded channel size per subscriber.
const Capacity = 256

// LiveEvent is one member of the closed tagged union of SSE event variants.
type LiveEvent struct {
	Type     string `json:"type"`
	TicketID string `json:"ticketId,omitempty"`
	RunID    string `json:"runId,omitempty"`
	BoardID  string `json:"boardId,omitempty"`
	Data     any    `json:"data,omitempty"`
}

const (
	TicketCreated  = "ticket_created"
	TicketUpdated  = "ticket_updated"
	TicketMoved    = "ticket_moved"
	TicketDeleted  = "ticket_deleted"
	CommentAdded   = "comment_added"
	RunStarted     = "run_started"
	RunUpdated     = "run_updated"
	RunCompleted   = "run_completed"
	EventReceived  = "event_received"
	TicketLocked   = "ticket_locked"
	TicketUnlocked = "ticket_unlocked"
)

type subscriber struct {
	ch     chan LiveEvent
	ticket string
	run    string
	types  map[string]bool
}

// Broadcaster fans events out to registered subscribers.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*subscriber]bool
	logger *slog.Logger
}

// New builds an empty Broadcaster.
func New(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{subs: make(map[*subscriber]bool), logger: logger}
}

// Subscription is a handle returned by Subscribe; callers range over
// Events() and must call Close() when done.
type Subscription struct {
	b *Broadcaster
	s *subscriber
}

// Filter narrows a subscription to specific event types, a ticket id, and/or
// a run id, all conjunctively. An empty field means "no restriction".
type Filter struct {
	Types    []string
	TicketID string
	RunID    string
}

// Subscribe registers a new subscriber and returns its handle.
func (b *Broadcaster) Subscribe(f Filter) *Subscription {
	s := &subscriber{
		ch:     make(chan LiveEvent, Capacity),
		ticket: f.TicketID,
		run:    f.RunID,
	}
	if len(f.Types) > 0 {
		s.types = make(map[string]bool, len(f.Types))
		for _, t := range f.Types {
			s.types[t] = true
		}
	}

	b.mu.Lock()
	b.subs[s] = true
	b.mu.Unlock()

	return &Subscription{b: b, s: s}
}

// Events returns the channel of events matching this subscription's filter.
func (s *Subscription) Events() <-chan LiveEvent { return s.s.ch }

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.subs[s.s]; ok {
		delete(s.b.subs, s.s)
		close(s.s.ch)
	}
}

// Publish fans an event out to every matching subscriber. A subscriber whose
// channel is full has the event dropped for it, not buffered or blocked on.
func (b *Broadcaster) Publish(ev LiveEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs {
		if s.types != nil && !s.types[ev.Type] {
			continue
		}
		if s.ticket != "" && s.ticket != ev.TicketID {
			continue
		}
		if s.run != "" && s.run != ev.RunID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.logger.Warn("dropping event for lagging subscriber", "type", ev.Type, "ticketId", ev.TicketID, "runId", ev.RunID)
		}
	}
}

// Marshal renders an event as a single JSON line, as emitted over SSE.
func Marshal(ev LiveEvent) ([]byte, error) {
	return json.Marshal(ev)
}
