package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/chm413/mochi-link/models"
	"github.com/google/uuid"
)

// DeliverySink is where a matched event goes: an HTTP SSE stream or a bot
// webhook call. Kept as a tiny callback interface rather than an event bus
// — there's exactly one dispatch point (the Hub) and no need for pub/sub
// machinery in between.
type DeliverySink interface {
	Deliver(ctx context.Context, sub models.Subscription, eventType string, data json.RawMessage)
}

// SubscriptionService is the Subscription/Event Fan-out (C10): it tracks
// ephemeral per-subscriber event subscriptions and performs type/filter
// matching against every event the Connection Hub reports, grounded on
// the teacher's ws/hub.go broadcast/callback dispatch pattern but
// generalized from "broadcast to a room" to "fan out to whoever
// subscribed and matches."
type SubscriptionService interface {
	Subscribe(subscriberID, serverID string, eventTypes []string, filters map[string]string, sink DeliverySink) string
	Unsubscribe(subscriptionID string)
	// DispatchEvent implements ws.EventDispatcher.
	DispatchEvent(serverID, op string, data []byte)
}

type subscriptionEntry struct {
	sub  models.Subscription
	sink DeliverySink
}

type subscriptionService struct {
	mu   sync.RWMutex
	subs map[string]subscriptionEntry
}

// NewSubscriptionService constructs the SubscriptionService.
func NewSubscriptionService() SubscriptionService {
	return &subscriptionService{subs: make(map[string]subscriptionEntry)}
}

func (s *subscriptionService) Subscribe(subscriberID, serverID string, eventTypes []string, filters map[string]string, sink DeliverySink) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.subs[id] = subscriptionEntry{
		sub: models.Subscription{
			ID:           id,
			SubscriberID: subscriberID,
			ServerID:     serverID,
			EventTypes:   eventTypes,
			Filters:      filters,
		},
		sink: sink,
	}
	s.mu.Unlock()
	return id
}

func (s *subscriptionService) Unsubscribe(subscriptionID string) {
	s.mu.Lock()
	delete(s.subs, subscriptionID)
	s.mu.Unlock()
}

// DispatchEvent matches op against every subscription bound to serverID
// and delivers to each match's sink. Event payload fields used for filter
// matching are extracted best-effort: a payload that doesn't decode as a
// flat string map simply matches on event type alone.
func (s *subscriptionService) DispatchEvent(serverID, op string, data []byte) {
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		fields = nil
	}

	s.mu.RLock()
	matches := make([]subscriptionEntry, 0, 4)
	for _, entry := range s.subs {
		if entry.sub.ServerID != serverID {
			continue
		}
		if entry.sub.Matches(op, fields) {
			matches = append(matches, entry)
		}
	}
	s.mu.RUnlock()

	if len(matches) == 0 {
		return
	}

	ctx := context.Background()
	for _, entry := range matches {
		func(entry subscriptionEntry) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("subscription sink panicked", "subscriptionId", entry.sub.ID, "panic", r)
				}
			}()
			entry.sink.Deliver(ctx, entry.sub, op, data)
		}(entry)
	}
}
