package models

// Subscription is an operator surface's standing interest in a server's
// event stream: {subscriberId, serverId, eventTypes, filters, delivery}.
// Subscriptions are ephemeral — they live only as long as the subscribing
// HTTP SSE stream or bot session is open, and don't survive operator
// disconnect, so the Subscription Service keeps these in memory rather
// than adding a store table nothing else needs (see DESIGN.md).
type Subscription struct {
	ID           string   `json:"id"`
	SubscriberID string   `json:"subscriberId"`
	ServerID     string   `json:"serverId"`
	EventTypes   []string `json:"eventTypes"`
	Filters      map[string]string `json:"filters,omitempty"`
}

// Matches reports whether an event of the given type and field values
// should be delivered to this subscription: the event type must be in
// EventTypes (or EventTypes is empty, meaning "all types"), and every
// configured filter key must be present in fields with an equal value.
func (s *Subscription) Matches(eventType string, fields map[string]string) bool {
	if len(s.EventTypes) > 0 {
		found := false
		for _, t := range s.EventTypes {
			if t == eventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for k, v := range s.Filters {
		if fields[k] != v {
			return false
		}
	}
	return true
}
