package events

import "sync"

// Sink delivers pipeline events to subscribers. The event name is the bus
// subject; the payload is marshalled as JSON by bus-backed sinks.
type Sink interface {
	Emit(event string, payload any) error
}

// MemorySink records events in order. It backs bus-less deployments and
// tests; Events returns a snapshot.
type MemorySink struct {
	mu     sync.Mutex
	events []Recorded
}

type Recorded struct {
	Event   string
	Payload any
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Recorded{Event: event, Payload: payload})
	return nil
}

func (s *MemorySink) Events() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Recorded, len(s.events))
	copy(out, s.events)
	return out
}

// ByEvent returns the payloads recorded under one event name.
func (s *MemorySink) ByEvent(event string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []any
	for _, r := range s.events {
		if r.Event == event {
			out = append(out, r.Payload)
		}
	}
	return out
}
