package events

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/murmurlabs/murmur-core/internal/bus"
)

// NATSSink publishes events on the message bus, one subject per event name.
type NATSSink struct {
	client *bus.Client
	log    *slog.Logger
}

func NewNATSSink(client *bus.Client, log *slog.Logger) *NATSSink {
	return &NATSSink{client: client, log: log}
}

func (s *NATSSink) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	if err := s.client.Publish(event, data); err != nil {
		return err
	}
	s.log.Debug("published event",
		slog.String("subject", event),
		slog.Int("bytes", len(data)))
	return nil
}
