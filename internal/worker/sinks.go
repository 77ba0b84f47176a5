package worker

import (
	"context"
	"encoding/json"

	"github.com/abbakary/okpos/internal/hub"
	"github.com/abbakary/okpos/internal/natsutil"
	"github.com/abbakary/okpos/internal/store"
)

// NATSSink republishes outbox events on garage.<event type>.
type NATSSink struct {
	publisher natsutil.MsgPublisher
}

func NewNATSSink(p natsutil.MsgPublisher) *NATSSink {
	return &NATSSink{publisher: p}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Handle(ctx context.Context, event store.OutboxEvent) error {
	return natsutil.Publish(ctx, s.publisher, natsutil.Subject(event.Type), event)
}

// Broadcaster is implemented by *hub.Hub.
type Broadcaster interface {
	Broadcast(payload []byte, meta hub.Subscription) int
}

// HubSink pushes outbox events to connected dashboards.
type HubSink struct {
	hub Broadcaster
}

func NewHubSink(h Broadcaster) *HubSink {
	return &HubSink{hub: h}
}

func (s *HubSink) Name() string { return "realtime" }

func (s *HubSink) Handle(ctx context.Context, event store.OutboxEvent) error {
	frame, err := json.Marshal(hub.Envelope{Type: event.Type, Payload: event.Payload, CreatedAt: event.CreatedAt})
	if err != nil {
		return err
	}
	s.hub.Broadcast(frame, hub.MetaFromPayload(event.Payload))
	return nil
}
