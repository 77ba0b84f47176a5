package worker

import (
	"context"
	"log"
	"time"

	"github.com/abbakary/okpos/internal/store"
)

// Sink receives outbox events in seq order. A failing sink is logged and
// does not hold back the offset. Delivery is at least once, so sinks must
// tolerate seeing an event again.
type Sink interface {
	Name() string
	Handle(ctx context.Context, event store.OutboxEvent) error
}

// OffsetStore is the subset of store.OutboxStore the relay itself needs.
type OffsetStore interface {
	ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]store.OutboxEvent, error)
	GetLastOffset(ctx context.Context, consumer string) (int64, error)
	UpdateOffset(ctx context.Context, consumer string, seq int64) error
}

type Relay struct {
	store     OffsetStore
	consumer  string
	batchSize int
	sinks     []Sink
}

type RelayConfig struct {
	Consumer  string
	BatchSize int
}

func NewRelay(s OffsetStore, cfg RelayConfig, sinks ...Sink) *Relay {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	consumer := cfg.Consumer
	if consumer == "" {
		consumer = "relay"
	}
	return &Relay{store: s, consumer: consumer, batchSize: batch, sinks: sinks}
}

// Run processes one batch after the stored offset and advances it.
func (r *Relay) Run(ctx context.Context) error {
	last, err := r.store.GetLastOffset(ctx, r.consumer)
	if err != nil {
		return err
	}

	events, err := r.store.ListOutboxEvents(ctx, last, r.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		for _, sink := range r.sinks {
			if err := sink.Handle(ctx, event); err != nil {
				log.Printf("relay sink=%s event=%s type=%s error=%v", sink.Name(), event.EventID, event.Type, err)
			}
		}
		last = event.Seq
	}
	return r.store.UpdateOffset(ctx, r.consumer, last)
}

func Start(ctx context.Context, interval time.Duration, r *Relay) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				log.Printf("relay consumer=%s error=%v", r.consumer, err)
			}
		}
	}
}
