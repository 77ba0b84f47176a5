package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/abbakary/okpos/internal/hub"
	"github.com/abbakary/okpos/internal/store"
)

type fakeOutbox struct {
	events  []store.OutboxEvent
	offsets map[string]int64
	listErr error
}

// add assigns seq values the way the outbox table's BIGSERIAL does.
func (f *fakeOutbox) add(events ...store.OutboxEvent) {
	for _, e := range events {
		e.Seq = int64(len(f.events) + 1)
		f.events = append(f.events, e)
	}
}

func (f *fakeOutbox) ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]store.OutboxEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []store.OutboxEvent
	for _, e := range f.events {
		if e.Seq > afterSeq {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutbox) GetLastOffset(ctx context.Context, consumer string) (int64, error) {
	return f.offsets[consumer], nil
}

func (f *fakeOutbox) UpdateOffset(ctx context.Context, consumer string, seq int64) error {
	f.offsets[consumer] = seq
	return nil
}

type recordingSink struct {
	name string
	seen []string
	err  error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Handle(ctx context.Context, event store.OutboxEvent) error {
	s.seen = append(s.seen, event.EventID)
	return s.err
}

type fakeNotifications struct {
	inserted []store.Notification
	sent     []string
	failed   map[string]string
	seen     map[string]bool
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{failed: map[string]string{}, seen: map[string]bool{}}
}

// InsertNotification mirrors the UNIQUE (event_id, channel) constraint.
func (f *fakeNotifications) InsertNotification(ctx context.Context, n store.Notification) (bool, error) {
	key := n.EventID + "/" + n.Channel
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	f.inserted = append(f.inserted, n)
	return true, nil
}

func (f *fakeNotifications) MarkNotificationSent(ctx context.Context, id string) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeNotifications) MarkNotificationFailed(ctx context.Context, id, lastError string) error {
	f.failed[id] = lastError
	return nil
}

func outboxEvent(id, eventType string, at time.Time, payload map[string]any) store.OutboxEvent {
	data, _ := json.Marshal(payload)
	return store.OutboxEvent{EventID: id, Type: eventType, Payload: data, CreatedAt: at}
}

func TestRelayAdvancesOffsetPastFailingSink(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	outbox := &fakeOutbox{offsets: map[string]int64{}}
	outbox.add(
		outboxEvent("e1", "order.created", base, nil),
		outboxEvent("e2", "order.updated", base.Add(time.Second), nil),
		outboxEvent("e3", "order.completed", base.Add(2*time.Second), nil),
	)
	good := &recordingSink{name: "good"}
	bad := &recordingSink{name: "bad", err: errors.New("down")}
	relay := NewRelay(outbox, RelayConfig{Consumer: "test", BatchSize: 2}, good, bad)

	if err := relay.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := outbox.offsets["test"]; got != 2 {
		t.Fatalf("unexpected offset %d", got)
	}
	if err := relay.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(good.seen) != 3 || len(bad.seen) != 3 {
		t.Fatalf("expected all events delivered, good=%v bad=%v", good.seen, bad.seen)
	}
	if err := relay.Run(context.Background()); err != nil {
		t.Fatalf("idle run: %v", err)
	}
	if len(good.seen) != 3 {
		t.Fatalf("events redelivered: %v", good.seen)
	}
}

func TestRelayDeliversEventsSharingTimestampAcrossBatches(t *testing.T) {
	// A completion writes its whole group of events in one transaction.
	at := time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC)
	outbox := &fakeOutbox{offsets: map[string]int64{}}
	outbox.add(
		outboxEvent("upd", "order.updated", at, nil),
		outboxEvent("status", "order.status_changed", at, nil),
		outboxEvent("done", "order.completed", at, nil),
		outboxEvent("jc", "order.document_generated", at, nil),
		outboxEvent("inv", "order.document_generated", at, nil),
	)
	sink := &recordingSink{name: "rec"}
	relay := NewRelay(outbox, RelayConfig{Consumer: "test", BatchSize: 2}, sink)

	for i := 0; i < 4; i++ {
		if err := relay.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	want := []string{"upd", "status", "done", "jc", "inv"}
	if len(sink.seen) != len(want) {
		t.Fatalf("delivered %v, want %v", sink.seen, want)
	}
	for i := range want {
		if sink.seen[i] != want[i] {
			t.Fatalf("delivered %v, want %v", sink.seen, want)
		}
	}
	if outbox.offsets["test"] != 5 {
		t.Fatalf("unexpected offset %d", outbox.offsets["test"])
	}
}

func TestRelayListError(t *testing.T) {
	outbox := &fakeOutbox{offsets: map[string]int64{}, listErr: errors.New("db down")}
	relay := NewRelay(outbox, RelayConfig{})
	if err := relay.Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRenderTemplate(t *testing.T) {
	payload := payloadData{
		"order_number": "ORD-2026-0001",
		"final_amount": 95000.0,
	}
	got := renderTemplate("Order {order_number} is complete. Total due: {final_amount}.", payload)
	if got != "Order ORD-2026-0001 is complete. Total due: 95000.00." {
		t.Fatalf("unexpected render: %s", got)
	}
}

func TestTemplateForEvent(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		payload   payloadData
		wantEmpty bool
	}{
		{"created", "order.created", payloadData{}, false},
		{"completed", "order.completed", payloadData{}, false},
		{"invoice", "order.document_generated", payloadData{"kind": "invoice"}, false},
		{"job card", "order.document_generated", payloadData{"kind": "job_card"}, true},
		{"plain update", "order.updated", payloadData{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := templateForEvent(tt.eventType, tt.payload)
			if (got == "") != tt.wantEmpty {
				t.Fatalf("templateForEvent(%s) = %q", tt.eventType, got)
			}
		})
	}
}

func TestNotificationSinkRecordsOutcome(t *testing.T) {
	notes := newFakeNotifications()
	sink := NewNotificationSink(notes, NotificationConfig{
		SMS:   ChannelConfig{Provider: "noop"},
		Email: ChannelConfig{Provider: "fail"},
	})
	ids := []string{"n1", "n2"}
	sink.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	event := outboxEvent("e1", "order.completed", time.Now(), map[string]any{
		"order_number":   "ORD-2026-0001",
		"final_amount":   95000,
		"customer_phone": "0700000000",
		"customer_email": "a@example.com",
	})
	if err := sink.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(notes.inserted) != 2 {
		t.Fatalf("expected sms and email, got %+v", notes.inserted)
	}
	if notes.inserted[0].Channel != "sms" || notes.inserted[0].EventID != "e1" {
		t.Fatalf("unexpected notification %+v", notes.inserted[0])
	}
	if len(notes.sent) != 1 || notes.sent[0] != "n1" {
		t.Fatalf("expected sms sent, got %v", notes.sent)
	}
	if notes.failed["n2"] == "" {
		t.Fatalf("expected email failure recorded")
	}
}

type recordingProvider struct {
	sent []Message
}

func (p *recordingProvider) Send(ctx context.Context, msg Message) error {
	p.sent = append(p.sent, msg)
	return nil
}

func TestNotificationSinkSendsOncePerEvent(t *testing.T) {
	notes := newFakeNotifications()
	sms := &recordingProvider{}
	sink := NewNotificationSink(notes, NotificationConfig{})
	sink.providers = map[string]Provider{"sms": sms}

	event := outboxEvent("e7", "order.completed", time.Now(), map[string]any{
		"order_number":   "ORD-2026-0007",
		"final_amount":   1200,
		"customer_phone": "0700000007",
	})
	for i := 0; i < 2; i++ {
		if err := sink.Handle(context.Background(), event); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}
	if len(sms.sent) != 1 {
		t.Fatalf("expected one sms for a redelivered event, got %d", len(sms.sent))
	}
	if got := sms.sent[0]; got.OrderNumber != "ORD-2026-0007" || got.EventID != "e7" || got.Recipient != "0700000007" {
		t.Fatalf("unexpected message %+v", got)
	}
	if len(notes.sent) != 1 {
		t.Fatalf("expected one sent record, got %v", notes.sent)
	}
}

func TestNotificationSinkSkipsWithoutContact(t *testing.T) {
	notes := newFakeNotifications()
	sink := NewNotificationSink(notes, NotificationConfig{SMS: ChannelConfig{Provider: "noop"}})
	event := outboxEvent("e1", "order.created", time.Now(), map[string]any{"order_number": "ORD-2026-0002"})
	if err := sink.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(notes.inserted) != 0 {
		t.Fatalf("expected no notifications, got %+v", notes.inserted)
	}
}

func TestWebhookProvider(t *testing.T) {
	var got Message
	var idempotencyKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		idempotencyKey = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	msg := Message{EventID: "e1", EventType: "order.completed", OrderNumber: "ORD-2026-0001", Channel: "sms", Recipient: "0700", Body: "hello"}
	provider := NewProvider("sms", ChannelConfig{Provider: "webhook", WebhookURL: server.URL, WebhookToken: "secret"})
	if err := provider.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got != msg {
		t.Fatalf("unexpected webhook body %+v", got)
	}
	if idempotencyKey != "e1:sms" {
		t.Fatalf("unexpected idempotency key %q", idempotencyKey)
	}

	rejected := NewProvider("sms", ChannelConfig{Provider: "webhook", WebhookURL: server.URL, WebhookToken: "wrong"})
	if err := rejected.Send(context.Background(), msg); err == nil {
		t.Fatalf("expected rejection")
	}
}

func TestNewProviderFallsBackToLog(t *testing.T) {
	tests := []struct {
		name string
		cfg  ChannelConfig
	}{
		{"empty", ChannelConfig{}},
		{"webhook without url", ChannelConfig{Provider: "webhook"}},
		{"unknown", ChannelConfig{Provider: "carrier-pigeon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := NewProvider("sms", tt.cfg).(logProvider); !ok {
				t.Fatalf("expected log provider for %+v", tt.cfg)
			}
		})
	}
}

func TestMaskRecipient(t *testing.T) {
	tests := map[string]string{
		"0712345678":       "******5678",
		"owner@garage.com": "***@garage.com",
		"123":              "123",
	}
	for in, want := range tests {
		if got := maskRecipient(in); got != want {
			t.Fatalf("maskRecipient(%q) = %q, want %q", in, got, want)
		}
	}
}

type recordingPublisher struct {
	msgs []*nats.Msg
}

func (p *recordingPublisher) PublishMsg(msg *nats.Msg) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestNATSSinkSubject(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewNATSSink(pub)
	event := outboxEvent("e1", "order.document_generated", time.Now(), map[string]any{"kind": "invoice"})
	if err := sink.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Subject != "garage.order.document_generated" {
		t.Fatalf("unexpected publish %+v", pub.msgs)
	}
	var decoded store.OutboxEvent
	if err := json.Unmarshal(pub.msgs[0].Data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventID != "e1" {
		t.Fatalf("unexpected event %+v", decoded)
	}
}

func TestHubSinkRoutesByOrder(t *testing.T) {
	h := hub.New()
	watcher := &hub.Client{ID: "w", Send: make(chan []byte, 1), Subscription: hub.Subscription{OrderID: "o-1"}}
	other := &hub.Client{ID: "x", Send: make(chan []byte, 1), Subscription: hub.Subscription{OrderID: "o-2"}}
	h.Register(watcher)
	h.Register(other)

	sink := NewHubSink(h)
	event := outboxEvent("e1", "order.completed", time.Now(), map[string]any{"order_id": "o-1", "order_type": "service"})
	if err := sink.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(watcher.Send) != 1 || len(other.Send) != 0 {
		t.Fatalf("unexpected routing watcher=%d other=%d", len(watcher.Send), len(other.Send))
	}
	var env hub.Envelope
	if err := json.Unmarshal(<-watcher.Send, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != "order.completed" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}
