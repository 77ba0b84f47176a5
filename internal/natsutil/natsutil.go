// Package natsutil publishes garage events on NATS with trace context carried
// in the message headers.
package natsutil

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// SubjectPrefix is prepended to every event type published by the relay.
const SubjectPrefix = "garage"

// MsgPublisher is the part of *nats.Conn the relay needs.
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Subject maps an event type such as "order.completed" to "garage.order.completed".
func Subject(eventType string) string {
	eventType = strings.Trim(strings.TrimSpace(eventType), ".")
	if eventType == "" {
		return SubjectPrefix + ".unknown"
	}
	return SubjectPrefix + "." + eventType
}

// NewMsg encodes v as JSON and injects the trace context from ctx.
func NewMsg(ctx context.Context, subject string, v any) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg, nil
}

// Publish serializes v as JSON and publishes it on subject.
func Publish(ctx context.Context, p MsgPublisher, subject string, v any) error {
	msg, err := NewMsg(ctx, subject, v)
	if err != nil {
		return err
	}
	return p.PublishMsg(msg)
}

// Subscribe decodes JSON messages of type T and hands them to handler with the
// extracted trace context. Malformed messages are dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
		handler(ctx, v)
	})
}

// Connect dials url with the reconnect settings used by the service. An empty
// url returns a nil connection and no error.
func Connect(url, name string) (*nats.Conn, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
}
