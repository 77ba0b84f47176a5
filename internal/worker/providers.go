package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Message is one customer notice about an order.
type Message struct {
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	OrderNumber string `json:"order_number,omitempty"`
	Channel     string `json:"channel"`
	Recipient   string `json:"recipient"`
	Body        string `json:"message"`
}

// idempotencyKey is stable across relay redeliveries of the same event.
func (m Message) idempotencyKey() string {
	return m.EventID + ":" + m.Channel
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, msg Message) error

func (f ProviderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// ChannelConfig selects how one channel (sms or email) is delivered.
// Provider is log, noop, fail or webhook; a bare URL is also a webhook.
type ChannelConfig struct {
	Provider     string
	WebhookURL   string
	WebhookToken string
}

var errProviderFailure = errors.New("provider failure")

func NewProvider(channel string, cfg ChannelConfig) Provider {
	kind := cfg.Provider
	switch {
	case kind == "noop":
		return ProviderFunc(func(context.Context, Message) error { return nil })
	case kind == "fail":
		return ProviderFunc(func(context.Context, Message) error { return errProviderFailure })
	case kind == "webhook" && cfg.WebhookURL != "":
		return &webhookProvider{url: cfg.WebhookURL, token: cfg.WebhookToken, client: defaultHTTPClient}
	case strings.HasPrefix(kind, "http://"), strings.HasPrefix(kind, "https://"):
		return &webhookProvider{url: kind, token: cfg.WebhookToken, client: defaultHTTPClient}
	case kind != "" && kind != "log":
		log.Printf("notify channel=%s unknown provider=%q, logging instead", channel, kind)
	}
	return logProvider{}
}

var defaultHTTPClient = &http.Client{Timeout: 5 * time.Second}

type logProvider struct{}

func (logProvider) Send(ctx context.Context, msg Message) error {
	log.Printf("notify channel=%s order=%s event=%s recipient=%s message=%q",
		msg.Channel, msg.OrderNumber, msg.EventType, maskRecipient(msg.Recipient), msg.Body)
	return nil
}

// maskRecipient keeps the last four characters of a phone number or the
// domain of an email address.
func maskRecipient(recipient string) string {
	if at := strings.LastIndex(recipient, "@"); at > 0 {
		return "***" + recipient[at:]
	}
	if len(recipient) <= 4 {
		return recipient
	}
	return strings.Repeat("*", len(recipient)-4) + recipient[len(recipient)-4:]
}

type webhookProvider struct {
	url    string
	token  string
	client *http.Client
}

func (p *webhookProvider) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", msg.idempotencyKey())
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s webhook for order %s: status %d", msg.Channel, msg.OrderNumber, resp.StatusCode)
	}
	return nil
}
