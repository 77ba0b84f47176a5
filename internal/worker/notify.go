package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/abbakary/okpos/internal/models"
	"github.com/abbakary/okpos/internal/store"
	"github.com/abbakary/okpos/internal/workflow"
)

// NotificationStore records every delivery attempt. InsertNotification
// returns false for an (event, channel) pair it has already seen.
type NotificationStore interface {
	InsertNotification(ctx context.Context, notification store.Notification) (bool, error)
	MarkNotificationSent(ctx context.Context, notificationID string) error
	MarkNotificationFailed(ctx context.Context, notificationID, lastError string) error
}

type payloadData map[string]interface{}

// NotificationSink tells customers about their orders over SMS and email.
type NotificationSink struct {
	store     NotificationStore
	providers map[string]Provider
	newID     func() string
}

type NotificationConfig struct {
	SMS   ChannelConfig
	Email ChannelConfig
}

func NewNotificationSink(s NotificationStore, cfg NotificationConfig) *NotificationSink {
	return &NotificationSink{
		store: s,
		providers: map[string]Provider{
			"sms":   NewProvider("sms", cfg.SMS),
			"email": NewProvider("email", cfg.Email),
		},
		newID: uuid.NewString,
	}
}

func (n *NotificationSink) Name() string { return "notification" }

func (n *NotificationSink) Handle(ctx context.Context, event store.OutboxEvent) error {
	payload := payloadData{}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	template := templateForEvent(event.Type, payload)
	if template == "" {
		return nil
	}
	message := renderTemplate(template, payload)

	for _, target := range pickChannels(payload) {
		provider, ok := n.providers[target.name]
		if !ok {
			continue
		}
		notification := store.Notification{
			NotificationID: n.newID(),
			EventID:        event.EventID,
			Channel:        target.name,
			Recipient:      target.recipient,
			Body:           message,
			Status:         "pending",
		}
		inserted, err := n.store.InsertNotification(ctx, notification)
		if err != nil {
			return err
		}
		if !inserted {
			log.Printf("notify skip duplicate event=%s channel=%s", event.EventID, target.name)
			continue
		}
		msg := Message{
			EventID:     event.EventID,
			EventType:   event.Type,
			OrderNumber: str(payload, "order_number"),
			Channel:     target.name,
			Recipient:   target.recipient,
			Body:        message,
		}
		if sendErr := provider.Send(ctx, msg); sendErr != nil {
			if err := n.store.MarkNotificationFailed(ctx, notification.NotificationID, sendErr.Error()); err != nil {
				return err
			}
			continue
		}
		if err := n.store.MarkNotificationSent(ctx, notification.NotificationID); err != nil {
			return err
		}
	}
	return nil
}

// templateForEvent picks the customer message. Only the invoice of the two
// generated documents is announced.
func templateForEvent(eventType string, payload payloadData) string {
	switch eventType {
	case "order.created":
		return "Hello {customer_name}, your order {order_number} has been received."
	case workflow.EventTimeTrackingStarted:
		return "Work on order {order_number} has started."
	case workflow.EventOrderCompleted:
		return "Order {order_number} is complete. Total due: {final_amount}."
	case workflow.EventDocumentGenerated:
		if str(payload, "kind") == models.DocumentInvoice {
			return "Invoice {number} for order {order_number} is ready."
		}
	}
	return ""
}

var templateKeys = []string{"customer_name", "order_number", "number", "final_amount", "status"}

func renderTemplate(template string, payload payloadData) string {
	result := template
	for _, key := range templateKeys {
		placeholder := "{" + key + "}"
		if !strings.Contains(result, placeholder) {
			continue
		}
		result = strings.ReplaceAll(result, placeholder, str(payload, key))
	}
	return result
}

func str(payload payloadData, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		log.Printf("notify missing variable=%s", key)
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprint(v)
	}
}

type channelTarget struct {
	name      string
	recipient string
}

func pickChannels(payload payloadData) []channelTarget {
	var channels []channelTarget
	if phone, ok := payload["customer_phone"].(string); ok && phone != "" {
		channels = append(channels, channelTarget{name: "sms", recipient: phone})
	}
	if email, ok := payload["customer_email"].(string); ok && email != "" {
		channels = append(channels, channelTarget{name: "email", recipient: email})
	}
	return channels
}
