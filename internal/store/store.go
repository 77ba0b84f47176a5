package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/abbakary/okpos/internal/intake"
	"github.com/abbakary/okpos/internal/models"
	"github.com/abbakary/okpos/internal/workflow"
)

type CreateOrderInput struct {
	RequestID string
	Intake    intake.OrderIntake
	CreatedBy string
}

type UpdateOrderInput struct {
	RequestID       string
	OrderID         string
	ExpectedVersion *int
	ActorID         string
	ActorRole       string
}

// UpdateFunc computes the update for an order that is locked for the
// duration of the call.
type UpdateFunc func(order models.Order) (workflow.Result, error)

type OrderFilter struct {
	Status     string
	CustomerID string
	From       time.Time
	To         time.Time
	Limit      int
}

type OrderStore interface {
	CreateOrderFromIntake(ctx context.Context, input CreateOrderInput) (models.Order, bool, error)
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	ApplyOrderUpdate(ctx context.Context, input UpdateOrderInput, apply UpdateFunc) (workflow.Result, error)
	ListDocuments(ctx context.Context, orderID string) ([]models.Document, error)
	ListOrderEvents(ctx context.Context, orderID string) ([]OrderEvent, error)
}

// CustomerDirectory is the read-only lookup used by the intake screens.
type CustomerDirectory interface {
	FindCustomers(ctx context.Context, query string, limit int) ([]models.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (models.Customer, []models.Vehicle, error)
	GetCustomerDetails(ctx context.Context, customerID string) (models.CustomerDetails, error)
	ListTechnicians(ctx context.Context) ([]models.Technician, error)
}

type AuthStore interface {
	Login(ctx context.Context, email, password string, ttl time.Duration) (models.Session, models.User, error)
	GetSession(ctx context.Context, sessionID string) (models.Session, models.User, error)
}

type StatsStore interface {
	DashboardStats(ctx context.Context, day time.Time) (models.DashboardStats, error)
}

// Store is everything the HTTP layer needs.
type Store interface {
	OrderStore
	CustomerDirectory
	AuthStore
	StatsStore
	intake.DraftStore
	workflow.AttachmentStore
}

type OutboxEvent struct {
	Seq       int64           `json:"seq"`
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	OrderID   string          `json:"order_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type Notification struct {
	NotificationID string
	EventID        string
	Channel        string
	Recipient      string
	Body           string
	Status         string
	Attempts       int
	LastError      string
	CreatedAt      time.Time
}

// OutboxStore is consumed by the outbox relay. Offsets are the last
// delivered seq, tracked per consumer name.
type OutboxStore interface {
	ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]OutboxEvent, error)
	GetLastOffset(ctx context.Context, consumer string) (int64, error)
	UpdateOffset(ctx context.Context, consumer string, seq int64) error
	// InsertNotification reports false when the event already has a
	// notification on that channel.
	InsertNotification(ctx context.Context, notification Notification) (bool, error)
	MarkNotificationSent(ctx context.Context, notificationID string) error
	MarkNotificationFailed(ctx context.Context, notificationID, lastError string) error
}
