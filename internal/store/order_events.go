package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abbakary/okpos/internal/models"
)

type OrderEvent struct {
	OrderID   string          `json:"order_id"`
	OrderSeq  int             `json:"order_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// OrderEventPayload is the order snapshot stored with each event. Nil fields
// leave the rehydrated value untouched.
type OrderEventPayload struct {
	OrderID          string     `json:"order_id"`
	OrderNumber      string     `json:"order_number,omitempty"`
	OrderType        string     `json:"order_type,omitempty"`
	Status           string     `json:"status,omitempty"`
	Priority         string     `json:"priority,omitempty"`
	CustomerID       string     `json:"customer_id,omitempty"`
	VehicleID        *string    `json:"vehicle_id,omitempty"`
	AssignedTo       *string    `json:"assigned_to,omitempty"`
	Unassigned       bool       `json:"unassigned,omitempty"`
	Description      *string    `json:"description,omitempty"`
	TotalAmount      *float64   `json:"total_amount,omitempty"`
	DiscountAmount   *float64   `json:"discount_amount,omitempty"`
	TaxAmount        *float64   `json:"tax_amount,omitempty"`
	FinalAmount      *float64   `json:"final_amount,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	ActualCompletion *time.Time `json:"actual_completion,omitempty"`
	Version          *int       `json:"version,omitempty"`
	ActorRole        string     `json:"actor_role,omitempty"`
}

// SnapshotPayload captures every field of order.
func SnapshotPayload(order models.Order) OrderEventPayload {
	total, discount, tax, final := order.TotalAmount, order.DiscountAmount, order.TaxAmount, order.FinalAmount
	description := order.Description
	createdAt := order.CreatedAt
	version := order.Version
	return OrderEventPayload{
		OrderID:          order.OrderID,
		OrderNumber:      order.OrderNumber,
		OrderType:        order.OrderType,
		Status:           order.Status,
		Priority:         order.Priority,
		CustomerID:       order.CustomerID,
		VehicleID:        order.VehicleID,
		AssignedTo:       order.AssignedTo,
		Unassigned:       order.AssignedTo == nil,
		Description:      &description,
		TotalAmount:      &total,
		DiscountAmount:   &discount,
		TaxAmount:        &tax,
		FinalAmount:      &final,
		CreatedAt:        &createdAt,
		StartedAt:        order.StartedAt,
		ActualCompletion: order.ActualCompletion,
		Version:          &version,
	}
}

func ComputeOrderEventHash(prevHash, orderID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, orderID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// VerifyOrderEvents checks sequence numbers and the hash chain.
func VerifyOrderEvents(events []OrderEvent) error {
	prev := ""
	for i, event := range events {
		if event.OrderSeq != i+1 {
			return fmt.Errorf("%w: event %d has sequence %d", ErrEventChainBroken, i, event.OrderSeq)
		}
		if event.PrevHash != prev {
			return fmt.Errorf("%w: event %d does not link to its predecessor", ErrEventChainBroken, event.OrderSeq)
		}
		want := ComputeOrderEventHash(prev, event.OrderID, event.Type, event.Payload, event.CreatedAt, event.OrderSeq)
		if event.Hash != want {
			return fmt.Errorf("%w: event %d hash mismatch", ErrEventChainBroken, event.OrderSeq)
		}
		prev = event.Hash
	}
	return nil
}

func RehydrateOrder(events []OrderEvent) (models.Order, error) {
	var order models.Order
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload OrderEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Order{}, err
		}
		if payload.OrderID != "" {
			order.OrderID = payload.OrderID
		}
		if payload.OrderNumber != "" {
			order.OrderNumber = payload.OrderNumber
		}
		if payload.OrderType != "" {
			order.OrderType = payload.OrderType
		}
		if payload.Status != "" {
			order.Status = payload.Status
		}
		if payload.Priority != "" {
			order.Priority = payload.Priority
		}
		if payload.CustomerID != "" {
			order.CustomerID = payload.CustomerID
		}
		if payload.VehicleID != nil {
			order.VehicleID = payload.VehicleID
		}
		if payload.AssignedTo != nil {
			order.AssignedTo = payload.AssignedTo
		} else if payload.Unassigned {
			order.AssignedTo = nil
		}
		if payload.Description != nil {
			order.Description = *payload.Description
		}
		if payload.TotalAmount != nil {
			order.TotalAmount = *payload.TotalAmount
		}
		if payload.DiscountAmount != nil {
			order.DiscountAmount = *payload.DiscountAmount
		}
		if payload.TaxAmount != nil {
			order.TaxAmount = *payload.TaxAmount
		}
		if payload.FinalAmount != nil {
			order.FinalAmount = *payload.FinalAmount
		}
		if payload.CreatedAt != nil {
			order.CreatedAt = *payload.CreatedAt
		}
		if payload.StartedAt != nil {
			order.StartedAt = payload.StartedAt
		}
		if payload.ActualCompletion != nil {
			order.ActualCompletion = payload.ActualCompletion
		}
		if payload.Version != nil {
			order.Version = *payload.Version
		}
		order.UpdatedAt = event.CreatedAt
	}
	return order, nil
}
