package models

import (
	"encoding/json"
	"time"
)

type Order struct {
	OrderID           string          `json:"order_id"`
	OrderNumber       string          `json:"order_number"`
	OrderType         string          `json:"order_type"`
	Status            string          `json:"status"`
	Priority          string          `json:"priority"`
	CustomerID        string          `json:"customer_id"`
	VehicleID         *string         `json:"vehicle_id,omitempty"`
	AssignedTo        *string         `json:"assigned_to,omitempty"`
	Description       string          `json:"description,omitempty"`
	TotalAmount       float64         `json:"total_amount"`
	DiscountAmount    float64         `json:"discount_amount"`
	TaxAmount         float64         `json:"tax_amount"`
	FinalAmount       float64         `json:"final_amount"`
	EstimatedDuration int             `json:"estimated_duration,omitempty"`
	Details           json.RawMessage `json:"details,omitempty"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	ActualCompletion  *time.Time      `json:"actual_completion,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

const (
	StatusCreated    = "created"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	OrderTypeService      = "service"
	OrderTypeSales        = "sales"
	OrderTypeConsultation = "consultation"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// FinalAmount is total minus discount plus tax. It is never clamped.
func FinalAmount(total, discount, tax float64) float64 {
	return total - discount + tax
}

func IsKnownStatus(status string) bool {
	switch status {
	case StatusCreated, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func IsKnownOrderType(orderType string) bool {
	switch orderType {
	case OrderTypeService, OrderTypeSales, OrderTypeConsultation:
		return true
	}
	return false
}
