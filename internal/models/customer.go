package models

import "time"

type Customer struct {
	CustomerID   string     `json:"customer_id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Email        string     `json:"email,omitempty"`
	Address      string     `json:"address,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	CustomerType string     `json:"customer_type,omitempty"`
	BusinessName string     `json:"business_name,omitempty"`
	TaxNumber    string     `json:"tax_number,omitempty"`
	LastVisit    *time.Time `json:"last_visit,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Vehicle struct {
	VehicleID   string `json:"vehicle_id"`
	CustomerID  string `json:"customer_id"`
	PlateNumber string `json:"plate_number"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        string `json:"year,omitempty"`
	Color       string `json:"color,omitempty"`
	VehicleType string `json:"vehicle_type,omitempty"`
}

type Technician struct {
	TechnicianID string `json:"technician_id"`
	Name         string `json:"name"`
	Active       bool   `json:"active"`
}

// ServiceHistoryEntry is one completed or running order as shown on the
// customer details view.
type ServiceHistoryEntry struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Date        time.Time `json:"date"`
	OrderType   string    `json:"order_type"`
	Vehicle     string    `json:"vehicle,omitempty"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	JobCard     string    `json:"job_card,omitempty"`
}

type CustomerDetails struct {
	Customer Customer              `json:"customer"`
	Vehicles []Vehicle             `json:"vehicles"`
	History  []ServiceHistoryEntry `json:"history"`
	Invoices []Document            `json:"invoices"`
}

const (
	CustomerTypeGovernment = "government"
	CustomerTypeNGO        = "ngo"
	CustomerTypePrivate    = "private"
	CustomerTypePersonal   = "personal"
	CustomerTypeBodaboda   = "bodaboda"
)
