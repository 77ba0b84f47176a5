// Package intake implements the order-intake wizard: a finite step sequence
// that collects customer, intent, service type and service detail data and
// produces a single OrderIntake.
//
// A Wizard is not safe for concurrent use. Callers serialise actions per
// session.
package intake

import (
	"strings"
	"time"
)

type State string

const (
	StateCustomer          State = "customer"
	StateIntent            State = "intent"
	StateServiceTypeSelect State = "service_type_select"
	StateInquiryDetails    State = "inquiry_details"
	StateDetails           State = "details"
	StateSubmitted         State = "submitted"
	StateCancelled         State = "cancelled"
)

// Step returns the wizard step number shown to the operator. Terminal states
// report 0.
func (s State) Step() int {
	switch s {
	case StateCustomer:
		return 1
	case StateIntent:
		return 2
	case StateServiceTypeSelect, StateInquiryDetails:
		return 3
	case StateDetails:
		return 4
	}
	return 0
}

func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateCancelled
}

func (s State) valid() bool {
	return s.Step() > 0 || s.Terminal()
}

type Intent string

const (
	IntentService Intent = "service"
	IntentInquiry Intent = "inquiry"
)

type ServiceType string

const (
	ServiceTireSales  ServiceType = "tire_sales"
	ServiceCarService ServiceType = "car_service"
)

// Target is where ChooseIntent routed the session.
type Target string

const (
	TargetServiceTypeSelect Target = "service_type_select"
	TargetInquiryDetails    Target = "inquiry_details"
)

type CustomerDraft struct {
	CustomerID string `json:"customer_id,omitempty"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type VehicleDraft struct {
	PlateNumber string `json:"plate_number"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        string `json:"year,omitempty"`
	Color       string `json:"color,omitempty"`
	VehicleType string `json:"vehicle_type,omitempty"`
}

func (v VehicleDraft) blank() bool {
	return strings.TrimSpace(v.PlateNumber) == "" &&
		strings.TrimSpace(v.Make) == "" &&
		strings.TrimSpace(v.Model) == ""
}

// BusinessInfo is kept only for organisational customer types.
type BusinessInfo struct {
	BusinessName string `json:"business_name"`
	TaxNumber    string `json:"tax_number,omitempty"`
	IsOwner      bool   `json:"is_owner"`
}

const (
	CustomerTypeGovernment = "government"
	CustomerTypeNGO        = "ngo"
	CustomerTypePrivate    = "private"
	CustomerTypePersonal   = "personal"
	CustomerTypeBodaboda   = "bodaboda"
)

func organisational(customerType string) bool {
	switch customerType {
	case CustomerTypeGovernment, CustomerTypeNGO, CustomerTypePrivate:
		return true
	}
	return false
}

func validCustomerType(customerType string) bool {
	return organisational(customerType) ||
		customerType == CustomerTypePersonal ||
		customerType == CustomerTypeBodaboda
}

// OrderIntake is the finalized payload handed to the order-creation
// collaborator.
type OrderIntake struct {
	Customer     CustomerDraft  `json:"customer"`
	Vehicles     []VehicleDraft `json:"vehicles"`
	CustomerType string         `json:"customer_type,omitempty"`
	Business     *BusinessInfo  `json:"business,omitempty"`
	Intent       Intent         `json:"intent"`
	ServiceType  ServiceType    `json:"service_type,omitempty"`
	Detail       Detail         `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
}
