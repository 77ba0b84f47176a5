package intake

import (
	"fmt"
	"strings"
	"time"

	"github.com/abbakary/okpos/internal/apperr"
	"github.com/abbakary/okpos/internal/models"
)

type Options struct {
	// RequireContact makes Next from the customer step validate name and phone.
	RequireContact bool
	Now            func() time.Time
}

type Wizard struct {
	opts Options

	state        State
	customer     CustomerDraft
	customerType string
	business     *BusinessInfo
	vehicles     []VehicleDraft
	intent       Intent
	serviceType  ServiceType
	detail       Detail
	startedAt    time.Time
}

func New(opts Options) *Wizard {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w := &Wizard{opts: opts}
	w.reset()
	return w
}

// NewForCustomer starts a wizard pre-filled with an existing customer.
func NewForCustomer(customer models.Customer, vehicles []models.Vehicle, opts Options) *Wizard {
	w := New(opts)
	w.fillFromCustomer(customer, vehicles)
	return w
}

func (w *Wizard) reset() {
	w.state = StateCustomer
	w.customer = CustomerDraft{}
	w.customerType = ""
	w.business = nil
	w.vehicles = []VehicleDraft{{}}
	w.intent = ""
	w.serviceType = ""
	w.detail = nil
	w.startedAt = w.opts.Now().UTC()
}

func (w *Wizard) State() State             { return w.state }
func (w *Wizard) Step() int                { return w.state.Step() }
func (w *Wizard) Intent() Intent           { return w.intent }
func (w *Wizard) ServiceType() ServiceType { return w.serviceType }
func (w *Wizard) Customer() CustomerDraft  { return w.customer }
func (w *Wizard) Detail() Detail           { return w.detail }

func (w *Wizard) Vehicles() []VehicleDraft {
	return append([]VehicleDraft(nil), w.vehicles...)
}

func (w *Wizard) requireActive() error {
	if w.state.Terminal() {
		return apperr.Routing(string(w.state), "session is closed")
	}
	return nil
}

func (w *Wizard) UpdateCustomer(c CustomerDraft) error {
	if err := w.requireActive(); err != nil {
		return err
	}
	// An edited draft keeps the link to the selected customer record.
	if c.CustomerID == "" {
		c.CustomerID = w.customer.CustomerID
	}
	w.customer = c
	return nil
}

func (w *Wizard) SelectExistingCustomer(customer models.Customer, vehicles []models.Vehicle) error {
	if err := w.requireActive(); err != nil {
		return err
	}
	w.fillFromCustomer(customer, vehicles)
	return nil
}

func (w *Wizard) fillFromCustomer(customer models.Customer, vehicles []models.Vehicle) {
	w.customer = CustomerDraft{
		CustomerID: customer.CustomerID,
		Name:       customer.Name,
		Phone:      customer.Phone,
		Email:      customer.Email,
		Address:    customer.Address,
		Notes:      customer.Notes,
	}
	if validCustomerType(customer.CustomerType) {
		w.customerType = customer.CustomerType
		w.business = nil
		if organisational(customer.CustomerType) && customer.BusinessName != "" {
			w.business = &BusinessInfo{BusinessName: customer.BusinessName, TaxNumber: customer.TaxNumber}
		}
	}
	if len(vehicles) == 0 {
		return
	}
	w.vehicles = make([]VehicleDraft, 0, len(vehicles))
	for _, v := range vehicles {
		w.vehicles = append(w.vehicles, VehicleDraft{
			PlateNumber: v.PlateNumber,
			Make:        v.Make,
			Model:       v.Model,
			Year:        v.Year,
			Color:       v.Color,
			VehicleType: v.VehicleType,
		})
	}
	if car, ok := w.detail.(CarServiceDetail); ok && car.VehicleIndex != nil && *car.VehicleIndex >= len(w.vehicles) {
		car.VehicleIndex = nil
		w.detail = car
	}
}

// ClearCustomer drops the selected or typed customer and their vehicles.
func (w *Wizard) ClearCustomer() error {
	if err := w.requireActive(); err != nil {
		return err
	}
	w.customer = CustomerDraft{}
	w.customerType = ""
	w.business = nil
	w.vehicles = []VehicleDraft{{}}
	if car, ok := w.detail.(CarServiceDetail); ok {
		car.VehicleIndex = nil
		w.detail = car
	}
	return nil
}

func (w *Wizard) SetCustomerType(customerType string, business *BusinessInfo) error {
	if err := w.requireActive(); err != nil {
		return err
	}
	if !validCustomerType(customerType) {
		return apperr.Validation("customer_type", "must be one of government, ngo, private, personal, bodaboda")
	}
	w.customerType = customerType
	w.business = nil
	if organisational(customerType) && business != nil {
		b := *business
		w.business = &b
	}
	return nil
}

func (w *Wizard) Next() error {
	switch w.state {
	case StateCustomer:
		if w.opts.RequireContact {
			if err := w.validateContact(); err != nil {
				return err
			}
		}
		w.state = StateIntent
		return nil

	case StateIntent:
		switch w.intent {
		case IntentService:
			w.state = StateServiceTypeSelect
		case IntentInquiry:
			w.enterInquiry()
		default:
			return apperr.Routing(string(w.state), "no intent recorded")
		}
		return nil

	case StateServiceTypeSelect:
		if w.serviceType == "" {
			return apperr.Routing(string(w.state), "service type not selected")
		}
		w.ensureServiceDetail()
		w.state = StateDetails
		return nil

	case StateInquiryDetails:
		w.enterInquiry()
		return nil

	case StateDetails:
		return apperr.Routing(string(w.state), "last step, submit instead")
	}
	return apperr.Routing(string(w.state), "session is closed")
}

// Prev steps back one screen. From the details step it returns to the
// step-3 screen matching the recorded intent.
func (w *Wizard) Prev() error {
	switch w.state {
	case StateCustomer:
		return apperr.Routing(string(w.state), "already at the first step")
	case StateIntent:
		w.state = StateCustomer
	case StateServiceTypeSelect, StateInquiryDetails:
		w.state = StateIntent
	case StateDetails:
		if w.intent == IntentInquiry {
			w.state = StateInquiryDetails
		} else {
			w.state = StateServiceTypeSelect
		}
	default:
		return apperr.Routing(string(w.state), "session is closed")
	}
	return nil
}

// ChooseIntent records the intent and routes the session. An inquiry skips
// service type selection and lands on the details step.
func (w *Wizard) ChooseIntent(intent Intent) (Target, error) {
	if w.state != StateIntent {
		return "", apperr.Routing(string(w.state), "intent is chosen on the intent step")
	}
	switch intent {
	case IntentService:
		if w.intent == IntentInquiry {
			w.detail = nil
		}
		w.intent = IntentService
		w.state = StateServiceTypeSelect
		return TargetServiceTypeSelect, nil

	case IntentInquiry:
		w.intent = IntentInquiry
		w.enterInquiry()
		return TargetInquiryDetails, nil
	}
	return "", apperr.Validation("intent", fmt.Sprintf("unknown intent %q", intent))
}

func (w *Wizard) enterInquiry() {
	w.serviceType = ""
	if _, ok := w.detail.(InquiryDetail); !ok {
		w.detail = newInquiryDetail()
	}
	w.state = StateDetails
}

func (w *Wizard) ensureServiceDetail() {
	if w.detail == nil || w.detail.Kind() != detailKindFor(w.serviceType) {
		w.detail = freshDetail(w.serviceType)
	}
}

func detailKindFor(serviceType ServiceType) DetailKind {
	if serviceType == ServiceTireSales {
		return DetailTire
	}
	return DetailCar
}

// ChooseServiceType selects the service type and moves to the details step.
// Switching type replaces the detail form so only one variant is held.
func (w *Wizard) ChooseServiceType(serviceType ServiceType) error {
	if w.intent != IntentService || (w.state != StateServiceTypeSelect && w.state != StateDetails) {
		return apperr.Routing(string(w.state), "service type requires intent service")
	}
	if serviceType != ServiceTireSales && serviceType != ServiceCarService {
		return apperr.Validation("service_type", fmt.Sprintf("unknown service type %q", serviceType))
	}
	w.serviceType = serviceType
	w.ensureServiceDetail()
	w.state = StateDetails
	return nil
}

func (w *Wizard) requireDetails(serviceType ServiceType, intent Intent) error {
	if w.state != StateDetails {
		return apperr.Routing(string(w.state), "detail form is on the details step")
	}
	if w.intent != intent || w.serviceType != serviceType {
		return apperr.Routing(string(w.state), fmt.Sprintf("detail form does not match intent %q and service type %q", w.intent, w.serviceType))
	}
	return nil
}

func (w *Wizard) SetTireDetail(d TireServiceDetail) error {
	if err := w.requireDetails(ServiceTireSales, IntentService); err != nil {
		return err
	}
	if err := d.validateAmounts(); err != nil {
		return err
	}
	w.detail = d
	return nil
}

func (w *Wizard) SetCarDetail(d CarServiceDetail) error {
	if err := w.requireDetails(ServiceCarService, IntentService); err != nil {
		return err
	}
	if d.VehicleIndex != nil {
		if *d.VehicleIndex < 0 || *d.VehicleIndex >= len(w.vehicles) {
			return apperr.Validation("vehicle_index", "does not reference a vehicle")
		}
		idx := *d.VehicleIndex
		d.VehicleIndex = &idx
	}
	d.ServiceTypes = append([]string(nil), d.ServiceTypes...)
	w.detail = d
	return nil
}

func (w *Wizard) SetInquiryDetail(d InquiryDetail) error {
	if err := w.requireDetails("", IntentInquiry); err != nil {
		return err
	}
	if d.ContactPreference == "" {
		d.ContactPreference = "phone"
	}
	w.detail = d
	return nil
}

// Cancel discards all draft state.
func (w *Wizard) Cancel() error {
	if w.state == StateSubmitted {
		return apperr.Routing(string(w.state), "session already submitted")
	}
	w.reset()
	w.state = StateCancelled
	return nil
}

func (w *Wizard) validateContact() error {
	if strings.TrimSpace(w.customer.Name) == "" {
		return apperr.Validation("name", "required")
	}
	if strings.TrimSpace(w.customer.Phone) == "" {
		return apperr.Validation("phone", "required")
	}
	return nil
}
