package intake

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abbakary/okpos/internal/apperr"
)

type DetailKind string

const (
	DetailTire    DetailKind = "tire"
	DetailCar     DetailKind = "car"
	DetailInquiry DetailKind = "inquiry"
)

// Detail is one of TireServiceDetail, CarServiceDetail or InquiryDetail.
type Detail interface {
	Kind() DetailKind
	isDetail()
}

type TireServiceDetail struct {
	TireSize     string  `json:"tire_size"`
	TireBrand    string  `json:"tire_brand"`
	Quantity     int     `json:"quantity"`
	TireType     string  `json:"tire_type,omitempty"`
	PricePerTire float64 `json:"price_per_tire"`
}

func (TireServiceDetail) Kind() DetailKind { return DetailTire }
func (TireServiceDetail) isDetail()        {}

// Total is quantity times unit price.
func (d TireServiceDetail) Total() float64 {
	return float64(d.Quantity) * d.PricePerTire
}

type CarServiceDetail struct {
	ServiceTypes       []string `json:"service_types"`
	VehicleIndex       *int     `json:"vehicle_index,omitempty"`
	ProblemDescription string   `json:"problem_description,omitempty"`
	EstimatedDuration  int      `json:"estimated_duration"`
	Priority           string   `json:"priority"`
}

func (CarServiceDetail) Kind() DetailKind { return DetailCar }
func (CarServiceDetail) isDetail()        {}

type InquiryDetail struct {
	InquiryType       string `json:"inquiry_type"`
	Questions         string `json:"questions,omitempty"`
	ContactPreference string `json:"contact_preference,omitempty"`
	FollowUpDate      string `json:"follow_up_date,omitempty"`
}

func (InquiryDetail) Kind() DetailKind { return DetailInquiry }
func (InquiryDetail) isDetail()        {}

const (
	MinEstimatedDuration = 30
	MaxEstimatedDuration = 480
)

var (
	carPriorities = []string{"low", "medium", "high", "urgent"}
	inquiryTypes  = []string{"pricing", "services", "appointment", "general"}
)

func newTireDetail() TireServiceDetail {
	return TireServiceDetail{Quantity: 1}
}

func newCarDetail() CarServiceDetail {
	return CarServiceDetail{EstimatedDuration: 60, Priority: "medium"}
}

func newInquiryDetail() InquiryDetail {
	return InquiryDetail{ContactPreference: "phone"}
}

func freshDetail(serviceType ServiceType) Detail {
	if serviceType == ServiceTireSales {
		return newTireDetail()
	}
	return newCarDetail()
}

func (d TireServiceDetail) validate() error {
	if strings.TrimSpace(d.TireSize) == "" {
		return apperr.Validation("tire_size", "required")
	}
	if strings.TrimSpace(d.TireBrand) == "" {
		return apperr.Validation("tire_brand", "required")
	}
	return d.validateAmounts()
}

func (d TireServiceDetail) validateAmounts() error {
	if d.Quantity < 1 {
		return apperr.Validation("quantity", "must be at least 1")
	}
	if d.PricePerTire < 0 {
		return apperr.Validation("price_per_tire", "must not be negative")
	}
	return nil
}

func (d CarServiceDetail) validate(vehicles []VehicleDraft) error {
	if len(d.ServiceTypes) == 0 {
		return apperr.Validation("service_types", "select at least one service")
	}
	if d.VehicleIndex == nil {
		return apperr.Validation("vehicle_index", "required")
	}
	if *d.VehicleIndex < 0 || *d.VehicleIndex >= len(vehicles) {
		return apperr.Validation("vehicle_index", "does not reference a vehicle")
	}
	if vehicles[*d.VehicleIndex].blank() {
		return apperr.Validation("vehicles", "selected vehicle has no plate number, make or model")
	}
	if d.EstimatedDuration < MinEstimatedDuration || d.EstimatedDuration > MaxEstimatedDuration {
		return apperr.Validation("estimated_duration", fmt.Sprintf("must be between %d and %d minutes", MinEstimatedDuration, MaxEstimatedDuration))
	}
	if !oneOf(d.Priority, carPriorities) {
		return apperr.Validation("priority", "must be one of low, medium, high, urgent")
	}
	return nil
}

func (d InquiryDetail) validate() error {
	if !oneOf(d.InquiryType, inquiryTypes) {
		return apperr.Validation("inquiry_type", "must be one of pricing, services, appointment, general")
	}
	if d.FollowUpDate != "" {
		if _, err := time.Parse(time.DateOnly, d.FollowUpDate); err != nil {
			return apperr.Validation("follow_up_date", "must be YYYY-MM-DD")
		}
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

type detailEnvelope struct {
	Kind    DetailKind         `json:"kind"`
	Tire    *TireServiceDetail `json:"tire,omitempty"`
	Car     *CarServiceDetail  `json:"car,omitempty"`
	Inquiry *InquiryDetail     `json:"inquiry,omitempty"`
}

// MarshalDetail encodes a detail with its kind tag. A nil detail encodes as
// JSON null.
func MarshalDetail(d Detail) (json.RawMessage, error) {
	if d == nil {
		return json.RawMessage("null"), nil
	}
	env := detailEnvelope{Kind: d.Kind()}
	switch v := d.(type) {
	case TireServiceDetail:
		env.Tire = &v
	case CarServiceDetail:
		env.Car = &v
	case InquiryDetail:
		env.Inquiry = &v
	}
	return json.Marshal(env)
}

func UnmarshalDetail(raw json.RawMessage) (Detail, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env detailEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	switch {
	case env.Kind == DetailTire && env.Tire != nil:
		return *env.Tire, nil
	case env.Kind == DetailCar && env.Car != nil:
		return *env.Car, nil
	case env.Kind == DetailInquiry && env.Inquiry != nil:
		return *env.Inquiry, nil
	}
	return nil, apperr.Validation("detail", fmt.Sprintf("unknown or empty detail kind %q", env.Kind))
}

func (o OrderIntake) MarshalJSON() ([]byte, error) {
	type plain OrderIntake
	detail, err := MarshalDetail(o.Detail)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Detail json.RawMessage `json:"detail"`
	}{plain(o), detail})
}

func (o *OrderIntake) UnmarshalJSON(data []byte) error {
	type plain OrderIntake
	aux := struct {
		*plain
		Detail json.RawMessage `json:"detail"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	detail, err := UnmarshalDetail(aux.Detail)
	if err != nil {
		return err
	}
	o.Detail = detail
	return nil
}
