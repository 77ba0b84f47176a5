package intake

import (
	"encoding/json"

	"github.com/abbakary/okpos/internal/apperr"
)

// Review is the summary shown on the details step.
type Review struct {
	State        State          `json:"state"`
	Step         int            `json:"step"`
	Customer     CustomerDraft  `json:"customer"`
	CustomerType string         `json:"customer_type,omitempty"`
	Business     *BusinessInfo  `json:"business,omitempty"`
	Vehicles     []VehicleDraft `json:"vehicles"`
	Intent       Intent         `json:"intent,omitempty"`
	ServiceType  ServiceType    `json:"service_type,omitempty"`
	Detail       Detail         `json:"-"`
	TireTotal    float64        `json:"tire_total"`
}

func (w *Wizard) Review() Review {
	r := Review{
		State:        w.state,
		Step:         w.state.Step(),
		Customer:     w.customer,
		CustomerType: w.customerType,
		Business:     w.business,
		Vehicles:     w.Vehicles(),
		Intent:       w.intent,
		ServiceType:  w.serviceType,
		Detail:       w.detail,
	}
	if tire, ok := w.detail.(TireServiceDetail); ok {
		r.TireTotal = tire.Total()
	}
	return r
}

func (r Review) MarshalJSON() ([]byte, error) {
	type plain Review
	detail, err := MarshalDetail(r.Detail)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Detail json.RawMessage `json:"detail"`
	}{plain(r), detail})
}

// Submit validates the accumulated draft and produces the intake. The draft
// is discarded on success; on failure the session stays on the details step.
func (w *Wizard) Submit() (OrderIntake, error) {
	if w.state != StateDetails {
		return OrderIntake{}, apperr.Routing(string(w.state), "submit is only allowed on the details step")
	}
	if err := w.validateContact(); err != nil {
		return OrderIntake{}, err
	}
	if w.detail == nil {
		return OrderIntake{}, apperr.Routing(string(w.state), "no detail form recorded")
	}

	intake := OrderIntake{
		Customer:     w.customer,
		CustomerType: w.customerType,
		Intent:       w.intent,
		CreatedAt:    w.opts.Now().UTC(),
	}
	if w.business != nil {
		b := *w.business
		intake.Business = &b
	}

	switch d := w.detail.(type) {
	case TireServiceDetail:
		if w.intent != IntentService || w.serviceType != ServiceTireSales {
			return OrderIntake{}, apperr.Routing(string(w.state), "tire detail without tire_sales service type")
		}
		if err := d.validate(); err != nil {
			return OrderIntake{}, err
		}
		intake.ServiceType = ServiceTireSales
		intake.Vehicles, _ = compactVehicles(w.vehicles, -1)
		intake.Detail = d

	case CarServiceDetail:
		if w.intent != IntentService || w.serviceType != ServiceCarService {
			return OrderIntake{}, apperr.Routing(string(w.state), "car detail without car_service service type")
		}
		if err := d.validate(w.vehicles); err != nil {
			return OrderIntake{}, err
		}
		vehicles, idx := compactVehicles(w.vehicles, *d.VehicleIndex)
		d.VehicleIndex = &idx
		d.ServiceTypes = append([]string(nil), d.ServiceTypes...)
		intake.ServiceType = ServiceCarService
		intake.Vehicles = vehicles
		intake.Detail = d

	case InquiryDetail:
		if w.intent != IntentInquiry {
			return OrderIntake{}, apperr.Routing(string(w.state), "inquiry detail without inquiry intent")
		}
		if err := d.validate(); err != nil {
			return OrderIntake{}, err
		}
		if d.ContactPreference == "" {
			d.ContactPreference = "phone"
		}
		intake.Vehicles, _ = compactVehicles(w.vehicles, -1)
		intake.Detail = d
	}

	w.reset()
	w.state = StateSubmitted
	return intake, nil
}

// compactVehicles drops blank vehicle entries and remaps selected to its
// position in the result.
func compactVehicles(vehicles []VehicleDraft, selected int) ([]VehicleDraft, int) {
	out := make([]VehicleDraft, 0, len(vehicles))
	mapped := -1
	for i, v := range vehicles {
		if v.blank() {
			continue
		}
		if i == selected {
			mapped = len(out)
		}
		out = append(out, v)
	}
	return out, mapped
}
