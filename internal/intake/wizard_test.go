package intake

import (
	"errors"
	"testing"
	"time"

	"github.com/abbakary/okpos/internal/apperr"
	"github.com/abbakary/okpos/internal/models"
)

var fixedNow = time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)

func newTestWizard() *Wizard {
	return New(Options{Now: func() time.Time { return fixedNow }})
}

func intP(v int) *int { return &v }

// atDetails drives a fresh wizard to the details step for a service type.
func atDetails(t *testing.T, serviceType ServiceType) *Wizard {
	t.Helper()
	w := newTestWizard()
	if err := w.UpdateCustomer(CustomerDraft{Name: "Amina Juma", Phone: "+255712000111"}); err != nil {
		t.Fatalf("update customer: %v", err)
	}
	if err := w.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := w.ChooseIntent(IntentService); err != nil {
		t.Fatalf("choose intent: %v", err)
	}
	if err := w.ChooseServiceType(serviceType); err != nil {
		t.Fatalf("choose service type: %v", err)
	}
	return w
}

func TestNewWizardStartsWithOneVehicle(t *testing.T) {
	w := newTestWizard()
	if w.State() != StateCustomer || w.Step() != 1 {
		t.Fatalf("expected customer step, got %s (%d)", w.State(), w.Step())
	}
	if got := len(w.Vehicles()); got != 1 {
		t.Fatalf("expected one empty vehicle, got %d", got)
	}
}

func TestCustomerStepAdvancesWithoutContactByDefault(t *testing.T) {
	w := newTestWizard()
	if err := w.Next(); err != nil {
		t.Fatalf("expected advance, got %v", err)
	}
	if w.State() != StateIntent {
		t.Fatalf("expected intent step, got %s", w.State())
	}
}

func TestRequireContactBlocksAdvance(t *testing.T) {
	w := New(Options{RequireContact: true})
	err := w.Next()
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
	if w.State() != StateCustomer {
		t.Fatalf("state changed on failed advance: %s", w.State())
	}
	_ = w.UpdateCustomer(CustomerDraft{Name: "Amina"})
	if err := w.Next(); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected phone validation error, got %v", err)
	}
	_ = w.UpdateCustomer(CustomerDraft{Name: "Amina", Phone: "0712"})
	if err := w.Next(); err != nil {
		t.Fatalf("expected advance, got %v", err)
	}
}

func TestNextFromIntentWithoutChoiceIsRoutingError(t *testing.T) {
	w := newTestWizard()
	_ = w.Next()
	if err := w.Next(); !errors.Is(err, apperr.ErrRouting) {
		t.Fatalf("expected routing error, got %v", err)
	}
}

func TestInquiryNeverPassesServiceTypeSelection(t *testing.T) {
	w := newTestWizard()
	_ = w.Next()

	target, err := w.ChooseIntent(IntentInquiry)
	if err != nil {
		t.Fatalf("choose intent: %v", err)
	}
	if target != TargetInquiryDetails {
		t.Fatalf("expected inquiry target, got %s", target)
	}
	if w.State() != StateDetails {
		t.Fatalf("expected details step, got %s", w.State())
	}
	if w.ServiceType() != "" {
		t.Fatalf("service type must be unset for inquiry, got %s", w.ServiceType())
	}
	if _, ok := w.Detail().(InquiryDetail); !ok {
		t.Fatalf("expected inquiry detail, got %T", w.Detail())
	}
	if err := w.ChooseServiceType(ServiceTireSales); !errors.Is(err, apperr.ErrRouting) {
		t.Fatalf("expected routing error choosing service type on inquiry, got %v", err)
	}
}

func TestInquiryAfterServiceClearsServiceType(t *testing.T) {
	w := atDetails(t, ServiceTireSales)
	_ = w.Prev()
	_ = w.Prev()
	if w.State() != StateIntent {
		t.Fatalf("expected intent step, got %s", w.State())
	}
	if _, err := w.ChooseIntent(IntentInquiry); err != nil {
		t.Fatalf("choose intent: %v", err)
	}
	if w.ServiceType() != "" {
		t.Fatalf("expected service type cleared, got %s", w.ServiceType())
	}
	if w.Detail().Kind() != DetailInquiry {
		t.Fatalf("expected inquiry detail, got %s", w.Detail().Kind())
	}
}

func TestServiceRequiresServiceTypeBeforeDetails(t *testing.T) {
	w := newTestWizard()
	_ = w.Next()
	target, err := w.ChooseIntent(IntentService)
	if err != nil {
		t.Fatalf("choose intent: %v", err)
	}
	if target != TargetServiceTypeSelect || w.State() != StateServiceTypeSelect {
		t.Fatalf("expected service type selection, got %s / %s", target, w.State())
	}
	if err := w.Next(); !errors.Is(err, apperr.ErrRouting) {
		t.Fatalf("expected routing error, got %v", err)
	}
	if err := w.SetTireDetail(TireServiceDetail{Quantity: 1}); !errors.Is(err, apperr.ErrRouting) {
		t.Fatalf("expected routing error setting detail early, got %v", err)
	}
	if err := w.ChooseServiceType(ServiceCarService); err != nil {
		t.Fatalf("choose service type: %v", err)
	}
	if w.State() != StateDetails {
		t.Fatalf("expected details, got %s", w.State())
	}
}

func TestPrevFollowsRecordedIntent(t *testing.T) {
	cases := []struct {
		name   string
		intent Intent
		want   State
	}{
		{"service", IntentService, StateServiceTypeSelect},
		{"inquiry", IntentInquiry, StateInquiryDetails},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWizard()
			_ = w.Next()
			if _, err := w.ChooseIntent(tt.intent); err != nil {
				t.Fatalf("choose intent: %v", err)
			}
			if tt.intent == IntentService {
				_ = w.ChooseServiceType(ServiceTireSales)
			}
			if err := w.Prev(); err != nil {
				t.Fatalf("prev: %v", err)
			}
			if w.State() != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, w.State())
			}
			if err := w.Next(); err != nil {
				t.Fatalf("next back to details: %v", err)
			}
			if w.State() != StateDetails {
				t.Fatalf("expected details, got %s", w.State())
			}
		})
	}
}

func TestPrevAtFirstStep(t *testing.T) {
	w := newTestWizard()
	if err := w.Prev(); !errors.Is(err, apperr.ErrRouting) {
		t.Fatalf("expected routing error, got %v", err)
	}
}

func TestChangingServiceTypeReplacesDetail(t *testing.T) {
	w := atDetails(t, ServiceTireSales)
	if err := w.SetTireDetail(TireServiceDetail{TireSize: "195/65R15", TireBrand: "Michelin", Quantity: 2, PricePerTire: 1000}); err != nil {
		t.Fatalf("set tire: %v", err)
	}
	if err := w.ChooseServiceType(ServiceCarService); err != nil {
		t.Fatalf("switch: %v", err)
	}
	car, ok := w.Detail().(CarServiceDetail)
	if !ok {
		t.Fatalf("expected car detail, got %T", w.Detail())
	}
	if car.EstimatedDuration != 60 || car.Priority != "medium" {
		t.Fatalf("unexpected defaults: %+v", car)
	}
	if err := w.SetTireDetail(TireServiceDetail{Quantity: 1}); !errors.Is(err, apperr.ErrRouting) {
		t.Fatalf("expected routing error for mismatched detail, got %v", err)
	}
}

func TestTireDetailRejectsInvalidAmounts(t *testing.T) {
	w := atDetails(t, ServiceTireSales)
	if err := w.SetTireDetail(TireServiceDetail{Quantity: 0}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for quantity, got %v", err)
	}
	if err := w.SetTireDetail(TireServiceDetail{Quantity: 1, PricePerTire: -1}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for price, got %v", err)
	}
}

func TestVehicleListNeverDropsBelowOne(t *testing.T) {
	w := atDetails(t, ServiceCarService)
	for i := 0; i < 3; i++ {
		if _, err := w.AddVehicle(); err != nil {
			t.Fatalf("add vehicle: %v", err)
		}
	}
	for len(w.Vehicles()) > 1 {
		if err := w.RemoveVehicle(0); err != nil {
			t.Fatalf("remove vehicle: %v", err)
		}
	}
	err := w.RemoveVehicle(0)
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) || verr.Field != "vehicles" {
		t.Fatalf("expected vehicles validation error, got %v", err)
	}
	if got := len(w.Vehicles()); got != 1 {
		t.Fatalf("expected one vehicle, got %d", got)
	}
}

func TestVehicleOperationsOnlyForCarService(t *testing.T) {
	w := atDetails(t, ServiceTireSales)
	if _, err := w.AddVehicle(); !errors.Is(err, apperr.ErrRouting) {
		t.Fatalf("expected routing error, got %v", err)
	}
	if err := w.RemoveVehicle(0); !errors.Is(err, apperr.ErrRouting) {
		t.Fatalf("expected routing error, got %v", err)
	}

	early := newTestWizard()
	if _, err := early.AddVehicle(); !errors.Is(err, apperr.ErrRouting) {
		t.Fatalf("expected routing error on customer step, got %v", err)
	}
}

func TestRemoveVehicleKeepsReferenceConsistent(t *testing.T) {
	w := atDetails(t, ServiceCarService)
	_, _ = w.AddVehicle()
	_, _ = w.AddVehicle()
	_ = w.UpdateVehicle(2, VehicleDraft{PlateNumber: "T 123 ABC", Make: "Toyota", Model: "Hilux"})
	if err := w.SetCarDetail(CarServiceDetail{ServiceTypes: []string{"oil_change"}, VehicleIndex: intP(2), EstimatedDuration: 60, Priority: "high"}); err != nil {
		t.Fatalf("set car: %v", err)
	}

	if err := w.RemoveVehicle(0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	car := w.Detail().(CarServiceDetail)
	if car.VehicleIndex == nil || *car.VehicleIndex != 1 {
		t.Fatalf("expected index shifted to 1, got %v", car.VehicleIndex)
	}
	if w.Vehicles()[*car.VehicleIndex].PlateNumber != "T 123 ABC" {
		t.Fatalf("reference points to the wrong vehicle")
	}

	if err := w.RemoveVehicle(1); err != nil {
		t.Fatalf("remove selected: %v", err)
	}
	car = w.Detail().(CarServiceDetail)
	if car.VehicleIndex != nil {
		t.Fatalf("expected reference cleared, got %d", *car.VehicleIndex)
	}
}

func TestSetCarDetailRejectsDanglingVehicle(t *testing.T) {
	w := atDetails(t, ServiceCarService)
	err := w.SetCarDetail(CarServiceDetail{ServiceTypes: []string{"brakes"}, VehicleIndex: intP(3)})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReviewShowsTireTotal(t *testing.T) {
	w := atDetails(t, ServiceTireSales)
	if err := w.SetTireDetail(TireServiceDetail{TireSize: "265/70R16", TireBrand: "Bridgestone", Quantity: 4, PricePerTire: 50000}); err != nil {
		t.Fatalf("set tire: %v", err)
	}
	review := w.Review()
	if review.TireTotal != 200000 {
		t.Fatalf("expected total 200000, got %v", review.TireTotal)
	}
	if review.Step != 4 {
		t.Fatalf("expected step 4, got %d", review.Step)
	}
}

func TestSubmitTireSales(t *testing.T) {
	w := atDetails(t, ServiceTireSales)
	_ = w.SetTireDetail(TireServiceDetail{TireSize: "265/70R16", TireBrand: "Bridgestone", Quantity: 4, PricePerTire: 50000})

	intake, err := w.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if intake.Intent != IntentService || intake.ServiceType != ServiceTireSales {
		t.Fatalf("unexpected routing in intake: %s/%s", intake.Intent, intake.ServiceType)
	}
	tire, ok := intake.Detail.(TireServiceDetail)
	if !ok || tire.Total() != 200000 {
		t.Fatalf("unexpected detail: %#v", intake.Detail)
	}
	if len(intake.Vehicles) != 0 {
		t.Fatalf("blank vehicles must be dropped, got %d", len(intake.Vehicles))
	}
	if !intake.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected created at %v", intake.CreatedAt)
	}
	if w.State() != StateSubmitted {
		t.Fatalf("expected submitted, got %s", w.State())
	}
	if w.Customer().Name != "" {
		t.Fatalf("draft must be discarded after submit")
	}
	if err := w.Next(); !errors.Is(err, apperr.ErrRouting) {
		t.Fatalf("expected closed session, got %v", err)
	}
}

func TestSubmitCarServiceValidation(t *testing.T) {
	vehicle := VehicleDraft{PlateNumber: "T 456 DEF", Make: "Nissan", Model: "X-Trail"}
	cases := []struct {
		name    string
		vehicle VehicleDraft
		detail  CarServiceDetail
		field   string
	}{
		{"no services", vehicle, CarServiceDetail{VehicleIndex: intP(0), EstimatedDuration: 60, Priority: "low"}, "service_types"},
		{"no vehicle reference", vehicle, CarServiceDetail{ServiceTypes: []string{"brakes"}, EstimatedDuration: 60, Priority: "low"}, "vehicle_index"},
		{"blank vehicle", VehicleDraft{}, CarServiceDetail{ServiceTypes: []string{"brakes"}, VehicleIndex: intP(0), EstimatedDuration: 60, Priority: "low"}, "vehicles"},
		{"too short", vehicle, CarServiceDetail{ServiceTypes: []string{"brakes"}, VehicleIndex: intP(0), EstimatedDuration: 15, Priority: "low"}, "estimated_duration"},
		{"too long", vehicle, CarServiceDetail{ServiceTypes: []string{"brakes"}, VehicleIndex: intP(0), EstimatedDuration: 481, Priority: "low"}, "estimated_duration"},
		{"bad priority", vehicle, CarServiceDetail{ServiceTypes: []string{"brakes"}, VehicleIndex: intP(0), EstimatedDuration: 60, Priority: "normal"}, "priority"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			w := atDetails(t, ServiceCarService)
			_ = w.UpdateVehicle(0, tt.vehicle)
			if err := w.SetCarDetail(tt.detail); err != nil {
				t.Fatalf("set car: %v", err)
			}
			_, err := w.Submit()
			var verr *apperr.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
			if w.State() != StateDetails {
				t.Fatalf("failed submit must keep the details step, got %s", w.State())
			}
		})
	}
}

func TestSubmitCarServiceRemapsVehicleIndex(t *testing.T) {
	w := atDetails(t, ServiceCarService)
	_, _ = w.AddVehicle()
	_ = w.UpdateVehicle(1, VehicleDraft{PlateNumber: "T 789 GHI", Make: "Subaru", Model: "Forester"})
	_ = w.SetCarDetail(CarServiceDetail{ServiceTypes: []string{"diagnostics"}, VehicleIndex: intP(1), EstimatedDuration: 120, Priority: "urgent"})

	intake, err := w.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	car := intake.Detail.(CarServiceDetail)
	if len(intake.Vehicles) != 1 || *car.VehicleIndex != 0 {
		t.Fatalf("expected single vehicle at index 0, got %d vehicles index %d", len(intake.Vehicles), *car.VehicleIndex)
	}
}

func TestSubmitRequiresContact(t *testing.T) {
	w := newTestWizard()
	_ = w.Next()
	_, _ = w.ChooseIntent(IntentInquiry)
	_ = w.SetInquiryDetail(InquiryDetail{InquiryType: "pricing"})
	if _, err := w.Submit(); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitInquiry(t *testing.T) {
	w := newTestWizard()
	_ = w.UpdateCustomer(CustomerDraft{Name: "John Mushi", Phone: "0754000222"})
	_ = w.Next()
	_, _ = w.ChooseIntent(IntentInquiry)
	if err := w.SetInquiryDetail(InquiryDetail{InquiryType: "appointment", FollowUpDate: "2024-06-01"}); err != nil {
		t.Fatalf("set inquiry: %v", err)
	}
	intake, err := w.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	d := intake.Detail.(InquiryDetail)
	if d.ContactPreference != "phone" {
		t.Fatalf("expected default contact preference, got %q", d.ContactPreference)
	}
	if intake.ServiceType != "" {
		t.Fatalf("expected no service type, got %s", intake.ServiceType)
	}
}

func TestSubmitInquiryRejectsUnknownType(t *testing.T) {
	w := newTestWizard()
	_ = w.UpdateCustomer(CustomerDraft{Name: "John Mushi", Phone: "0754000222"})
	_ = w.Next()
	_, _ = w.ChooseIntent(IntentInquiry)
	if _, err := w.Submit(); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for empty inquiry type, got %v", err)
	}
}

func TestCancelDiscardsDraft(t *testing.T) {
	w := atDetails(t, ServiceCarService)
	if err := w.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if w.State() != StateCancelled {
		t.Fatalf("expected cancelled, got %s", w.State())
	}
	if w.Customer().Name != "" || w.Intent() != "" || w.Detail() != nil {
		t.Fatalf("draft not discarded")
	}
	if err := w.UpdateCustomer(CustomerDraft{Name: "x"}); !errors.Is(err, apperr.ErrRouting) {
		t.Fatalf("expected closed session, got %v", err)
	}
}

func TestSetCustomerTypeKeepsBusinessForOrganisations(t *testing.T) {
	w := newTestWizard()
	info := &BusinessInfo{BusinessName: "Ministry of Works", TaxNumber: "100-200-300"}
	if err := w.SetCustomerType(CustomerTypeGovernment, info); err != nil {
		t.Fatalf("set type: %v", err)
	}
	if w.Review().Business == nil {
		t.Fatalf("expected business info kept")
	}
	if err := w.SetCustomerType(CustomerTypeBodaboda, info); err != nil {
		t.Fatalf("set type: %v", err)
	}
	if w.Review().Business != nil {
		t.Fatalf("expected business info dropped for bodaboda")
	}
	if err := w.SetCustomerType("corporate", nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewForCustomerPrefillsVehicles(t *testing.T) {
	customer := models.Customer{CustomerID: "c-1", Name: "Halima", Phone: "0713", CustomerType: CustomerTypePersonal}
	vehicles := []models.Vehicle{{PlateNumber: "T 111 AAA", Make: "Toyota", Model: "IST"}, {PlateNumber: "T 222 BBB", Make: "Honda", Model: "Fit"}}
	w := NewForCustomer(customer, vehicles, Options{})
	if w.Customer().CustomerID != "c-1" {
		t.Fatalf("expected linked customer id")
	}
	if got := len(w.Vehicles()); got != 2 {
		t.Fatalf("expected 2 vehicles, got %d", got)
	}
	_ = w.UpdateCustomer(CustomerDraft{Name: "Halima A.", Phone: "0713"})
	if w.Customer().CustomerID != "c-1" {
		t.Fatalf("edit must keep the customer link")
	}
	_ = w.ClearCustomer()
	if w.Customer().CustomerID != "" || len(w.Vehicles()) != 1 {
		t.Fatalf("clear must reset customer and vehicles")
	}
}
