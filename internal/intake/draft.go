package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abbakary/okpos/internal/apperr"
)

const SnapshotSchemaVersion = 1

var ErrDraftNotFound = errors.New("draft not found")

// DraftStore persists serialized wizard snapshots under a caller-chosen key.
// LoadDraft returns ErrDraftNotFound for unknown keys.
type DraftStore interface {
	SaveDraft(ctx context.Context, key string, payload []byte) error
	LoadDraft(ctx context.Context, key string) ([]byte, error)
}

// Snapshot is the versioned serialized form of a wizard session.
type Snapshot struct {
	SchemaVersion int             `json:"schema_version"`
	State         State           `json:"state"`
	Step          int             `json:"step"`
	Customer      CustomerDraft   `json:"customer"`
	CustomerType  string          `json:"customer_type,omitempty"`
	Business      *BusinessInfo   `json:"business,omitempty"`
	Vehicles      []VehicleDraft  `json:"vehicles"`
	Intent        Intent          `json:"intent,omitempty"`
	ServiceType   ServiceType     `json:"service_type,omitempty"`
	Detail        json.RawMessage `json:"detail"`
	StartedAt     time.Time       `json:"started_at"`
	SavedAt       time.Time       `json:"saved_at"`
}

// DraftKey derives the storage key from the customer's phone, or from the
// current time when no phone has been entered yet.
func DraftKey(phone string, now time.Time) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Sprintf("customer-draft-%d", now.UnixMilli())
	}
	return "customer-draft-" + phone
}

func (w *Wizard) Snapshot() (Snapshot, error) {
	detail, err := MarshalDetail(w.detail)
	if err != nil {
		return Snapshot{}, err
	}
	s := Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		State:         w.state,
		Step:          w.state.Step(),
		Customer:      w.customer,
		CustomerType:  w.customerType,
		Vehicles:      w.Vehicles(),
		Intent:        w.intent,
		ServiceType:   w.serviceType,
		Detail:        detail,
		StartedAt:     w.startedAt,
		SavedAt:       w.opts.Now().UTC(),
	}
	if w.business != nil {
		b := *w.business
		s.Business = &b
	}
	return s, nil
}

// SaveProgress writes a snapshot to the store. It never changes the wizard
// state; a failed write is reported as a PersistenceError.
func (w *Wizard) SaveProgress(ctx context.Context, store DraftStore, key string) error {
	if err := w.requireActive(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return apperr.Validation("draft_key", "required")
	}
	snap, err := w.Snapshot()
	if err != nil {
		return apperr.Persistence("encode draft", err)
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return apperr.Persistence("encode draft", err)
	}
	if err := store.SaveDraft(ctx, key, payload); err != nil {
		return apperr.Persistence("save draft", err)
	}
	return nil
}

// Restore rebuilds a wizard from a snapshot. Snapshots written with another
// schema version are rejected.
func Restore(s Snapshot, opts Options) (*Wizard, error) {
	if s.SchemaVersion != SnapshotSchemaVersion {
		return nil, apperr.Validation("schema_version", fmt.Sprintf("unsupported draft schema version %d", s.SchemaVersion))
	}
	if !s.State.valid() || s.State.Terminal() {
		return nil, apperr.Validation("state", fmt.Sprintf("cannot resume from state %q", s.State))
	}
	detail, err := UnmarshalDetail(s.Detail)
	if err != nil {
		return nil, err
	}

	w := New(opts)
	w.state = s.State
	w.customer = s.Customer
	w.customerType = s.CustomerType
	if s.Business != nil {
		b := *s.Business
		w.business = &b
	}
	if len(s.Vehicles) > 0 {
		w.vehicles = append([]VehicleDraft(nil), s.Vehicles...)
	}
	w.intent = s.Intent
	w.serviceType = s.ServiceType
	w.detail = detail
	if !s.StartedAt.IsZero() {
		w.startedAt = s.StartedAt
	}
	if err := w.checkConsistent(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Wizard) checkConsistent() error {
	switch w.intent {
	case "":
		if w.state.Step() > 2 {
			return apperr.Validation("intent", "missing for a step past intent selection")
		}
	case IntentInquiry:
		if w.serviceType != "" {
			return apperr.Validation("service_type", "must be unset for an inquiry")
		}
		if w.state == StateServiceTypeSelect {
			return apperr.Validation("state", "inquiry cannot be on service type selection")
		}
	case IntentService:
		if w.state == StateInquiryDetails {
			return apperr.Validation("state", "service intent cannot be on inquiry details")
		}
		if w.state == StateDetails && w.serviceType == "" {
			return apperr.Validation("service_type", "required on the details step")
		}
	default:
		return apperr.Validation("intent", fmt.Sprintf("unknown intent %q", w.intent))
	}
	if w.serviceType != "" && w.serviceType != ServiceTireSales && w.serviceType != ServiceCarService {
		return apperr.Validation("service_type", fmt.Sprintf("unknown service type %q", w.serviceType))
	}
	if w.detail == nil {
		return nil
	}
	if w.intent == IntentService && w.serviceType == "" {
		return apperr.Validation("detail", "recorded without a service type")
	}
	want := DetailInquiry
	if w.intent == IntentService {
		want = detailKindFor(w.serviceType)
	}
	if w.detail.Kind() != want {
		return apperr.Validation("detail", fmt.Sprintf("detail kind %q does not match the session", w.detail.Kind()))
	}
	if car, ok := w.detail.(CarServiceDetail); ok && car.VehicleIndex != nil {
		if *car.VehicleIndex < 0 || *car.VehicleIndex >= len(w.vehicles) {
			return apperr.Validation("vehicle_index", "does not reference a vehicle")
		}
	}
	return nil
}

// Resume loads and restores the draft stored under key.
func Resume(ctx context.Context, store DraftStore, key string, opts Options) (*Wizard, error) {
	payload, err := store.LoadDraft(ctx, key)
	if errors.Is(err, ErrDraftNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, apperr.Persistence("load draft", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, apperr.Validation("draft", "malformed snapshot")
	}
	return Restore(snap, opts)
}
