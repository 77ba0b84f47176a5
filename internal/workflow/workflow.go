// Package workflow validates and applies operator updates to an order and
// derives the side effects of a status change.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abbakary/okpos/internal/apperr"
	"github.com/abbakary/okpos/internal/models"
)

const (
	EventOrderUpdated        = "order.updated"
	EventStatusChanged       = "order.status_changed"
	EventTimeTrackingStarted = "order.time_tracking_started"
	EventOrderCompleted      = "order.completed"
	EventDocumentGenerated   = "order.document_generated"
)

// OrderUpdate is a proposed change. Nil fields keep the current value.
// Amounts are the raw operator input; final_amount is never accepted.
type OrderUpdate struct {
	Status         *string `json:"status,omitempty"`
	Priority       *string `json:"priority,omitempty"`
	AssignedTo     *string `json:"assigned_to,omitempty"`
	Description    *string `json:"description,omitempty"`
	TotalAmount    *string `json:"total_amount,omitempty"`
	DiscountAmount *string `json:"discount_amount,omitempty"`
	TaxAmount      *string `json:"tax_amount,omitempty"`

	Technical        *TechnicalUpdate      `json:"technical,omitempty"`
	TireInstallation *TireInstallation     `json:"tire_installation,omitempty"`
	FollowUp         *ConsultationFollowUp `json:"follow_up,omitempty"`
	ManagerNotes     string                `json:"manager_notes,omitempty"`
}

type TechnicalUpdate struct {
	WorkPerformed        string `json:"work_performed,omitempty"`
	PartsUsed            string `json:"parts_used,omitempty"`
	TechnicianNotes      string `json:"technician_notes,omitempty"`
	QualityCheckNotes    string `json:"quality_check_notes,omitempty"`
	CustomerFeedback     string `json:"customer_feedback,omitempty"`
	AdditionalWorkNeeded string `json:"additional_work_needed,omitempty"`
}

type TireInstallation struct {
	TiresInstalled    string `json:"tires_installed,omitempty"`
	InstallationNotes string `json:"installation_notes,omitempty"`
}

type ConsultationFollowUp struct {
	InformationProvided string `json:"information_provided,omitempty"`
	Action              string `json:"action,omitempty"`
}

var followUpActions = []string{"quote_sent", "appointment_scheduled", "no_action", "call_back"}

type Event struct {
	Type       string         `json:"type"`
	OrderID    string         `json:"order_id"`
	ActorRole  string         `json:"actor_role,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Result is the outcome of one ApplyUpdate call. Documents are handed to the
// persistence collaborator, which assigns their numbers.
type Result struct {
	Order     models.Order      `json:"order"`
	Documents []models.Document `json:"documents"`
	Events    []Event           `json:"events"`
	Notes     *Notes            `json:"notes,omitempty"`
	Coerced   []string          `json:"coerced,omitempty"`
}

// Notes carries the accepted order-type detail form and manager notes.
type Notes struct {
	Technical        *TechnicalUpdate      `json:"technical,omitempty"`
	TireInstallation *TireInstallation     `json:"tire_installation,omitempty"`
	FollowUp         *ConsultationFollowUp `json:"follow_up,omitempty"`
	ManagerNotes     string                `json:"manager_notes,omitempty"`
}

type Options struct {
	// StrictAmounts rejects malformed amounts instead of coercing them to 0.
	StrictAmounts bool
	Now           func() time.Time
	NewID         func() string
}

type Engine struct {
	strict bool
	now    func() time.Time
	newID  func() string
}

func NewEngine(opts Options) *Engine {
	e := &Engine{strict: opts.StrictAmounts, now: opts.Now, newID: opts.NewID}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// ApplyUpdate validates proposed against order and returns the updated order
// with the documents and events the change produces. The input order is not
// modified. Completion documents are edge-triggered: they are emitted only
// when the order moves into completed from another status.
func (e *Engine) ApplyUpdate(order models.Order, proposed OrderUpdate, actorRole string) (Result, error) {
	now := e.now().UTC()
	next := order
	from := order.Status

	to := from
	if proposed.Status != nil {
		to = strings.TrimSpace(*proposed.Status)
		if !models.IsKnownStatus(to) {
			return Result{}, apperr.Validation("status", fmt.Sprintf("unknown status %q", to))
		}
		if !ValidTransition(from, to) {
			return Result{}, apperr.Transition(from, to)
		}
	}

	if proposed.Priority != nil {
		priority, err := NormalizePriority(*proposed.Priority)
		if err != nil {
			return Result{}, err
		}
		next.Priority = priority
	}

	if proposed.AssignedTo != nil {
		if assigned := strings.TrimSpace(*proposed.AssignedTo); assigned == "" {
			next.AssignedTo = nil
		} else {
			next.AssignedTo = &assigned
		}
	}
	if proposed.Description != nil {
		next.Description = *proposed.Description
	}

	var coerced []string
	amounts := []struct {
		field string
		raw   *string
		dst   *float64
	}{
		{"total_amount", proposed.TotalAmount, &next.TotalAmount},
		{"discount_amount", proposed.DiscountAmount, &next.DiscountAmount},
		{"tax_amount", proposed.TaxAmount, &next.TaxAmount},
	}
	for _, a := range amounts {
		if a.raw == nil {
			continue
		}
		v, wasCoerced, err := parseAmount(a.field, *a.raw, e.strict)
		if err != nil {
			return Result{}, err
		}
		if wasCoerced {
			coerced = append(coerced, a.field)
		}
		*a.dst = v
	}
	next.FinalAmount = models.FinalAmount(next.TotalAmount, next.DiscountAmount, next.TaxAmount)

	notes, err := checkDetailForms(order.OrderType, proposed)
	if err != nil {
		return Result{}, err
	}

	next.Status = to
	next.UpdatedAt = now

	res := Result{Order: next, Notes: notes, Coerced: coerced, Documents: []models.Document{}}
	event := func(eventType string, data map[string]any) {
		res.Events = append(res.Events, Event{
			Type:       eventType,
			OrderID:    order.OrderID,
			ActorRole:  actorRole,
			OccurredAt: now,
			Data:       data,
		})
	}

	event(EventOrderUpdated, map[string]any{"final_amount": next.FinalAmount})

	if to != from {
		event(EventStatusChanged, map[string]any{"from": from, "to": to})
	}

	if to == models.StatusInProgress && from != models.StatusInProgress {
		started := now
		res.Order.StartedAt = &started
		event(EventTimeTrackingStarted, map[string]any{"started_at": now})
	}

	if to == models.StatusCompleted && from != models.StatusCompleted {
		completed := now
		res.Order.ActualCompletion = &completed
		amount := next.FinalAmount
		res.Documents = append(res.Documents,
			models.Document{
				DocumentID:  e.newID(),
				OrderID:     order.OrderID,
				Kind:        models.DocumentJobCard,
				Status:      "open",
				GeneratedAt: now,
			},
			models.Document{
				DocumentID:  e.newID(),
				OrderID:     order.OrderID,
				Kind:        models.DocumentInvoice,
				Amount:      &amount,
				Status:      "pending",
				GeneratedAt: now,
			},
		)
		event(EventOrderCompleted, map[string]any{"final_amount": amount, "actual_completion": now})
		for _, doc := range res.Documents {
			event(EventDocumentGenerated, map[string]any{"document_id": doc.DocumentID, "kind": doc.Kind})
		}
	}

	return res, nil
}

// NormalizePriority validates an order priority. "medium", used by the intake
// wizard, maps to "normal".
func NormalizePriority(priority string) (string, error) {
	switch p := strings.TrimSpace(priority); p {
	case models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent:
		return p, nil
	case "medium":
		return models.PriorityNormal, nil
	}
	return "", apperr.Validation("priority", fmt.Sprintf("unknown priority %q", priority))
}

// checkDetailForms rejects detail forms that belong to another order type.
func checkDetailForms(orderType string, u OrderUpdate) (*Notes, error) {
	if u.Technical != nil && orderType != models.OrderTypeService {
		return nil, apperr.Validation("technical", fmt.Sprintf("only accepted for service orders, order is %s", orderType))
	}
	if u.TireInstallation != nil && orderType != models.OrderTypeSales {
		return nil, apperr.Validation("tire_installation", fmt.Sprintf("only accepted for sales orders, order is %s", orderType))
	}
	if u.FollowUp != nil {
		if orderType != models.OrderTypeConsultation {
			return nil, apperr.Validation("follow_up", fmt.Sprintf("only accepted for consultation orders, order is %s", orderType))
		}
		if u.FollowUp.Action != "" && !contains(followUpActions, u.FollowUp.Action) {
			return nil, apperr.Validation("follow_up.action", fmt.Sprintf("unknown follow-up action %q", u.FollowUp.Action))
		}
	}
	if u.Technical == nil && u.TireInstallation == nil && u.FollowUp == nil && strings.TrimSpace(u.ManagerNotes) == "" {
		return nil, nil
	}
	return &Notes{
		Technical:        u.Technical,
		TireInstallation: u.TireInstallation,
		FollowUp:         u.FollowUp,
		ManagerNotes:     strings.TrimSpace(u.ManagerNotes),
	}, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
