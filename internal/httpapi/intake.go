package httpapi

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abbakary/okpos/internal/intake"
	"github.com/abbakary/okpos/internal/models"
	"github.com/abbakary/okpos/internal/store"
	"github.com/abbakary/okpos/internal/telemetry"
)

// IntakeSessions holds the live wizards. A wizard is owned by one session and
// every action on it runs under that session's lock.
type IntakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*intakeSession
	ttl      time.Duration
	now      func() time.Time
}

type intakeSession struct {
	mu        sync.Mutex
	id        string
	owner     string
	wizard    *intake.Wizard
	lastSeen  time.Time
	draftKey  string
	requestID string
	pending   *intake.OrderIntake
	order     *models.Order
}

func NewIntakeSessions(ttl time.Duration, now func() time.Time) *IntakeSessions {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &IntakeSessions{sessions: make(map[string]*intakeSession), ttl: ttl, now: now}
}

func (s *IntakeSessions) create(owner string, wizard *intake.Wizard) *intakeSession {
	sess := &intakeSession{id: uuid.NewString(), owner: owner, wizard: wizard}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.lastSeen = s.now()
	s.sessions[sess.id] = sess
	intakeSessionsNow.Set(int64(len(s.sessions)))
	return sess
}

func (s *IntakeSessions) get(id, owner string) (*intakeSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.owner != owner {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess, true
}

func (s *IntakeSessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than the TTL.
func (s *IntakeSessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	intakeSessionsNow.Set(int64(len(s.sessions)))
	return removed
}

func (s *IntakeSessions) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				log.Printf("intake sweeper removed=%d", removed)
			}
		}
	}
}

type startIntakeRequest struct {
	CustomerID string `json:"customer_id"`
	DraftKey   string `json:"draft_key"`
}

type intakeView struct {
	SessionID    string        `json:"session_id"`
	Review       intake.Review `json:"review"`
	Target       intake.Target `json:"target,omitempty"`
	DraftKey     string        `json:"draft_key,omitempty"`
	VehicleIndex *int          `json:"vehicle_index,omitempty"`
	Order        *models.Order `json:"order,omitempty"`
}

func (sess *intakeSession) view() intakeView {
	return intakeView{SessionID: sess.id, Review: sess.wizard.Review(), DraftKey: sess.draftKey, Order: sess.order}
}

func (h *Handler) intakeOptions() intake.Options {
	return intake.Options{RequireContact: h.opts.IntakeRequireContact, Now: h.now}
}

func (h *Handler) handleStartIntake(w http.ResponseWriter, r *http.Request) {
	var req startIntakeRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.DraftKey = strings.TrimSpace(req.DraftKey)

	var wizard *intake.Wizard
	switch {
	case req.DraftKey != "":
		resumed, err := intake.Resume(r.Context(), h.store, req.DraftKey, h.intakeOptions())
		if err != nil {
			writeMappedError(w, r, "", err)
			return
		}
		wizard = resumed
	case req.CustomerID != "":
		customer, vehicles, err := h.store.GetCustomer(r.Context(), req.CustomerID)
		if err != nil {
			writeMappedError(w, r, "", err)
			return
		}
		wizard = intake.NewForCustomer(customer, vehicles, h.intakeOptions())
	default:
		wizard = intake.New(h.intakeOptions())
	}

	sess := h.sessions.create(actorID(r), wizard)
	sess.draftKey = req.DraftKey
	writeJSON(w, http.StatusCreated, sess.view())
}

func (h *Handler) handleGetIntake(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.get(r.PathValue("id"), actorID(r))
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusNotFound, "intake_not_found", "intake session not found")
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	writeJSON(w, http.StatusOK, sess.view())
}

type selectCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

type customerTypeRequest struct {
	CustomerType string               `json:"customer_type"`
	Business     *intake.BusinessInfo `json:"business"`
}

type intentRequest struct {
	Intent intake.Intent `json:"intent"`
}

type serviceTypeRequest struct {
	ServiceType intake.ServiceType `json:"service_type"`
}

type vehicleRequest struct {
	Index   int                 `json:"index"`
	Vehicle intake.VehicleDraft `json:"vehicle"`
}

type saveRequest struct {
	DraftKey string `json:"draft_key"`
}

type submitRequest struct {
	RequestID string `json:"request_id"`
}

func (h *Handler) handleIntakeAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.get(r.PathValue("id"), actorID(r))
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusNotFound, "intake_not_found", "intake session not found")
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	wizard := sess.wizard
	view := intakeView{}
	var err error

	switch action := r.PathValue("action"); action {
	case "customer":
		var req intake.CustomerDraft
		if !decodeJSON(w, r, &req, false) {
			return
		}
		err = wizard.UpdateCustomer(req)
	case "select-customer":
		var req selectCustomerRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		customer, vehicles, lookupErr := h.store.GetCustomer(r.Context(), strings.TrimSpace(req.CustomerID))
		if lookupErr != nil {
			writeMappedError(w, r, "", lookupErr)
			return
		}
		err = wizard.SelectExistingCustomer(customer, vehicles)
	case "clear-customer":
		err = wizard.ClearCustomer()
	case "customer-type":
		var req customerTypeRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		err = wizard.SetCustomerType(req.CustomerType, req.Business)
	case "next":
		err = wizard.Next()
	case "prev":
		err = wizard.Prev()
	case "intent":
		var req intentRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		view.Target, err = wizard.ChooseIntent(req.Intent)
	case "service-type":
		var req serviceTypeRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		err = wizard.ChooseServiceType(req.ServiceType)
	case "vehicle-add":
		var index int
		index, err = wizard.AddVehicle()
		view.VehicleIndex = &index
	case "vehicle-update":
		var req vehicleRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		err = wizard.UpdateVehicle(req.Index, req.Vehicle)
	case "vehicle-remove":
		var req vehicleRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		err = wizard.RemoveVehicle(req.Index)
	case "tire":
		var req intake.TireServiceDetail
		if !decodeJSON(w, r, &req, false) {
			return
		}
		err = wizard.SetTireDetail(req)
	case "car":
		var req intake.CarServiceDetail
		if !decodeJSON(w, r, &req, false) {
			return
		}
		err = wizard.SetCarDetail(req)
	case "inquiry":
		var req intake.InquiryDetail
		if !decodeJSON(w, r, &req, false) {
			return
		}
		err = wizard.SetInquiryDetail(req)
	case "save":
		var req saveRequest
		if !decodeJSON(w, r, &req, true) {
			return
		}
		key := strings.TrimSpace(req.DraftKey)
		if key == "" {
			key = sess.draftKey
		}
		if key == "" {
			key = intake.DraftKey(wizard.Customer().Phone, h.now())
		}
		if err = wizard.SaveProgress(r.Context(), h.store, key); err == nil {
			sess.draftKey = key
		}
	case "submit":
		var req submitRequest
		if !decodeJSON(w, r, &req, true) {
			return
		}
		err = h.submitIntake(r, sess, strings.TrimSpace(req.RequestID))
	case "cancel":
		err = wizard.Cancel()
	default:
		writeError(w, requestIDFromRequest(r), http.StatusNotFound, "unknown_action", "unknown intake action "+action)
		return
	}

	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	current := sess.view()
	current.Target = view.Target
	current.VehicleIndex = view.VehicleIndex
	writeJSON(w, http.StatusOK, current)
}

// submitIntake finalizes the wizard once and hands the intake to the order
// store. A failed store call keeps the finalized intake so the client can
// retry with the same request id.
func (h *Handler) submitIntake(r *http.Request, sess *intakeSession, requestID string) error {
	ctx, span := telemetry.Tracer().Start(r.Context(), "intake.submit")
	defer span.End()

	if sess.order != nil {
		return nil
	}
	if sess.pending == nil {
		finalized, err := sess.wizard.Submit()
		if err != nil {
			span.RecordError(err)
			return err
		}
		sess.pending = &finalized
		sess.requestID = uuid.NewString()
	}
	if requestID == "" || !isValidUUID(requestID) {
		requestID = sess.requestID
	}

	order, created, err := h.store.CreateOrderFromIntake(ctx, store.CreateOrderInput{
		RequestID: requestID,
		Intake:    *sess.pending,
		CreatedBy: actorID(r),
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if created {
		intakeSubmitted.Add(1)
	}
	sess.order = &order
	return nil
}
