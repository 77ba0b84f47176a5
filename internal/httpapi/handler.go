package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abbakary/okpos/internal/apperr"
	"github.com/abbakary/okpos/internal/store"
	"github.com/abbakary/okpos/internal/workflow"
)

type Handler struct {
	store    store.Store
	engine   *workflow.Engine
	sessions *IntakeSessions
	opts     Options
	now      func() time.Time
}

type Options struct {
	IntakeRequireContact bool
	SessionTTL           time.Duration
	Now                  func() time.Time
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(s store.Store, engine *workflow.Engine, sessions *IntakeSessions, opts Options) *Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{store: s, engine: engine, sessions: sessions, opts: opts, now: now}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)

	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("GET /api/auth/me", h.handleMe)

	mux.HandleFunc("GET /api/customers", h.handleFindCustomers)
	mux.HandleFunc("GET /api/customers/{id}", h.handleCustomerDetails)
	mux.HandleFunc("GET /api/technicians", h.handleTechnicians)

	mux.HandleFunc("POST /api/intake/sessions", h.handleStartIntake)
	mux.HandleFunc("GET /api/intake/sessions/{id}", h.handleGetIntake)
	mux.HandleFunc("POST /api/intake/sessions/{id}/actions/{action}", h.handleIntakeAction)

	mux.HandleFunc("GET /api/orders", h.handleListOrders)
	mux.HandleFunc("GET /api/orders/export", h.handleExportOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.handleGetOrder)
	mux.HandleFunc("GET /api/orders/{id}/documents", h.handleOrderDocuments)
	mux.HandleFunc("GET /api/orders/{id}/events", h.handleOrderEvents)
	mux.HandleFunc("POST /api/orders/{id}/actions/update", h.handleUpdateOrder)
	mux.HandleFunc("GET /api/orders/{id}/attachments", h.handleListAttachments)
	mux.HandleFunc("POST /api/orders/{id}/attachments", h.handleAddAttachment)
	mux.HandleFunc("DELETE /api/orders/{id}/attachments/{attachment_id}", h.handleDeleteAttachment)

	mux.HandleFunc("GET /api/dashboard/stats", h.handleDashboardStats)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// decodeJSON reads a strict JSON body. An empty body is accepted when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}, optional bool) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// queryDate parses YYYY-MM-DD. ok is false when the value is present but
// malformed.
func queryDate(r *http.Request, key string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, true
	}
	value, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, false
	}
	return value, true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found", "order not found"
	case errors.Is(err, store.ErrCustomerNotFound):
		return http.StatusNotFound, "customer_not_found", "customer not found"
	case errors.Is(err, store.ErrAttachmentNotFound):
		return http.StatusNotFound, "attachment_not_found", "attachment not found"
	case errors.Is(err, store.ErrDraftNotFound):
		return http.StatusNotFound, "draft_not_found", "draft not found"
	case errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid email or password"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusUnauthorized, "unauthorized", "invalid session"
	case errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict, "version_conflict", "order was changed by someone else"
	case errors.Is(err, apperr.ErrPermission):
		return http.StatusForbidden, "access_denied", "access denied"
	}
	// Domain errors carry a safe, user-facing message.
	switch kind := apperr.Kind(err); kind {
	case "validation_error", "routing_error", "invalid_state":
		return apperr.HTTPStatus(err), kind, err.Error()
	case "persistence_error":
		logPersistence(err)
		return apperr.HTTPStatus(err), kind, "progress could not be saved, try again"
	case "timeout", "canceled":
		return apperr.HTTPStatus(err), kind, kind
	}
	return http.StatusInternalServerError, "internal_error", "internal server error"
}

func writeMappedError(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	status, code, msg := mapError(err)
	if requestID == "" {
		requestID = requestIDFromRequest(r)
	}
	if status == http.StatusInternalServerError {
		logError(r, err)
	}
	writeError(w, requestID, status, code, msg)
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
