// Package apperr defines the error kinds shared by the intake wizard and the
// order workflow, and maps them to transport-level codes.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrRouting      = errors.New("invalid wizard routing")
	ErrPersistence  = errors.New("persistence failed")
	ErrPermission   = errors.New("permission denied")
	ErrInvalidState = errors.New("invalid order state")
)

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// RoutingError reports an action that is not reachable from the current wizard state.
type RoutingError struct {
	From   string
	Reason string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing: from %s: %s", e.From, e.Reason)
}

func (e *RoutingError) Unwrap() error { return ErrRouting }

func Routing(from, reason string) *RoutingError {
	return &RoutingError{From: from, Reason: reason}
}

// PersistenceError wraps a failed external write. The caller's in-memory state
// is untouched when one is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

func Persistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// PermissionError is returned before any mutation when the actor's role does
// not grant the capability.
type PermissionError struct {
	Role       string
	Capability string
}

func (e *PermissionError) Error() string {
	role := e.Role
	if role == "" {
		role = "<none>"
	}
	return fmt.Sprintf("permission: role %s cannot access %s", role, e.Capability)
}

func (e *PermissionError) Unwrap() error { return ErrPermission }

func Permission(role, capability string) *PermissionError {
	return &PermissionError{Role: role, Capability: capability}
}

// TransitionError reports an order status change the workflow does not allow.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition: %s -> %s not allowed", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidState }

func Transition(from, to string) *TransitionError {
	return &TransitionError{From: from, To: to}
}

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrValidation):
		return "validation_error"

	case errors.Is(err, ErrRouting):
		return "routing_error"

	case errors.Is(err, ErrInvalidState):
		return "invalid_state"

	case errors.Is(err, ErrPermission):
		return "access_denied"

	case errors.Is(err, ErrPersistence):
		return "persistence_error"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, ErrRouting), errors.Is(err, ErrInvalidState):
		return http.StatusConflict

	case errors.Is(err, ErrPermission):
		return http.StatusForbidden

	case errors.Is(err, ErrPersistence):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
