package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: Validation("phone", "required"), want: "validation_error"},
		{name: "validation_wrapped", err: fmt.Errorf("submit: %w", Validation("name", "required")), want: "validation_error"},
		{name: "routing", err: Routing("intent", "no intent recorded"), want: "routing_error"},
		{name: "transition", err: Transition("completed", "in_progress"), want: "invalid_state"},
		{name: "permission", err: Permission("user", "attachments"), want: "access_denied"},
		{name: "persistence", err: Persistence("save draft", errors.New("disk full")), want: "persistence_error"},
		{name: "deadline", err: context.DeadlineExceeded, want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "unknown", err: errors.New("unknown"), want: "internal"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Kind(tt.err); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "validation", err: Validation("phone", "required"), want: http.StatusBadRequest},
		{name: "routing", err: Routing("details", "service type not set"), want: http.StatusConflict},
		{name: "transition", err: Transition("cancelled", "completed"), want: http.StatusConflict},
		{name: "permission", err: Permission("", "attachments"), want: http.StatusForbidden},
		{name: "persistence", err: Persistence("save draft", errors.New("timeout")), want: http.StatusServiceUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "unknown", err: errors.New("unknown"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestPersistenceErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("save draft", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence to be reachable")
	}
}

func TestPermissionErrorMessage(t *testing.T) {
	err := Permission("", "attachments")
	if got := err.Error(); got != "permission: role <none> cannot access attachments" {
		t.Fatalf("unexpected message: %s", got)
	}
}
