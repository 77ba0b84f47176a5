package store

import (
	"errors"

	"github.com/abbakary/okpos/internal/intake"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrVersionConflict    = errors.New("order version conflict")
	ErrEventChainBroken   = errors.New("order event chain broken")
	ErrDraftNotFound      = intake.ErrDraftNotFound
)
