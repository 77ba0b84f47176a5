package models

import "time"

type User struct {
	UserID   string    `json:"user_id"`
	FullName string    `json:"full_name"`
	RoleName string    `json:"role"`
	Email    string    `json:"email"`
	Created  time.Time `json:"created_at"`
}

type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleTechnician = "technician"
	RoleUser       = "user"
)
