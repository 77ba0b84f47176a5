package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/abbakary/okpos/internal/models"
	"github.com/abbakary/okpos/internal/store"
	"github.com/abbakary/okpos/internal/workflow"
)

type authContextKey struct{}

type authInfo struct {
	Session models.Session
	User    models.User
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string      `json:"session_id"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// AuthMiddleware resolves the caller's session. The role it carries is passed
// explicitly to every gated operation.
func AuthMiddleware(auth store.AuthStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, user, err := auth.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, authInfo{Session: session, User: user})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authFromContext(ctx context.Context) (authInfo, bool) {
	info, ok := ctx.Value(authContextKey{}).(authInfo)
	return info, ok
}

// actorRole is empty for unauthenticated requests, which gated operations
// treat as unknown.
func actorRole(r *http.Request) string {
	info, ok := authFromContext(r.Context())
	if !ok {
		return ""
	}
	return info.Session.Role
}

func actorID(r *http.Request) string {
	info, ok := authFromContext(r.Context())
	if !ok {
		return ""
	}
	return info.Session.UserID
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}
	session, user, err := h.store.Login(r.Context(), req.Email, req.Password, h.opts.SessionTTL)
	if err != nil {
		writeMappedError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{SessionID: session.SessionID, ExpiresAt: session.ExpiresAt, User: user})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	info, ok := authFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":                   info.User,
		"role":                   info.Session.Role,
		"expires_at":             info.Session.ExpiresAt,
		"can_manage_attachments": workflow.CanManageAttachments(info.Session.Role),
	})
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	case "/api/auth/login":
		return r.Method == http.MethodPost
	}
	if strings.HasPrefix(r.URL.Path, "/realtime/") {
		return true
	}
	return r.Method == http.MethodOptions
}
