package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/abbakary/okpos/internal/models"
	"github.com/abbakary/okpos/internal/store"
)

func (s *Store) Login(ctx context.Context, email, password string, ttl time.Duration) (models.Session, models.User, error) {
	var user models.User
	var passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT u.user_id, u.full_name, r.name, u.email, u.password_hash, u.created_at
		FROM users u
		JOIN roles r ON r.role_id = u.role_id
		WHERE lower(u.email) = lower($1) AND u.active = TRUE
	`, email)
	if err := row.Scan(&user.UserID, &user.FullName, &user.RoleName, &user.Email, &passwordHash, &user.Created); err != nil {
		if isNoRows(err) {
			return models.Session{}, models.User{}, store.ErrInvalidCredentials
		}
		return models.Session{}, models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return models.Session{}, models.User{}, store.ErrInvalidCredentials
	}

	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	session := models.Session{
		SessionID: uuid.NewString(),
		UserID:    user.UserID,
		Role:      user.RoleName,
		ExpiresAt: s.now().UTC().Add(ttl),
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, session.SessionID, session.UserID, session.ExpiresAt); err != nil {
		return models.Session{}, models.User{}, err
	}
	return session, user, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, models.User, error) {
	var session models.Session
	var user models.User
	row := s.pool.QueryRow(ctx, `
		SELECT s.session_id, s.user_id, s.expires_at,
		       u.full_name, r.name, u.email, u.created_at
		FROM sessions s
		JOIN users u ON u.user_id = s.user_id
		JOIN roles r ON r.role_id = u.role_id
		WHERE s.session_id = $1 AND s.expires_at > $2 AND u.active = TRUE
	`, sessionID, s.now().UTC())
	if err := row.Scan(&session.SessionID, &session.UserID, &session.ExpiresAt, &user.FullName, &user.RoleName, &user.Email, &user.Created); err != nil {
		if isNoRows(err) {
			return models.Session{}, models.User{}, store.ErrSessionNotFound
		}
		return models.Session{}, models.User{}, err
	}
	user.UserID = session.UserID
	session.Role = user.RoleName
	return session, user, nil
}

// HashPassword is used when seeding users.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
