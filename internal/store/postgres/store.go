package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abbakary/okpos/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

type Options struct {
	Now func() time.Time
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Store{pool: pool, now: now}
}

var _ store.Store = (*Store)(nil)
var _ store.OutboxStore = (*Store)(nil)

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func jsonBytes(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

func nullString(value sql.NullString) string {
	if !value.Valid {
		return ""
	}
	return value.String
}
