package postgres

import (
	"context"

	"github.com/abbakary/okpos/internal/store"
)

func (s *Store) SaveDraft(ctx context.Context, key string, payload []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO intake_drafts (draft_key, payload_json, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (draft_key) DO UPDATE
		SET payload_json = EXCLUDED.payload_json, updated_at = EXCLUDED.updated_at
	`, key, payload, s.now().UTC())
	return err
}

func (s *Store) LoadDraft(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	row := s.pool.QueryRow(ctx, `SELECT payload_json FROM intake_drafts WHERE draft_key = $1`, key)
	if err := row.Scan(&payload); err != nil {
		if isNoRows(err) {
			return nil, store.ErrDraftNotFound
		}
		return nil, err
	}
	return payload, nil
}
