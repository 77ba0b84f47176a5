package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/abbakary/okpos/internal/store"
)

// ListOutboxEvents pages on seq. Events written by one transaction share
// created_at, so the timestamp cannot order them.
func (s *Store) ListOutboxEvents(ctx context.Context, afterSeq int64, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT seq, event_id, type, order_id, payload_json, created_at
		FROM outbox_events
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2
	`, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		var orderID sql.NullString
		var payload []byte
		if err := rows.Scan(&event.Seq, &event.EventID, &event.Type, &orderID, &payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.OrderID = nullString(orderID)
		event.Payload = payload
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) GetLastOffset(ctx context.Context, consumer string) (int64, error) {
	var seq int64
	row := s.pool.QueryRow(ctx, `
		SELECT last_seq
		FROM outbox_offsets
		WHERE consumer = $1
	`, consumer)
	if err := row.Scan(&seq); err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return seq, nil
}

func (s *Store) UpdateOffset(ctx context.Context, consumer string, seq int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outbox_offsets (consumer, last_seq)
		VALUES ($1, $2)
		ON CONFLICT (consumer) DO UPDATE SET last_seq = GREATEST(outbox_offsets.last_seq, EXCLUDED.last_seq)
	`, consumer, seq)
	return err
}

func (s *Store) InsertNotification(ctx context.Context, n store.Notification) (bool, error) {
	if n.NotificationID == "" {
		n.NotificationID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (notification_id, event_id, channel, recipient, body, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		ON CONFLICT (event_id, channel) DO NOTHING
	`, n.NotificationID, n.EventID, n.Channel, n.Recipient, n.Body, n.Status, n.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkNotificationSent(ctx context.Context, notificationID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'sent', attempts = attempts + 1, last_error = NULL
		WHERE notification_id = $1
	`, notificationID)
	return err
}

func (s *Store) MarkNotificationFailed(ctx context.Context, notificationID, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'failed', attempts = attempts + 1, last_error = $2
		WHERE notification_id = $1
	`, notificationID, lastError)
	return err
}
