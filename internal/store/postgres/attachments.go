package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/abbakary/okpos/internal/models"
	"github.com/abbakary/okpos/internal/store"
)

func (s *Store) ListAttachments(ctx context.Context, orderID string) ([]models.Attachment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT attachment_id, order_id, file_name, content_type, url, uploaded_by, created_at
		FROM attachments
		WHERE order_id = $1
		ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := []models.Attachment{}
	for rows.Next() {
		var a models.Attachment
		var contentType, uploadedBy sql.NullString
		if err := rows.Scan(&a.AttachmentID, &a.OrderID, &a.FileName, &contentType, &a.URL, &uploadedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ContentType = nullString(contentType)
		a.UploadedBy = nullString(uploadedBy)
		a.CreatedAt = a.CreatedAt.UTC()
		attachments = append(attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachments, nil
}

func (s *Store) AddAttachment(ctx context.Context, a models.Attachment) (models.Attachment, error) {
	if a.AttachmentID == "" {
		a.AttachmentID = uuid.NewString()
	}
	a.CreatedAt = s.now().UTC()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO attachments (attachment_id, order_id, file_name, content_type, url, uploaded_by, created_at)
		SELECT $1, order_id, $3, $4, $5, $6, $7
		FROM orders
		WHERE order_id = $2
	`, a.AttachmentID, a.OrderID, a.FileName, nullIfEmpty(a.ContentType), a.URL, nullIfEmpty(a.UploadedBy), a.CreatedAt)
	if err != nil {
		return models.Attachment{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.Attachment{}, store.ErrOrderNotFound
	}
	return a, nil
}

func (s *Store) DeleteAttachment(ctx context.Context, orderID, attachmentID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM attachments
		WHERE order_id = $1 AND attachment_id = $2
	`, orderID, attachmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrAttachmentNotFound
	}
	return nil
}
