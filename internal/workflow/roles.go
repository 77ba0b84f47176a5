package workflow

import (
	"context"

	"github.com/abbakary/okpos/internal/apperr"
	"github.com/abbakary/okpos/internal/models"
)

const CapabilityAttachments = "attachments"

// CanManageAttachments reports whether role may read or change order
// attachments. Unknown and empty roles are denied.
func CanManageAttachments(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleManager:
		return true
	}
	return false
}

type AttachmentStore interface {
	ListAttachments(ctx context.Context, orderID string) ([]models.Attachment, error)
	AddAttachment(ctx context.Context, attachment models.Attachment) (models.Attachment, error)
	DeleteAttachment(ctx context.Context, orderID, attachmentID string) error
}

// AttachmentManager is only handed out to roles that pass
// CanManageAttachments.
type AttachmentManager struct {
	store AttachmentStore
}

func (e *Engine) Attachments(actorRole string, store AttachmentStore) (*AttachmentManager, error) {
	if !CanManageAttachments(actorRole) {
		return nil, apperr.Permission(actorRole, CapabilityAttachments)
	}
	return &AttachmentManager{store: store}, nil
}

func (m *AttachmentManager) List(ctx context.Context, orderID string) ([]models.Attachment, error) {
	return m.store.ListAttachments(ctx, orderID)
}

func (m *AttachmentManager) Add(ctx context.Context, attachment models.Attachment) (models.Attachment, error) {
	if attachment.FileName == "" {
		return models.Attachment{}, apperr.Validation("file_name", "required")
	}
	if attachment.URL == "" {
		return models.Attachment{}, apperr.Validation("url", "required")
	}
	return m.store.AddAttachment(ctx, attachment)
}

func (m *AttachmentManager) Remove(ctx context.Context, orderID, attachmentID string) error {
	return m.store.DeleteAttachment(ctx, orderID, attachmentID)
}
