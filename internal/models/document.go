package models

import "time"

type Document struct {
	DocumentID  string    `json:"document_id"`
	OrderID     string    `json:"order_id"`
	Kind        string    `json:"kind"`
	Number      string    `json:"number,omitempty"`
	Amount      *float64  `json:"amount,omitempty"`
	Status      string    `json:"status,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

const (
	DocumentJobCard = "job_card"
	DocumentInvoice = "invoice"
)

type Attachment struct {
	AttachmentID string    `json:"attachment_id"`
	OrderID      string    `json:"order_id"`
	FileName     string    `json:"file_name"`
	ContentType  string    `json:"content_type,omitempty"`
	URL          string    `json:"url"`
	UploadedBy   string    `json:"uploaded_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
