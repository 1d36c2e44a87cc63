package models

import (
	"time"

	"github.com/google/uuid"
)

// Statement export statuses.
const (
	ExportStatusPending   = "pending"
	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"
)

// StatementExport tracks an async CSV export of a user's ledger history.
type StatementExport struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Status      string     `json:"status"`
	S3Key       string     `json:"s3_key,omitempty"`
	URL         string     `json:"url,omitempty"`
	RequestedBy string     `json:"requested_by"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
