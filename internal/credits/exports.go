package credits

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridian-remit/backend/internal/models"
)

// CreateExport inserts a pending statement export request.
func (r *Repository) CreateExport(ctx context.Context, e *models.StatementExport) error {
	const q = `INSERT INTO statement_exports (id, user_id, status, requested_by)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, e.UserID, models.ExportStatusPending, e.RequestedBy).Scan(&e.ID, &e.CreatedAt)
}

// GetExport returns an export request by ID, or nil when absent.
func (r *Repository) GetExport(ctx context.Context, id uuid.UUID) (*models.StatementExport, error) {
	const q = `SELECT id, user_id, status, s3_key, url, requested_by, error, created_at, completed_at
		FROM statement_exports WHERE id = $1`
	var e models.StatementExport
	err := r.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.UserID, &e.Status, &e.S3Key, &e.URL,
		&e.RequestedBy, &e.Error, &e.CreatedAt, &e.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CompleteExport marks an export done with its S3 location.
func (r *Repository) CompleteExport(ctx context.Context, id uuid.UUID, s3Key, url string) error {
	const q = `UPDATE statement_exports SET status = $1, s3_key = $2, url = $3, completed_at = NOW() WHERE id = $4`
	_, err := r.pool.Exec(ctx, q, models.ExportStatusCompleted, s3Key, url, id)
	return err
}

// FailExport marks an export failed with a message.
func (r *Repository) FailExport(ctx context.Context, id uuid.UUID, msg string) error {
	const q = `UPDATE statement_exports SET status = $1, error = $2, completed_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.ExportStatusFailed, msg, id)
	return err
}
