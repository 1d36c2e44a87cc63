package transactions

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-remit/backend/internal/models"
)

// ListFilter narrows a transaction listing.
type ListFilter struct {
	UserID     *uuid.UUID
	MerchantID *uuid.UUID
	Status     string
	Since      *time.Time
}

// Repository handles transaction persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a transaction repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const txnColumns = `id, user_id, merchant_id, amount, source_currency, dest_currency, payment_method, affiliate_id, status, created_at, updated_at`

func scanTxn(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.MerchantID, &t.Amount, &t.SourceCurrency, &t.DestCurrency,
		&t.PaymentMethod, &t.AffiliateID, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a transaction.
func (r *Repository) Create(ctx context.Context, t *models.Transaction) error {
	const q = `INSERT INTO transactions (id, user_id, merchant_id, amount, source_currency, dest_currency, payment_method, affiliate_id, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.UserID, t.MerchantID, t.Amount, t.SourceCurrency, t.DestCurrency,
		t.PaymentMethod, t.AffiliateID, t.Status).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID returns a transaction, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	t, err := scanTxn(r.pool.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns transactions matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Transaction, error) {
	q := `SELECT ` + txnColumns + ` FROM transactions WHERE 1=1`
	var args []interface{}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		q += ` AND user_id = $` + strconv.Itoa(len(args))
	}
	if f.MerchantID != nil {
		args = append(args, *f.MerchantID)
		q += ` AND merchant_id = $` + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		q += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// CountCompletedByUser returns the user's completed transaction count since a
// cutoff. Feeds loyalty and segment eligibility checks.
func (r *Repository) CountCompletedByUser(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND status = $2 AND created_at >= $3`,
		userID, models.TransactionStatusCompleted, since).Scan(&n)
	return n, err
}

// SetStatus updates a transaction's status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
