package bonusschemes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-remit/backend/internal/models"
)

// Repository handles bonus scheme persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a bonus scheme repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const schemeColumns = `id, name, kind, credit_amount, currency, min_transaction, min_transactions,
	period_days, commission_mode, commission_percentage, is_tiered, tiers, eligibility,
	start_date, end_date, status, created_at, updated_at`

func scanScheme(row pgx.Row) (*models.BonusScheme, error) {
	var s models.BonusScheme
	err := row.Scan(&s.ID, &s.Name, &s.Kind, &s.CreditAmount, &s.Currency, &s.MinTransaction, &s.MinTransactions,
		&s.PeriodDays, &s.CommissionMode, &s.CommissionPercentage, &s.IsTiered, &s.Tiers, &s.Eligibility,
		&s.StartDate, &s.EndDate, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new bonus scheme.
func (r *Repository) Create(ctx context.Context, s *models.BonusScheme) error {
	const q = `INSERT INTO bonus_schemes (id, name, kind, credit_amount, currency, min_transaction, min_transactions,
			period_days, commission_mode, commission_percentage, is_tiered, tiers, eligibility, start_date, end_date, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.Name, s.Kind, s.CreditAmount, s.Currency, s.MinTransaction, s.MinTransactions,
		s.PeriodDays, s.CommissionMode, s.CommissionPercentage, s.IsTiered, s.Tiers, s.Eligibility, s.StartDate, s.EndDate, s.Status).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a bonus scheme, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.BonusScheme, error) {
	s, err := scanScheme(r.pool.QueryRow(ctx, `SELECT `+schemeColumns+` FROM bonus_schemes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns all bonus schemes, newest first.
func (r *Repository) List(ctx context.Context) ([]models.BonusScheme, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+schemeColumns+` FROM bonus_schemes ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.BonusScheme
	for rows.Next() {
		s, err := scanScheme(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Update replaces a scheme's definition.
func (r *Repository) Update(ctx context.Context, s *models.BonusScheme) error {
	const q = `UPDATE bonus_schemes SET name = $1, kind = $2, credit_amount = $3, currency = $4,
			min_transaction = $5, min_transactions = $6, period_days = $7, commission_mode = $8,
			commission_percentage = $9, is_tiered = $10, tiers = $11, eligibility = $12,
			start_date = $13, end_date = $14, status = $15, updated_at = NOW()
		WHERE id = $16
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, s.Name, s.Kind, s.CreditAmount, s.Currency,
		s.MinTransaction, s.MinTransactions, s.PeriodDays, s.CommissionMode,
		s.CommissionPercentage, s.IsTiered, s.Tiers, s.Eligibility,
		s.StartDate, s.EndDate, s.Status, s.ID).Scan(&s.UpdatedAt)
}

// Delete removes a bonus scheme.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bonus_schemes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
