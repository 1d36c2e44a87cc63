package referrals

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-remit/backend/internal/models"
)

// Repository handles referral rule persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a referral rule repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ruleColumns = `id, base_currency, reward_amount, reward_currency, min_transaction, status, created_at, updated_at`

func scanRule(row pgx.Row) (*models.ReferralRule, error) {
	var rr models.ReferralRule
	err := row.Scan(&rr.ID, &rr.BaseCurrency, &rr.RewardAmount, &rr.RewardCurrency, &rr.MinTransaction, &rr.Status, &rr.CreatedAt, &rr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rr, nil
}

// Create inserts a referral rule. The base currency is stored uppercase.
func (r *Repository) Create(ctx context.Context, rr *models.ReferralRule) error {
	rr.BaseCurrency = strings.ToUpper(rr.BaseCurrency)
	const q = `INSERT INTO referral_rules (id, base_currency, reward_amount, reward_currency, min_transaction, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, rr.BaseCurrency, rr.RewardAmount, rr.RewardCurrency, rr.MinTransaction, rr.Status).
		Scan(&rr.ID, &rr.CreatedAt, &rr.UpdatedAt)
}

// GetByID returns a referral rule by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReferralRule, error) {
	return scanRule(r.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM referral_rules WHERE id = $1`, id))
}

// GetByBaseCurrency returns the rule for a base currency, or nil when absent.
func (r *Repository) GetByBaseCurrency(ctx context.Context, currency string) (*models.ReferralRule, error) {
	rr, err := scanRule(r.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM referral_rules WHERE base_currency = $1`, strings.ToUpper(currency)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rr, nil
}

// List returns all referral rules ordered by base currency.
func (r *Repository) List(ctx context.Context) ([]models.ReferralRule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM referral_rules ORDER BY base_currency`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ReferralRule
	for rows.Next() {
		rr, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rr)
	}
	return list, rows.Err()
}

// Update replaces a rule's reward fields and status.
func (r *Repository) Update(ctx context.Context, rr *models.ReferralRule) error {
	const q = `UPDATE referral_rules SET reward_amount = $1, reward_currency = $2, min_transaction = $3, status = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, rr.RewardAmount, rr.RewardCurrency, rr.MinTransaction, rr.Status, rr.ID).Scan(&rr.UpdatedAt)
}

// Delete removes a referral rule.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM referral_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
