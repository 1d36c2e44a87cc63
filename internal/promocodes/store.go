package promocodes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-remit/backend/internal/models"
)

// Store is the persistence surface the evaluator and recorder depend on.
// Implemented by Repository; tests use an in-memory fake.
type Store interface {
	// GetByCode returns the promo for a normalized code, or nil when absent.
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	// CountUserRedemptions returns how many times the user has redeemed the promo.
	CountUserRedemptions(ctx context.Context, promoID, userID uuid.UUID) (int, error)
	// Commit atomically re-checks the usage and budget caps, increments the
	// counters, and inserts a redemption record. Returns ErrUsageCapReached or
	// ErrBudgetCapReached when the conditional update matches no row.
	Commit(ctx context.Context, promoID, userID uuid.UUID, transactionID *uuid.UUID, discount decimal.Decimal) (*models.Redemption, error)
}

// Cap errors surfaced by Commit when the atomic re-check fails.
var (
	ErrUsageCapReached  = errors.New("usage cap reached")
	ErrBudgetCapReached = errors.New("budget cap reached")
)

// Repository handles promo code persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a promo code repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const promoColumns = `id, code, kind, value, min_transaction, max_discount, currency,
	usage_limit, per_user_limit, usage_count, total_discount_utilized, budget_limit,
	start_date, end_date, status, restrictions, segment, last_campaign_sent_at, created_at, updated_at`

func scanPromo(row pgx.Row) (*models.PromoCode, error) {
	var p models.PromoCode
	err := row.Scan(&p.ID, &p.Code, &p.Kind, &p.Value, &p.MinTransaction, &p.MaxDiscount, &p.Currency,
		&p.UsageLimit, &p.PerUserLimit, &p.UsageCount, &p.TotalDiscountUtilized, &p.BudgetLimit,
		&p.StartDate, &p.EndDate, &p.Status, &p.Restrictions, &p.Segment, &p.LastCampaignSentAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new promo code. The code must already be normalized.
func (r *Repository) Create(ctx context.Context, p *models.PromoCode) error {
	const q = `INSERT INTO promo_codes (id, code, kind, value, min_transaction, max_discount, currency,
			usage_limit, per_user_limit, budget_limit, start_date, end_date, status, restrictions, segment)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, usage_count, total_discount_utilized, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.Code, p.Kind, p.Value, p.MinTransaction, p.MaxDiscount, p.Currency,
		p.UsageLimit, p.PerUserLimit, p.BudgetLimit, p.StartDate, p.EndDate, p.Status, p.Restrictions, p.Segment).
		Scan(&p.ID, &p.UsageCount, &p.TotalDiscountUtilized, &p.CreatedAt, &p.UpdatedAt)
}

// GetByID returns a promo code by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	return scanPromo(r.pool.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE id = $1`, id))
}

// GetByCode returns a promo code by its normalized code, or nil when absent.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	p, err := scanPromo(r.pool.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, models.NormalizeCode(code)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns all promo codes, newest first.
func (r *Repository) List(ctx context.Context) ([]models.PromoCode, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// Update replaces the mutable definition fields of a promo code.
func (r *Repository) Update(ctx context.Context, p *models.PromoCode) error {
	const q = `UPDATE promo_codes SET kind = $1, value = $2, min_transaction = $3, max_discount = $4,
			currency = $5, usage_limit = $6, per_user_limit = $7, budget_limit = $8,
			start_date = $9, end_date = $10, restrictions = $11, segment = $12, updated_at = NOW()
		WHERE id = $13
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, p.Kind, p.Value, p.MinTransaction, p.MaxDiscount,
		p.Currency, p.UsageLimit, p.PerUserLimit, p.BudgetLimit,
		p.StartDate, p.EndDate, p.Restrictions, p.Segment, p.ID).Scan(&p.UpdatedAt)
}

// SetStatus toggles a promo code between active and disabled.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE promo_codes SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a promo code. Normal flow disables instead; this exists for
// admin cleanup of codes that were never live.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkCampaignSent stamps last_campaign_sent_at for a promo code.
func (r *Repository) MarkCampaignSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE promo_codes SET last_campaign_sent_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}

// CountUserRedemptions returns how many times a user has redeemed a promo.
func (r *Repository) CountUserRedemptions(ctx context.Context, promoID, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM promo_redemptions WHERE promo_code_id = $1 AND user_id = $2`, promoID, userID).Scan(&n)
	return n, err
}

// Commit performs the redemption as a single transaction: a conditional UPDATE
// that re-checks both caps while incrementing the counters, then one redemption
// insert. Two near-simultaneous redemptions of a nearly exhausted code cannot
// both pass, since the cap check and the increment are one statement.
func (r *Repository) Commit(ctx context.Context, promoID, userID uuid.UUID, transactionID *uuid.UUID, discount decimal.Decimal) (*models.Redemption, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const upd = `UPDATE promo_codes
		SET usage_count = usage_count + 1,
		    total_discount_utilized = total_discount_utilized + $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND (usage_limit < 0 OR usage_count < usage_limit)
		  AND (budget_limit < 0 OR total_discount_utilized + $2 <= budget_limit)
		RETURNING code`
	var code string
	if err := tx.QueryRow(ctx, upd, promoID, discount).Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.commitRejection(ctx, promoID)
		}
		return nil, err
	}

	red := &models.Redemption{
		PromoCodeID:    promoID,
		Code:           code,
		UserID:         userID,
		TransactionID:  transactionID,
		DiscountAmount: discount,
	}
	const ins = `INSERT INTO promo_redemptions (id, promo_code_id, code, user_id, transaction_id, discount_amount)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at`
	if err := tx.QueryRow(ctx, ins, red.PromoCodeID, red.Code, red.UserID, red.TransactionID, red.DiscountAmount).
		Scan(&red.ID, &red.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return red, nil
}

// commitRejection distinguishes which cap blocked the conditional update.
func (r *Repository) commitRejection(ctx context.Context, promoID uuid.UUID) error {
	p, err := r.GetByID(ctx, promoID)
	if err != nil {
		return err
	}
	if p.UsageLimit >= 0 && p.UsageCount >= p.UsageLimit {
		return ErrUsageCapReached
	}
	return ErrBudgetCapReached
}
