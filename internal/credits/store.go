package credits

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-remit/backend/internal/models"
)

// HistoryFilter narrows a ledger history query. Filters never affect the
// balance figure, only the returned history and cost_incurred.
type HistoryFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	EventType string
	SchemeID  *uuid.UUID
}

// Store is the ledger persistence surface the service depends on.
// Implemented by Repository; tests use an in-memory fake.
type Store interface {
	Append(ctx context.Context, e *models.LedgerEntry) error
	GetByReference(ctx context.Context, userID uuid.UUID, referenceID string) (*models.LedgerEntry, error)
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	History(ctx context.Context, userID uuid.UUID, f HistoryFilter) ([]models.LedgerEntry, error)
	EarnedInRange(ctx context.Context, userID uuid.UUID, f HistoryFilter) (decimal.Decimal, error)
	RedemptionCostInRange(ctx context.Context, userID uuid.UUID, f HistoryFilter) (decimal.Decimal, error)
}

// Repository handles credit ledger persistence. The ledger is append-only:
// there is no update or delete path.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a credit ledger repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ledgerColumns = `id, user_id, amount, event_type, scheme_id, reference_id, reason_code, notes, admin_user, expires_at, created_at`

func scanEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Amount, &e.EventType, &e.SchemeID, &e.ReferenceID,
		&e.ReasonCode, &e.Notes, &e.AdminUser, &e.ExpiresAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Append inserts one ledger entry.
func (r *Repository) Append(ctx context.Context, e *models.LedgerEntry) error {
	const q = `INSERT INTO credit_ledger (id, user_id, amount, event_type, scheme_id, reference_id, reason_code, notes, admin_user, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, e.UserID, e.Amount, e.EventType, e.SchemeID, e.ReferenceID,
		e.ReasonCode, e.Notes, e.AdminUser, e.ExpiresAt).Scan(&e.ID, &e.CreatedAt)
}

// GetByReference returns the user's entry with the given reference tag, or nil.
// Used for idempotent replay of manual adjustments.
func (r *Repository) GetByReference(ctx context.Context, userID uuid.UUID, referenceID string) (*models.LedgerEntry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM credit_ledger WHERE user_id = $1 AND reference_id = $2 ORDER BY created_at LIMIT 1`,
		userID, referenceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// HasEarnedFromScheme reports whether the user already has an earned entry for
// the scheme (the one-time-only check).
func (r *Repository) HasEarnedFromScheme(ctx context.Context, userID, schemeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM credit_ledger WHERE user_id = $1 AND scheme_id = $2 AND event_type = $3)`,
		userID, schemeID, models.LedgerEventEarned).Scan(&exists)
	return exists, err
}

// Balance returns the signed sum of all the user's entries.
func (r *Repository) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM credit_ledger WHERE user_id = $1`, userID).Scan(&balance)
	return balance, err
}

func (f HistoryFilter) conditions(args []interface{}) (string, []interface{}) {
	cond := ""
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		cond += ` AND created_at >= $` + itoa(len(args))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		cond += ` AND created_at <= $` + itoa(len(args))
	}
	return cond, args
}

func itoa(n int) string { return strconv.Itoa(n) }

// History returns the user's entries matching the filter, newest first.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, f HistoryFilter) ([]models.LedgerEntry, error) {
	args := []interface{}{userID}
	cond, args := f.conditions(args)
	if f.EventType != "" {
		args = append(args, f.EventType)
		cond += ` AND event_type = $` + itoa(len(args))
	}
	if f.SchemeID != nil {
		args = append(args, *f.SchemeID)
		cond += ` AND scheme_id = $` + itoa(len(args))
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM credit_ledger WHERE user_id = $1`+cond+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// EarnedInRange sums the user's earned entries inside the filter range.
func (r *Repository) EarnedInRange(ctx context.Context, userID uuid.UUID, f HistoryFilter) (decimal.Decimal, error) {
	args := []interface{}{userID}
	cond, args := f.conditions(args)
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM credit_ledger WHERE user_id = $1 AND event_type = 'earned'`+cond,
		args...).Scan(&sum)
	return sum, err
}

// RedemptionCostInRange sums the user's promo redemption discounts inside the
// filter range. Redemptions live in their own table; this is the only place
// the two read models are combined.
func (r *Repository) RedemptionCostInRange(ctx context.Context, userID uuid.UUID, f HistoryFilter) (decimal.Decimal, error) {
	args := []interface{}{userID}
	cond, args := f.conditions(args)
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(discount_amount), 0) FROM promo_redemptions WHERE user_id = $1`+cond,
		args...).Scan(&sum)
	return sum, err
}

// ExpireDueCredits appends a balancing expired entry for every earned entry
// whose expires_at has passed and which has not been offset yet. Entries are
// never mutated; expiry is itself an append. Idempotent via the expiry
// reference tag.
func (r *Repository) ExpireDueCredits(ctx context.Context, asOf time.Time) (int64, error) {
	const q = `INSERT INTO credit_ledger (id, user_id, amount, event_type, scheme_id, reference_id)
		SELECT gen_random_uuid(), e.user_id, -e.amount, 'expired', e.scheme_id, 'expiry:' || e.id
		FROM credit_ledger e
		WHERE e.event_type = 'earned'
		  AND e.expires_at IS NOT NULL
		  AND e.expires_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM credit_ledger x
			WHERE x.event_type = 'expired' AND x.reference_id = 'expiry:' || e.id
		  )`
	tag, err := r.pool.Exec(ctx, q, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
