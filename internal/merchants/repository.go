package merchants

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-remit/backend/internal/models"
)

// Repository handles merchant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a merchant repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const merchantColumns = `id, name, country, settlement_currency, contact_email, status, created_at, updated_at`

func scanMerchant(row pgx.Row) (*models.Merchant, error) {
	var m models.Merchant
	err := row.Scan(&m.ID, &m.Name, &m.Country, &m.SettlementCurrency, &m.ContactEmail, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a merchant.
func (r *Repository) Create(ctx context.Context, m *models.Merchant) error {
	const q = `INSERT INTO merchants (id, name, country, settlement_currency, contact_email, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, m.Name, m.Country, m.SettlementCurrency, m.ContactEmail, m.Status).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// GetByID returns a merchant by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	return scanMerchant(r.pool.QueryRow(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE id = $1`, id))
}

// List returns all merchants, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Merchant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+merchantColumns+` FROM merchants ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Merchant
	for rows.Next() {
		m, err := scanMerchant(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// Update replaces merchant fields.
func (r *Repository) Update(ctx context.Context, m *models.Merchant) error {
	const q = `UPDATE merchants SET name = $1, country = $2, settlement_currency = $3, contact_email = $4, status = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, m.Name, m.Country, m.SettlementCurrency, m.ContactEmail, m.Status, m.ID).Scan(&m.UpdatedAt)
}

// Delete removes a merchant.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM merchants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
