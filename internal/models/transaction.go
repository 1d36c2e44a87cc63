package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction statuses.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusRefunded  = "refunded"
)

// Transaction is a money transfer processed through the platform.
type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	MerchantID     *uuid.UUID      `json:"merchant_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	SourceCurrency string          `json:"source_currency"`
	DestCurrency   string          `json:"dest_currency"`
	PaymentMethod  string          `json:"payment_method"`
	AffiliateID    *string         `json:"affiliate_id,omitempty"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Corridor returns the transfer route as "SRC-DST".
func (t *Transaction) Corridor() string {
	return t.SourceCurrency + "-" + t.DestCurrency
}
