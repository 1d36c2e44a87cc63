package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Referral rule statuses.
const (
	ReferralStatusActive   = "active"
	ReferralStatusDisabled = "disabled"
)

// ReferralRule configures the referral reward for one base currency.
// At most one rule exists per base currency.
type ReferralRule struct {
	ID             uuid.UUID       `json:"id"`
	BaseCurrency   string          `json:"base_currency"`
	RewardAmount   decimal.Decimal `json:"reward_amount"`
	RewardCurrency string          `json:"reward_currency"`
	MinTransaction decimal.Decimal `json:"min_transaction"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
