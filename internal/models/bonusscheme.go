package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bonus scheme kinds.
const (
	BonusKindLoyalty              = "loyalty"
	BonusKindTransactionThreshold = "transaction_threshold"
	BonusKindRequestMoney         = "request_money"
)

// Commission modes for bonus schemes.
const (
	CommissionFixed      = "fixed"
	CommissionPercentage = "percentage"
)

// Bonus scheme statuses.
const (
	SchemeStatusActive   = "active"
	SchemeStatusInactive = "inactive"
	SchemeStatusExpired  = "expired"
)

// BonusTier maps a transaction amount range to a commission value.
// Max nil means the range is open-ended.
type BonusTier struct {
	Min   decimal.Decimal  `json:"min"`
	Max   *decimal.Decimal `json:"max,omitempty"`
	Value decimal.Decimal  `json:"value"` // flat amount or percentage per CommissionMode
}

// Contains reports whether amount falls in [Min, Max] (Max nil = unbounded).
func (t BonusTier) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(t.Min) {
		return false
	}
	return t.Max == nil || amount.LessThanOrEqual(*t.Max)
}

// ErrTiersInvalid is returned when a tier list is unsorted, overlapping, or malformed.
var ErrTiersInvalid = errors.New("tiers must be sorted by min and non-overlapping")

// ValidateTiers checks that tiers are sorted by min and non-overlapping, so a
// transaction amount falls in at most one tier. Only the last tier may be open-ended.
func ValidateTiers(tiers []BonusTier) error {
	for i, t := range tiers {
		if t.Max != nil && t.Max.LessThan(t.Min) {
			return ErrTiersInvalid
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if prev.Max == nil {
			return ErrTiersInvalid // open-ended tier must be last
		}
		if !t.Min.GreaterThan(*prev.Max) {
			return ErrTiersInvalid
		}
	}
	return nil
}

// BonusEligibility holds the scheme's eligibility rule set.
type BonusEligibility struct {
	Segment     string `json:"segment,omitempty"` // all, new, churned; empty = all
	OneTimeOnly *bool  `json:"one_time_only,omitempty"`
}

// IsOneTimeOnly reports the one-time flag; unset defaults to true.
func (e BonusEligibility) IsOneTimeOnly() bool {
	return e.OneTimeOnly == nil || *e.OneTimeOnly
}

// BonusScheme is a credit-granting commission scheme.
type BonusScheme struct {
	ID                   uuid.UUID        `json:"id"`
	Name                 string           `json:"name"`
	Kind                 string           `json:"kind"`
	CreditAmount         decimal.Decimal  `json:"credit_amount"`
	Currency             string           `json:"currency"`
	MinTransaction       decimal.Decimal  `json:"min_transaction"`
	MinTransactions      int              `json:"min_transactions"` // loyalty
	PeriodDays           int              `json:"period_days"`      // loyalty
	CommissionMode       string           `json:"commission_mode"`
	CommissionPercentage decimal.Decimal  `json:"commission_percentage"` // percentage mode, non-tiered
	IsTiered             bool             `json:"is_tiered"`
	Tiers                []BonusTier      `json:"tiers,omitempty"`
	Eligibility          BonusEligibility `json:"eligibility"`
	StartDate            time.Time        `json:"start_date"`
	EndDate              time.Time        `json:"end_date"`
	Status               string           `json:"status"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}
