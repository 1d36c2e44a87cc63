package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Promo discount kinds.
const (
	PromoKindFixed      = "fixed"
	PromoKindPercentage = "percentage"
	PromoKindFeeWaiver  = "fee_waiver"
	PromoKindFxBoost    = "fx_boost"
)

// Promo lifecycle statuses.
const (
	PromoStatusActive   = "active"
	PromoStatusDisabled = "disabled"
)

// Unlimited marks a usage or budget cap as not enforced.
const Unlimited = -1

// Restrictions narrows where a promo code applies. An empty list means unrestricted.
type Restrictions struct {
	Corridors      []string `json:"corridors,omitempty"`       // "USD-PHP" source-dest pairs
	PaymentMethods []string `json:"payment_methods,omitempty"` // "card", "bank_transfer", ...
	Affiliates     []string `json:"affiliates,omitempty"`
}

// AllowsCorridor reports whether the source-dest pair is permitted.
func (r Restrictions) AllowsCorridor(source, dest string) bool {
	if len(r.Corridors) == 0 {
		return true
	}
	corridor := strings.ToUpper(source) + "-" + strings.ToUpper(dest)
	for _, c := range r.Corridors {
		if strings.ToUpper(c) == corridor {
			return true
		}
	}
	return false
}

// AllowsPaymentMethod reports whether the payment method is permitted.
func (r Restrictions) AllowsPaymentMethod(method string) bool {
	if len(r.PaymentMethods) == 0 {
		return true
	}
	for _, m := range r.PaymentMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// AllowsAffiliate reports whether the affiliate is permitted.
func (r Restrictions) AllowsAffiliate(affiliate string) bool {
	if len(r.Affiliates) == 0 {
		return true
	}
	for _, a := range r.Affiliates {
		if strings.EqualFold(a, affiliate) {
			return true
		}
	}
	return false
}

// Segment types for promo targeting.
const (
	SegmentAll     = "all"
	SegmentNew     = "new"
	SegmentChurned = "churned"
)

// Segment describes the user population a promo targets.
type Segment struct {
	Type                string `json:"type"`                            // all, new, churned
	MaxTransactionCount *int   `json:"max_transaction_count,omitempty"` // new: at most N prior transactions
	InactivityDays      *int   `json:"inactivity_days,omitempty"`       // churned: no transaction for N days
}

// PromoCode is a discount code for money transfers.
type PromoCode struct {
	ID                    uuid.UUID        `json:"id"`
	Code                  string           `json:"code"` // stored uppercase, matched case-insensitively
	Kind                  string           `json:"kind"`
	Value                 decimal.Decimal  `json:"value"`
	MinTransaction        decimal.Decimal  `json:"min_transaction"`
	MaxDiscount           *decimal.Decimal `json:"max_discount,omitempty"` // percentage kind only
	Currency              string           `json:"currency"`
	UsageLimit            int              `json:"usage_limit"`    // -1 = unlimited
	PerUserLimit          int              `json:"per_user_limit"` // -1 = unlimited
	UsageCount            int              `json:"usage_count"`
	TotalDiscountUtilized decimal.Decimal  `json:"total_discount_utilized"`
	BudgetLimit           decimal.Decimal  `json:"budget_limit"` // -1 = unlimited
	StartDate             time.Time        `json:"start_date"`
	EndDate               time.Time        `json:"end_date"` // exclusive
	Status                string           `json:"status"`
	Restrictions          Restrictions     `json:"restrictions"`
	Segment               Segment          `json:"segment"`
	LastCampaignSentAt    *time.Time       `json:"last_campaign_sent_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// BudgetUnlimited reports whether no budget cap is enforced.
func (p *PromoCode) BudgetUnlimited() bool {
	return p.BudgetLimit.IsNegative()
}

// WithinWindow reports whether now falls in [StartDate, EndDate).
func (p *PromoCode) WithinWindow(now time.Time) bool {
	return !now.Before(p.StartDate) && now.Before(p.EndDate)
}

// NormalizeCode uppercases and trims a promo code for case-insensitive matching.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
