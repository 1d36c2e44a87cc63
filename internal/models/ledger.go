package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger entry event types.
const (
	LedgerEventEarned  = "earned"
	LedgerEventApplied = "applied"
	LedgerEventExpired = "expired"
	LedgerEventVoided  = "voided"
)

// Reason codes for manual adjustments.
const (
	ReasonGoodwill         = "goodwill"
	ReasonCorrection       = "correction"
	ReasonManualAdjustment = "manual_adjustment"
)

// ValidReasonCode reports whether code is an allowed manual-adjustment reason.
func ValidReasonCode(code string) bool {
	switch code {
	case ReasonGoodwill, ReasonCorrection, ReasonManualAdjustment:
		return true
	}
	return false
}

// LedgerEntry is one append-only credit event for a user. Positive amount is a
// credit (earn), negative a void/debit. Entries are never mutated or deleted; a
// user's balance is the signed sum of all their entries.
type LedgerEntry struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	EventType   string          `json:"event_type"`
	SchemeID    *uuid.UUID      `json:"scheme_id,omitempty"`
	ReferenceID string          `json:"reference_id"` // transaction id, promo code, or manual tag
	ReasonCode  *string         `json:"reason_code,omitempty"`
	Notes       *string         `json:"notes,omitempty"`
	AdminUser   *string         `json:"admin_user,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Redemption records one committed promo application. Redemptions are a
// separate read model from the credit ledger; the two are only joined for the
// cost-incurred aggregate.
type Redemption struct {
	ID             uuid.UUID       `json:"id"`
	PromoCodeID    uuid.UUID       `json:"promo_code_id"`
	Code           string          `json:"code"`
	UserID         uuid.UUID       `json:"user_id"`
	TransactionID  *uuid.UUID      `json:"transaction_id,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	CreatedAt      time.Time       `json:"created_at"`
}
