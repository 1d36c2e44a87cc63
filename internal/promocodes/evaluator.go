package promocodes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-remit/backend/internal/models"
)

// Rejection codes surfaced to API callers as {error} strings.
const (
	RejectNotFound            = "PROMO_NOT_FOUND"
	RejectExpiredOrInactive   = "EXPIRED_OR_INACTIVE"
	RejectUsageCapReached     = "USAGE_CAP_REACHED"
	RejectBudgetCapReached    = "BUDGET_CAP_REACHED"
	RejectBelowThreshold      = "BELOW_THRESHOLD"
	RejectCorridorNotAllowed  = "CORRIDOR_NOT_ALLOWED"
	RejectMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	RejectAffiliateNotAllowed = "AFFILIATE_NOT_ALLOWED"
	RejectPerUserLimitReached = "PER_USER_LIMIT_REACHED"
	RejectSegmentNotEligible  = "SEGMENT_NOT_ELIGIBLE"
)

// defaultInactivityDays applies when a churned segment sets no explicit window.
const defaultInactivityDays = 90

// RejectionError is a terminal business-rule rejection. The code is the wire
// error string; no retry semantics attach to it.
type RejectionError struct {
	Code string
}

func (e *RejectionError) Error() string { return e.Code }

func reject(code string) error { return &RejectionError{Code: code} }

// TransactionContext is the proposed transfer a promo is evaluated against.
type TransactionContext struct {
	UserID         uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	SourceCurrency string
	DestCurrency   string
	PaymentMethod  string
	AffiliateID    string
}

// Result is an accepted evaluation. For fee_waiver and fx_boost kinds,
// DiscountAmount carries the promo value uninterpreted: the caller applies it
// to the fee or the exchange rate.
type Result struct {
	Promo          *models.PromoCode
	DiscountAmount decimal.Decimal
}

// TransactionStats counts completed transfers for segment targeting.
type TransactionStats interface {
	CountCompletedByUser(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// Evaluator decides promo applicability and computes the discount. It is
// read-only; committing the redemption is the recorder's job (Store.Commit).
type Evaluator struct {
	store Store
	txns  TransactionStats
	now   func() time.Time
}

// NewEvaluator creates a promo evaluator.
func NewEvaluator(store Store, txns TransactionStats) *Evaluator {
	return &Evaluator{store: store, txns: txns, now: time.Now}
}

var oneHundred = decimal.NewFromInt(100)

// Evaluate runs the eligibility checks in fixed order; the first failing check
// wins. On success it returns the promo and the computed discount without any
// side effects.
func (e *Evaluator) Evaluate(ctx context.Context, code string, tc TransactionContext) (*Result, error) {
	p, err := e.store.GetByCode(ctx, models.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, reject(RejectNotFound)
	}

	if p.Status != models.PromoStatusActive || !p.WithinWindow(e.now()) {
		return nil, reject(RejectExpiredOrInactive)
	}
	if p.UsageLimit != models.Unlimited && p.UsageCount >= p.UsageLimit {
		return nil, reject(RejectUsageCapReached)
	}
	if !p.BudgetUnlimited() && !p.TotalDiscountUtilized.LessThan(p.BudgetLimit) {
		return nil, reject(RejectBudgetCapReached)
	}
	if tc.Amount.LessThan(p.MinTransaction) {
		return nil, reject(RejectBelowThreshold)
	}
	if !p.Restrictions.AllowsCorridor(tc.SourceCurrency, tc.DestCurrency) {
		return nil, reject(RejectCorridorNotAllowed)
	}
	if !p.Restrictions.AllowsPaymentMethod(tc.PaymentMethod) {
		return nil, reject(RejectMethodNotAllowed)
	}
	if len(p.Restrictions.Affiliates) > 0 && !p.Restrictions.AllowsAffiliate(tc.AffiliateID) {
		return nil, reject(RejectAffiliateNotAllowed)
	}
	if p.PerUserLimit != models.Unlimited && tc.UserID != uuid.Nil {
		used, err := e.store.CountUserRedemptions(ctx, p.ID, tc.UserID)
		if err != nil {
			return nil, err
		}
		if used >= p.PerUserLimit {
			return nil, reject(RejectPerUserLimitReached)
		}
	}
	if err := e.checkSegment(ctx, p.Segment, tc.UserID); err != nil {
		return nil, err
	}

	return &Result{Promo: p, DiscountAmount: e.discount(p, tc.Amount)}, nil
}

// checkSegment verifies the user falls in the promo's target population. A
// targeted promo cannot be validated without a user: "new" admits users with
// at most max_transaction_count completed transfers, "churned" admits users
// with prior history but no completed transfer inside the inactivity window.
func (e *Evaluator) checkSegment(ctx context.Context, seg models.Segment, userID uuid.UUID) error {
	switch seg.Type {
	case "", models.SegmentAll:
		return nil
	}
	if userID == uuid.Nil {
		return reject(RejectSegmentNotEligible)
	}

	total, err := e.txns.CountCompletedByUser(ctx, userID, time.Time{})
	if err != nil {
		return err
	}
	switch seg.Type {
	case models.SegmentNew:
		limit := 0
		if seg.MaxTransactionCount != nil {
			limit = *seg.MaxTransactionCount
		}
		if total > limit {
			return reject(RejectSegmentNotEligible)
		}
	case models.SegmentChurned:
		days := defaultInactivityDays
		if seg.InactivityDays != nil {
			days = *seg.InactivityDays
		}
		recent, err := e.txns.CountCompletedByUser(ctx, userID, e.now().AddDate(0, 0, -days))
		if err != nil {
			return err
		}
		if total == 0 || recent > 0 {
			return reject(RejectSegmentNotEligible)
		}
	}
	return nil
}

// discount computes the discount for an accepted promo.
func (e *Evaluator) discount(p *models.PromoCode, amount decimal.Decimal) decimal.Decimal {
	switch p.Kind {
	case models.PromoKindPercentage:
		d := amount.Mul(p.Value).Div(oneHundred)
		if p.MaxDiscount != nil && d.GreaterThan(*p.MaxDiscount) {
			d = *p.MaxDiscount
		}
		return d
	default:
		// fixed is the discount itself; fee_waiver and fx_boost pass the raw
		// value through for the caller to apply.
		return p.Value
	}
}
