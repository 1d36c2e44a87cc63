package bonusschemes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-remit/backend/internal/models"
)

// Award rejection codes surfaced to API callers as {error} strings.
const (
	RejectSchemeNotFound      = "SCHEME_NOT_FOUND"
	RejectSchemeExpired       = "SCHEME_EXPIRED"
	RejectSchemeInactive      = "SCHEME_INACTIVE"
	RejectAlreadyEarned       = "ALREADY_EARNED"
	RejectTierMismatch        = "TIER_MISMATCH"
	RejectTransactionRequired = "TRANSACTION_REQUIRED"
	RejectTransactionNotFound = "TRANSACTION_NOT_FOUND"
	RejectLoyaltyNotMet       = "LOYALTY_CRITERIA_NOT_MET"
	RejectBelowThreshold      = "BELOW_THRESHOLD"
	RejectSegmentNotEligible  = "SEGMENT_NOT_ELIGIBLE"
)

// creditExpiryDays is the fixed expiry applied to every awarded credit.
const creditExpiryDays = 90

// segmentInactivityDays is how long a user must go without a completed
// transfer to count as churned for scheme eligibility.
const segmentInactivityDays = 90

// RejectionError is a terminal award rejection.
type RejectionError struct {
	Code string
}

func (e *RejectionError) Error() string { return e.Code }

func reject(code string) error { return &RejectionError{Code: code} }

// SchemeStore loads scheme definitions.
type SchemeStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.BonusScheme, error)
}

// LedgerStore is the slice of the credit ledger the evaluator needs.
type LedgerStore interface {
	HasEarnedFromScheme(ctx context.Context, userID, schemeID uuid.UUID) (bool, error)
	Append(ctx context.Context, e *models.LedgerEntry) error
}

// TransactionStore resolves transaction amounts for percentage and tiered
// awards and counts completed transfers for loyalty and segment checks.
type TransactionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	CountCompletedByUser(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// Award is the outcome of a successful bonus award.
type Award struct {
	Entry     *models.LedgerEntry `json:"entry"`
	Amount    decimal.Decimal     `json:"amount"`
	Currency  string              `json:"currency"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// Evaluator decides bonus scheme awards and appends the resulting ledger entry.
type Evaluator struct {
	schemes SchemeStore
	ledger  LedgerStore
	txns    TransactionStore
	now     func() time.Time
}

// NewEvaluator creates a bonus scheme evaluator.
func NewEvaluator(schemes SchemeStore, ledger LedgerStore, txns TransactionStore) *Evaluator {
	return &Evaluator{schemes: schemes, ledger: ledger, txns: txns, now: time.Now}
}

var oneHundred = decimal.NewFromInt(100)

// AwardBonus checks scheme eligibility for the user, computes the credit
// amount, and appends one earned ledger entry. Tier misses are hard rejections;
// there is no default tier.
func (e *Evaluator) AwardBonus(ctx context.Context, userID, schemeID uuid.UUID, transactionID *uuid.UUID, adminUser string) (*Award, error) {
	s, err := e.schemes.GetByID(ctx, schemeID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, reject(RejectSchemeNotFound)
	}

	now := e.now()
	if now.After(s.EndDate) {
		return nil, reject(RejectSchemeExpired)
	}
	if s.Status != models.SchemeStatusActive {
		return nil, reject(RejectSchemeInactive)
	}
	if s.Eligibility.IsOneTimeOnly() {
		earned, err := e.ledger.HasEarnedFromScheme(ctx, userID, schemeID)
		if err != nil {
			return nil, err
		}
		if earned {
			return nil, reject(RejectAlreadyEarned)
		}
	}

	txn, referenceID, err := e.resolveTransaction(ctx, s, transactionID)
	if err != nil {
		return nil, err
	}
	if s.Kind == models.BonusKindLoyalty && s.MinTransactions > 0 {
		since := time.Time{}
		if s.PeriodDays > 0 {
			since = now.AddDate(0, 0, -s.PeriodDays)
		}
		n, err := e.txns.CountCompletedByUser(ctx, userID, since)
		if err != nil {
			return nil, err
		}
		if n < s.MinTransactions {
			return nil, reject(RejectLoyaltyNotMet)
		}
	}
	if txn != nil && s.MinTransaction.IsPositive() && txn.Amount.LessThan(s.MinTransaction) {
		return nil, reject(RejectBelowThreshold)
	}
	if err := e.checkSegment(ctx, userID, s.Eligibility.Segment, txn); err != nil {
		return nil, err
	}

	amount, err := e.computeAmount(s, txn)
	if err != nil {
		return nil, err
	}

	expiresAt := now.AddDate(0, 0, creditExpiryDays)
	admin := adminUser
	entry := &models.LedgerEntry{
		UserID:      userID,
		Amount:      amount,
		EventType:   models.LedgerEventEarned,
		SchemeID:    &s.ID,
		ReferenceID: referenceID,
		ExpiresAt:   &expiresAt,
	}
	if admin != "" {
		entry.AdminUser = &admin
	}
	if err := e.ledger.Append(ctx, entry); err != nil {
		return nil, err
	}

	return &Award{Entry: entry, Amount: amount, Currency: s.Currency, ExpiresAt: expiresAt}, nil
}

// resolveTransaction loads the qualifying transaction when the scheme's mode
// needs one. The returned reference id is the transaction id when present,
// else a scheme tag.
func (e *Evaluator) resolveTransaction(ctx context.Context, s *models.BonusScheme, transactionID *uuid.UUID) (*models.Transaction, string, error) {
	referenceID := "scheme:" + s.ID.String()

	needsTxn := s.IsTiered || s.CommissionMode == models.CommissionPercentage
	if !needsTxn {
		if transactionID != nil {
			referenceID = transactionID.String()
		}
		return nil, referenceID, nil
	}
	if transactionID == nil {
		return nil, "", reject(RejectTransactionRequired)
	}
	t, err := e.txns.GetByID(ctx, *transactionID)
	if err != nil || t == nil {
		return nil, "", reject(RejectTransactionNotFound)
	}
	return t, t.ID.String(), nil
}

// checkSegment verifies the user falls in the scheme's target population.
// "new" means no completed transfers besides the qualifying one; "churned"
// means prior history but nothing completed in the inactivity window. The
// qualifying transaction never counts against the user.
func (e *Evaluator) checkSegment(ctx context.Context, userID uuid.UUID, segment string, txn *models.Transaction) error {
	switch segment {
	case "", models.SegmentAll:
		return nil
	}

	exclude := 0
	if txn != nil && txn.Status == models.TransactionStatusCompleted {
		exclude = 1
	}
	total, err := e.txns.CountCompletedByUser(ctx, userID, time.Time{})
	if err != nil {
		return err
	}
	switch segment {
	case models.SegmentNew:
		if total-exclude > 0 {
			return reject(RejectSegmentNotEligible)
		}
	case models.SegmentChurned:
		recent, err := e.txns.CountCompletedByUser(ctx, userID, e.now().AddDate(0, 0, -segmentInactivityDays))
		if err != nil {
			return err
		}
		if total-exclude == 0 || recent-exclude > 0 {
			return reject(RejectSegmentNotEligible)
		}
	}
	return nil
}

// computeAmount computes the credit for a scheme. txn is nil for fixed-mode,
// non-tiered schemes.
func (e *Evaluator) computeAmount(s *models.BonusScheme, txn *models.Transaction) (decimal.Decimal, error) {
	if s.IsTiered {
		for _, tier := range s.Tiers {
			if tier.Contains(txn.Amount) {
				if s.CommissionMode == models.CommissionPercentage {
					return txn.Amount.Mul(tier.Value).Div(oneHundred), nil
				}
				return tier.Value, nil
			}
		}
		return decimal.Zero, reject(RejectTierMismatch)
	}

	if s.CommissionMode == models.CommissionPercentage {
		return txn.Amount.Mul(s.CommissionPercentage).Div(oneHundred), nil
	}
	return s.CreditAmount, nil
}
