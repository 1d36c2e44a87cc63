package bonusschemes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-remit/backend/internal/models"
)

type fakeSchemeStore struct {
	schemes map[uuid.UUID]*models.BonusScheme
}

func (s *fakeSchemeStore) GetByID(_ context.Context, id uuid.UUID) (*models.BonusScheme, error) {
	return s.schemes[id], nil
}

type fakeLedger struct {
	entries []*models.LedgerEntry
}

func (l *fakeLedger) HasEarnedFromScheme(_ context.Context, userID, schemeID uuid.UUID) (bool, error) {
	for _, e := range l.entries {
		if e.UserID == userID && e.SchemeID != nil && *e.SchemeID == schemeID && e.EventType == models.LedgerEventEarned {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLedger) Append(_ context.Context, e *models.LedgerEntry) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	l.entries = append(l.entries, e)
	return nil
}

type fakeTxns struct {
	txns      map[uuid.UUID]*models.Transaction
	completed map[uuid.UUID][]time.Time // userID -> completion times
}

func (t *fakeTxns) GetByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	return t.txns[id], nil
}

func (t *fakeTxns) CountCompletedByUser(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	n := 0
	for _, at := range t.completed[userID] {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var awardNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }

func tieredScheme() *models.BonusScheme {
	max1 := dec("1000")
	max2 := dec("5000")
	return &models.BonusScheme{
		ID:             uuid.New(),
		Name:           "volume tiers",
		Kind:           models.BonusKindTransactionThreshold,
		Currency:       "USD",
		CommissionMode: models.CommissionFixed,
		IsTiered:       true,
		Tiers: []models.BonusTier{
			{Min: dec("0"), Max: &max1, Value: dec("50")},
			{Min: dec("1001"), Max: &max2, Value: dec("100")},
			{Min: dec("5001"), Value: dec("200")},
		},
		Eligibility: models.BonusEligibility{OneTimeOnly: boolPtr(false)},
		StartDate:   awardNow.AddDate(0, -1, 0),
		EndDate:     awardNow.AddDate(0, 6, 0),
		Status:      models.SchemeStatusActive,
	}
}

func fixture(schemes ...*models.BonusScheme) (*Evaluator, *fakeLedger, *fakeTxns) {
	ss := &fakeSchemeStore{schemes: make(map[uuid.UUID]*models.BonusScheme)}
	for _, s := range schemes {
		ss.schemes[s.ID] = s
	}
	ledger := &fakeLedger{}
	txns := &fakeTxns{
		txns:      make(map[uuid.UUID]*models.Transaction),
		completed: make(map[uuid.UUID][]time.Time),
	}
	e := NewEvaluator(ss, ledger, txns)
	e.now = func() time.Time { return awardNow }
	return e, ledger, txns
}

func addTxn(txns *fakeTxns, amount string) *models.Transaction {
	t := &models.Transaction{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Amount: dec(amount),
		Status: models.TransactionStatusCompleted,
	}
	txns.txns[t.ID] = t
	return t
}

func wantSchemeRejection(t *testing.T, err error, code string) {
	t.Helper()
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected rejection %s, got %v", code, err)
	}
	if rej.Code != code {
		t.Fatalf("expected rejection %s, got %s", code, rej.Code)
	}
}

func TestAwardBonusTierSelection(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"first tier", "500", "50"},
		{"first tier upper bound", "1000", "50"},
		{"second tier", "1500", "100"},
		{"open-ended tier", "500000", "200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheme := tieredScheme()
			e, _, txns := fixture(scheme)
			txn := addTxn(txns, tt.amount)

			award, err := e.AwardBonus(context.Background(), txn.UserID, scheme.ID, &txn.ID, "ops@example.com")
			if err != nil {
				t.Fatalf("expected award, got %v", err)
			}
			if !award.Amount.Equal(dec(tt.want)) {
				t.Fatalf("expected amount %s, got %s", tt.want, award.Amount)
			}
			if award.Entry.EventType != models.LedgerEventEarned {
				t.Fatalf("expected earned entry, got %s", award.Entry.EventType)
			}
			wantExpiry := awardNow.AddDate(0, 0, 90)
			if !award.ExpiresAt.Equal(wantExpiry) {
				t.Fatalf("expected expiry %s, got %s", wantExpiry, award.ExpiresAt)
			}
		})
	}
}

func TestAwardBonusTierMismatch(t *testing.T) {
	scheme := tieredScheme()
	// Gap between 1000 and 1001 exclusive of 1000.50.
	e, ledger, txns := fixture(scheme)
	txn := addTxn(txns, "1000.50")

	_, err := e.AwardBonus(context.Background(), txn.UserID, scheme.ID, &txn.ID, "")
	wantSchemeRejection(t, err, RejectTierMismatch)
	if len(ledger.entries) != 0 {
		t.Fatalf("expected no ledger entry on tier mismatch, got %d", len(ledger.entries))
	}
}

func TestAwardBonusTransactionRequired(t *testing.T) {
	scheme := tieredScheme()
	e, _, _ := fixture(scheme)

	_, err := e.AwardBonus(context.Background(), uuid.New(), scheme.ID, nil, "")
	wantSchemeRejection(t, err, RejectTransactionRequired)
}

func TestAwardBonusTransactionNotFound(t *testing.T) {
	scheme := tieredScheme()
	e, _, _ := fixture(scheme)
	missing := uuid.New()

	_, err := e.AwardBonus(context.Background(), uuid.New(), scheme.ID, &missing, "")
	wantSchemeRejection(t, err, RejectTransactionNotFound)
}

func TestAwardBonusOneTimeOnly(t *testing.T) {
	scheme := tieredScheme()
	scheme.Eligibility.OneTimeOnly = nil // defaults to one-time
	e, _, txns := fixture(scheme)
	txn := addTxn(txns, "500")

	if _, err := e.AwardBonus(context.Background(), txn.UserID, scheme.ID, &txn.ID, ""); err != nil {
		t.Fatalf("first award failed: %v", err)
	}
	txn2 := addTxn(txns, "700")
	txn2.UserID = txn.UserID
	_, err := e.AwardBonus(context.Background(), txn.UserID, scheme.ID, &txn2.ID, "")
	wantSchemeRejection(t, err, RejectAlreadyEarned)
}

func TestAwardBonusRepeatableScheme(t *testing.T) {
	scheme := tieredScheme() // OneTimeOnly false
	e, ledger, txns := fixture(scheme)
	txn := addTxn(txns, "500")

	for i := 0; i < 2; i++ {
		if _, err := e.AwardBonus(context.Background(), txn.UserID, scheme.ID, &txn.ID, ""); err != nil {
			t.Fatalf("award %d failed: %v", i+1, err)
		}
	}
	if len(ledger.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(ledger.entries))
	}
}

func TestAwardBonusSchemeStates(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *models.BonusScheme)
		want  string
	}{
		{"expired window", func(s *models.BonusScheme) { s.EndDate = awardNow.AddDate(0, 0, -1) }, RejectSchemeExpired},
		{"inactive", func(s *models.BonusScheme) { s.Status = models.SchemeStatusInactive }, RejectSchemeInactive},
		{"marked expired", func(s *models.BonusScheme) { s.Status = models.SchemeStatusExpired }, RejectSchemeInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheme := tieredScheme()
			tt.setup(scheme)
			e, _, txns := fixture(scheme)
			txn := addTxn(txns, "500")
			_, err := e.AwardBonus(context.Background(), txn.UserID, scheme.ID, &txn.ID, "")
			wantSchemeRejection(t, err, tt.want)
		})
	}
}

func TestAwardBonusSchemeNotFound(t *testing.T) {
	e, _, _ := fixture()
	_, err := e.AwardBonus(context.Background(), uuid.New(), uuid.New(), nil, "")
	wantSchemeRejection(t, err, RejectSchemeNotFound)
}

func TestAwardBonusFixedAndPercentage(t *testing.T) {
	t.Run("fixed without transaction", func(t *testing.T) {
		scheme := tieredScheme()
		scheme.IsTiered = false
		scheme.Tiers = nil
		scheme.CreditAmount = dec("25")
		e, _, _ := fixture(scheme)

		award, err := e.AwardBonus(context.Background(), uuid.New(), scheme.ID, nil, "")
		if err != nil {
			t.Fatalf("expected award, got %v", err)
		}
		if !award.Amount.Equal(dec("25")) {
			t.Fatalf("expected amount 25, got %s", award.Amount)
		}
	})

	t.Run("percentage of transaction", func(t *testing.T) {
		scheme := tieredScheme()
		scheme.IsTiered = false
		scheme.Tiers = nil
		scheme.CommissionMode = models.CommissionPercentage
		scheme.CommissionPercentage = dec("2")
		e, _, txns := fixture(scheme)
		txn := addTxn(txns, "1500")

		award, err := e.AwardBonus(context.Background(), txn.UserID, scheme.ID, &txn.ID, "")
		if err != nil {
			t.Fatalf("expected award, got %v", err)
		}
		if !award.Amount.Equal(dec("30")) {
			t.Fatalf("expected amount 30, got %s", award.Amount)
		}
		if award.Entry.ReferenceID != txn.ID.String() {
			t.Fatalf("expected reference %s, got %s", txn.ID, award.Entry.ReferenceID)
		}
	})
}

func loyaltyScheme() *models.BonusScheme {
	return &models.BonusScheme{
		ID:              uuid.New(),
		Name:            "frequent sender",
		Kind:            models.BonusKindLoyalty,
		CreditAmount:    dec("10"),
		Currency:        "USD",
		MinTransactions: 3,
		PeriodDays:      30,
		CommissionMode:  models.CommissionFixed,
		Eligibility:     models.BonusEligibility{OneTimeOnly: boolPtr(false)},
		StartDate:       awardNow.AddDate(0, -1, 0),
		EndDate:         awardNow.AddDate(0, 6, 0),
		Status:          models.SchemeStatusActive,
	}
}

func TestAwardBonusLoyaltyCount(t *testing.T) {
	t.Run("enough completed transfers in window", func(t *testing.T) {
		scheme := loyaltyScheme()
		e, ledger, txns := fixture(scheme)
		userID := uuid.New()
		txns.completed[userID] = []time.Time{
			awardNow.AddDate(0, 0, -5),
			awardNow.AddDate(0, 0, -12),
			awardNow.AddDate(0, 0, -20),
		}

		award, err := e.AwardBonus(context.Background(), userID, scheme.ID, nil, "")
		if err != nil {
			t.Fatalf("expected award, got %v", err)
		}
		if !award.Amount.Equal(dec("10")) {
			t.Fatalf("expected amount 10, got %s", award.Amount)
		}
		if len(ledger.entries) != 1 {
			t.Fatalf("expected 1 ledger entry, got %d", len(ledger.entries))
		}
	})

	t.Run("too few transfers", func(t *testing.T) {
		scheme := loyaltyScheme()
		e, ledger, txns := fixture(scheme)
		userID := uuid.New()
		txns.completed[userID] = []time.Time{
			awardNow.AddDate(0, 0, -5),
			awardNow.AddDate(0, 0, -12),
		}

		_, err := e.AwardBonus(context.Background(), userID, scheme.ID, nil, "")
		wantSchemeRejection(t, err, RejectLoyaltyNotMet)
		if len(ledger.entries) != 0 {
			t.Fatalf("expected no ledger entries, got %d", len(ledger.entries))
		}
	})

	t.Run("transfers outside the period do not count", func(t *testing.T) {
		scheme := loyaltyScheme()
		e, _, txns := fixture(scheme)
		userID := uuid.New()
		txns.completed[userID] = []time.Time{
			awardNow.AddDate(0, 0, -40),
			awardNow.AddDate(0, 0, -50),
			awardNow.AddDate(0, 0, -60),
		}

		_, err := e.AwardBonus(context.Background(), userID, scheme.ID, nil, "")
		wantSchemeRejection(t, err, RejectLoyaltyNotMet)
	})
}

func TestAwardBonusMinTransactionAmount(t *testing.T) {
	scheme := tieredScheme()
	scheme.IsTiered = false
	scheme.Tiers = nil
	scheme.CommissionMode = models.CommissionPercentage
	scheme.CommissionPercentage = dec("2")
	scheme.MinTransaction = dec("100")
	e, _, txns := fixture(scheme)

	small := addTxn(txns, "50")
	_, err := e.AwardBonus(context.Background(), small.UserID, scheme.ID, &small.ID, "")
	wantSchemeRejection(t, err, RejectBelowThreshold)

	big := addTxn(txns, "100")
	award, err := e.AwardBonus(context.Background(), big.UserID, scheme.ID, &big.ID, "")
	if err != nil {
		t.Fatalf("expected award, got %v", err)
	}
	if !award.Amount.Equal(dec("2")) {
		t.Fatalf("expected amount 2, got %s", award.Amount)
	}
}

func TestAwardBonusSegmentEligibility(t *testing.T) {
	t.Run("new segment excludes the qualifying transfer", func(t *testing.T) {
		scheme := tieredScheme()
		scheme.IsTiered = false
		scheme.Tiers = nil
		scheme.CommissionMode = models.CommissionPercentage
		scheme.CommissionPercentage = dec("2")
		scheme.Eligibility = models.BonusEligibility{Segment: models.SegmentNew, OneTimeOnly: boolPtr(false)}
		e, _, txns := fixture(scheme)

		txn := addTxn(txns, "500")
		txns.completed[txn.UserID] = []time.Time{awardNow}

		if _, err := e.AwardBonus(context.Background(), txn.UserID, scheme.ID, &txn.ID, ""); err != nil {
			t.Fatalf("expected award for first-time sender, got %v", err)
		}
	})

	t.Run("new segment rejects prior sender", func(t *testing.T) {
		scheme := tieredScheme()
		scheme.IsTiered = false
		scheme.Tiers = nil
		scheme.CommissionMode = models.CommissionPercentage
		scheme.CommissionPercentage = dec("2")
		scheme.Eligibility = models.BonusEligibility{Segment: models.SegmentNew, OneTimeOnly: boolPtr(false)}
		e, _, txns := fixture(scheme)

		txn := addTxn(txns, "500")
		txns.completed[txn.UserID] = []time.Time{awardNow, awardNow.AddDate(0, 0, -30)}

		_, err := e.AwardBonus(context.Background(), txn.UserID, scheme.ID, &txn.ID, "")
		wantSchemeRejection(t, err, RejectSegmentNotEligible)
	})

	t.Run("churned segment", func(t *testing.T) {
		scheme := tieredScheme()
		scheme.IsTiered = false
		scheme.Tiers = nil
		scheme.CreditAmount = dec("15")
		scheme.Eligibility = models.BonusEligibility{Segment: models.SegmentChurned, OneTimeOnly: boolPtr(false)}
		e, _, txns := fixture(scheme)

		dormant := uuid.New()
		txns.completed[dormant] = []time.Time{awardNow.AddDate(0, 0, -120)}
		if _, err := e.AwardBonus(context.Background(), dormant, scheme.ID, nil, ""); err != nil {
			t.Fatalf("expected award for dormant user, got %v", err)
		}

		active := uuid.New()
		txns.completed[active] = []time.Time{awardNow.AddDate(0, 0, -120), awardNow.AddDate(0, 0, -5)}
		_, err := e.AwardBonus(context.Background(), active, scheme.ID, nil, "")
		wantSchemeRejection(t, err, RejectSegmentNotEligible)

		_, err = e.AwardBonus(context.Background(), uuid.New(), scheme.ID, nil, "")
		wantSchemeRejection(t, err, RejectSegmentNotEligible)
	})
}
