package promocodes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-remit/backend/internal/models"
)

type fakeStore struct {
	promos      map[string]*models.PromoCode
	redemptions map[uuid.UUID]map[uuid.UUID]int // promoID -> userID -> count
}

func newFakeStore(promos ...*models.PromoCode) *fakeStore {
	s := &fakeStore{
		promos:      make(map[string]*models.PromoCode),
		redemptions: make(map[uuid.UUID]map[uuid.UUID]int),
	}
	for _, p := range promos {
		s.promos[p.Code] = p
	}
	return s
}

func (s *fakeStore) GetByCode(_ context.Context, code string) (*models.PromoCode, error) {
	return s.promos[code], nil
}

func (s *fakeStore) CountUserRedemptions(_ context.Context, promoID, userID uuid.UUID) (int, error) {
	return s.redemptions[promoID][userID], nil
}

func (s *fakeStore) Commit(_ context.Context, promoID, userID uuid.UUID, transactionID *uuid.UUID, discount decimal.Decimal) (*models.Redemption, error) {
	var promo *models.PromoCode
	for _, p := range s.promos {
		if p.ID == promoID {
			promo = p
		}
	}
	if promo == nil {
		return nil, errors.New("promo not found")
	}
	if promo.UsageLimit != models.Unlimited && promo.UsageCount >= promo.UsageLimit {
		return nil, ErrUsageCapReached
	}
	if !promo.BudgetUnlimited() && promo.TotalDiscountUtilized.Add(discount).GreaterThan(promo.BudgetLimit) {
		return nil, ErrBudgetCapReached
	}
	promo.UsageCount++
	promo.TotalDiscountUtilized = promo.TotalDiscountUtilized.Add(discount)
	if s.redemptions[promoID] == nil {
		s.redemptions[promoID] = make(map[uuid.UUID]int)
	}
	s.redemptions[promoID][userID]++
	return &models.Redemption{
		ID:             uuid.New(),
		PromoCodeID:    promoID,
		Code:           promo.Code,
		UserID:         userID,
		TransactionID:  transactionID,
		DiscountAmount: discount,
	}, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeTxnStats struct {
	completed []time.Time
}

func (f *fakeTxnStats) CountCompletedByUser(_ context.Context, _ uuid.UUID, since time.Time) (int, error) {
	n := 0
	for _, at := range f.completed {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func testEvaluator(store Store, now time.Time) *Evaluator {
	return testEvaluatorWithTxns(store, &fakeTxnStats{}, now)
}

func testEvaluatorWithTxns(store Store, stats *fakeTxnStats, now time.Time) *Evaluator {
	e := NewEvaluator(store, stats)
	e.now = func() time.Time { return now }
	return e
}

func activePromo(code string) *models.PromoCode {
	return &models.PromoCode{
		ID:           uuid.New(),
		Code:         code,
		Kind:         models.PromoKindFixed,
		Value:        dec("10"),
		Currency:     "USD",
		UsageLimit:   models.Unlimited,
		PerUserLimit: models.Unlimited,
		BudgetLimit:  dec("-1"),
		StartDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:       models.PromoStatusActive,
	}
}

var evalNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func wantRejection(t *testing.T, err error, code string) {
	t.Helper()
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected rejection %s, got %v", code, err)
	}
	if rej.Code != code {
		t.Fatalf("expected rejection %s, got %s", code, rej.Code)
	}
}

func TestEvaluatePercentageDiscount(t *testing.T) {
	p := activePromo("SAVE20")
	p.Kind = models.PromoKindPercentage
	p.Value = dec("20")
	p.MinTransaction = dec("100")
	e := testEvaluator(newFakeStore(p), evalNow)

	res, err := e.Evaluate(context.Background(), "save20", TransactionContext{
		UserID: uuid.New(),
		Amount: dec("500"),
	})
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if !res.DiscountAmount.Equal(dec("100")) {
		t.Fatalf("expected discount 100, got %s", res.DiscountAmount)
	}

	_, err = e.Evaluate(context.Background(), "SAVE20", TransactionContext{
		UserID: uuid.New(),
		Amount: dec("50"),
	})
	wantRejection(t, err, RejectBelowThreshold)
}

func TestEvaluateMaxDiscountClamp(t *testing.T) {
	p := activePromo("BIG")
	p.Kind = models.PromoKindPercentage
	p.Value = dec("20")
	maxD := dec("25")
	p.MaxDiscount = &maxD
	e := testEvaluator(newFakeStore(p), evalNow)

	res, err := e.Evaluate(context.Background(), "BIG", TransactionContext{Amount: dec("1000")})
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if !res.DiscountAmount.Equal(dec("25")) {
		t.Fatalf("expected clamped discount 25, got %s", res.DiscountAmount)
	}
}

func TestEvaluateRejectionOrder(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name  string
		setup func(p *models.PromoCode, s *fakeStore)
		tc    TransactionContext
		want  string
	}{
		{
			name:  "unknown code",
			setup: func(p *models.PromoCode, s *fakeStore) { delete(s.promos, p.Code) },
			tc:    TransactionContext{Amount: dec("100")},
			want:  RejectNotFound,
		},
		{
			name:  "disabled",
			setup: func(p *models.PromoCode, _ *fakeStore) { p.Status = models.PromoStatusDisabled },
			tc:    TransactionContext{Amount: dec("100")},
			want:  RejectExpiredOrInactive,
		},
		{
			name:  "outside window",
			setup: func(p *models.PromoCode, _ *fakeStore) { p.EndDate = evalNow.AddDate(0, 0, -1) },
			tc:    TransactionContext{Amount: dec("100")},
			want:  RejectExpiredOrInactive,
		},
		{
			name: "usage cap before budget cap",
			setup: func(p *models.PromoCode, _ *fakeStore) {
				p.UsageLimit = 5
				p.UsageCount = 5
				p.BudgetLimit = dec("10")
				p.TotalDiscountUtilized = dec("10")
			},
			tc:   TransactionContext{Amount: dec("100")},
			want: RejectUsageCapReached,
		},
		{
			name: "budget cap before threshold",
			setup: func(p *models.PromoCode, _ *fakeStore) {
				p.BudgetLimit = dec("10")
				p.TotalDiscountUtilized = dec("10")
				p.MinTransaction = dec("1000")
			},
			tc:   TransactionContext{Amount: dec("100")},
			want: RejectBudgetCapReached,
		},
		{
			name: "threshold before corridor",
			setup: func(p *models.PromoCode, _ *fakeStore) {
				p.MinTransaction = dec("1000")
				p.Restrictions.Corridors = []string{"USD-PHP"}
			},
			tc:   TransactionContext{Amount: dec("100"), SourceCurrency: "USD", DestCurrency: "INR"},
			want: RejectBelowThreshold,
		},
		{
			name: "corridor restriction",
			setup: func(p *models.PromoCode, _ *fakeStore) {
				p.Restrictions.Corridors = []string{"USD-PHP"}
			},
			tc:   TransactionContext{Amount: dec("100"), SourceCurrency: "USD", DestCurrency: "INR"},
			want: RejectCorridorNotAllowed,
		},
		{
			name: "payment method restriction",
			setup: func(p *models.PromoCode, _ *fakeStore) {
				p.Restrictions.PaymentMethods = []string{"bank_transfer"}
			},
			tc:   TransactionContext{Amount: dec("100"), PaymentMethod: "card"},
			want: RejectMethodNotAllowed,
		},
		{
			name: "affiliate restriction",
			setup: func(p *models.PromoCode, _ *fakeStore) {
				p.Restrictions.Affiliates = []string{"partner-a"}
			},
			tc:   TransactionContext{Amount: dec("100"), AffiliateID: "partner-b"},
			want: RejectAffiliateNotAllowed,
		},
		{
			name: "per-user limit",
			setup: func(p *models.PromoCode, s *fakeStore) {
				p.PerUserLimit = 1
				s.redemptions[p.ID] = map[uuid.UUID]int{userID: 1}
			},
			tc:   TransactionContext{UserID: userID, Amount: dec("100")},
			want: RejectPerUserLimitReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := activePromo("TEST")
			s := newFakeStore(p)
			tt.setup(p, s)
			e := testEvaluator(s, evalNow)
			_, err := e.Evaluate(context.Background(), "TEST", tt.tc)
			wantRejection(t, err, tt.want)
		})
	}
}

func TestEvaluateCorridorCaseInsensitive(t *testing.T) {
	p := activePromo("ROUTE")
	p.Restrictions.Corridors = []string{"usd-php"}
	e := testEvaluator(newFakeStore(p), evalNow)

	_, err := e.Evaluate(context.Background(), "ROUTE", TransactionContext{
		Amount: dec("100"), SourceCurrency: "USD", DestCurrency: "PHP",
	})
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestCommitEnforcesCaps(t *testing.T) {
	p := activePromo("CAPPED")
	p.UsageLimit = 2
	s := newFakeStore(p)
	e := testEvaluator(s, evalNow)

	for i := 0; i < 2; i++ {
		res, err := e.Evaluate(context.Background(), "CAPPED", TransactionContext{UserID: uuid.New(), Amount: dec("100")})
		if err != nil {
			t.Fatalf("redemption %d: expected acceptance, got %v", i+1, err)
		}
		if _, err := s.Commit(context.Background(), p.ID, uuid.New(), nil, res.DiscountAmount); err != nil {
			t.Fatalf("redemption %d: commit failed: %v", i+1, err)
		}
	}

	_, err := e.Evaluate(context.Background(), "CAPPED", TransactionContext{UserID: uuid.New(), Amount: dec("100")})
	wantRejection(t, err, RejectUsageCapReached)
}

func TestFixedAndPassThroughKinds(t *testing.T) {
	tests := []struct {
		name string
		kind string
		want string
	}{
		{"fixed", models.PromoKindFixed, "10"},
		{"fee waiver", models.PromoKindFeeWaiver, "10"},
		{"fx boost", models.PromoKindFxBoost, "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := activePromo("KIND")
			p.Kind = tt.kind
			e := testEvaluator(newFakeStore(p), evalNow)
			res, err := e.Evaluate(context.Background(), "KIND", TransactionContext{Amount: dec("100")})
			if err != nil {
				t.Fatalf("expected acceptance, got %v", err)
			}
			if !res.DiscountAmount.Equal(dec(tt.want)) {
				t.Fatalf("expected value %s, got %s", tt.want, res.DiscountAmount)
			}
		})
	}
}

func TestEvaluateSegmentTargeting(t *testing.T) {
	intPtr := func(n int) *int { return &n }
	userID := uuid.New()

	tests := []struct {
		name      string
		segment   models.Segment
		completed []time.Time
		userID    uuid.UUID
		want      string // empty = accepted
	}{
		{
			name:    "new user with no history",
			segment: models.Segment{Type: models.SegmentNew},
			userID:  userID,
		},
		{
			name:      "new segment rejects prior sender",
			segment:   models.Segment{Type: models.SegmentNew},
			completed: []time.Time{evalNow.AddDate(0, 0, -10)},
			userID:    userID,
			want:      RejectSegmentNotEligible,
		},
		{
			name:      "new segment honors max transaction count",
			segment:   models.Segment{Type: models.SegmentNew, MaxTransactionCount: intPtr(2)},
			completed: []time.Time{evalNow.AddDate(0, 0, -10), evalNow.AddDate(0, 0, -5)},
			userID:    userID,
		},
		{
			name:      "churned user past inactivity window",
			segment:   models.Segment{Type: models.SegmentChurned},
			completed: []time.Time{evalNow.AddDate(0, 0, -120)},
			userID:    userID,
		},
		{
			name:      "churned segment rejects recent sender",
			segment:   models.Segment{Type: models.SegmentChurned},
			completed: []time.Time{evalNow.AddDate(0, 0, -120), evalNow.AddDate(0, 0, -5)},
			userID:    userID,
			want:      RejectSegmentNotEligible,
		},
		{
			name:    "churned segment rejects user with no history",
			segment: models.Segment{Type: models.SegmentChurned},
			userID:  userID,
			want:    RejectSegmentNotEligible,
		},
		{
			name:      "churned segment honors custom window",
			segment:   models.Segment{Type: models.SegmentChurned, InactivityDays: intPtr(30)},
			completed: []time.Time{evalNow.AddDate(0, 0, -45)},
			userID:    userID,
		},
		{
			name:    "targeted promo without a user",
			segment: models.Segment{Type: models.SegmentNew},
			want:    RejectSegmentNotEligible,
		},
		{
			name:      "all segment ignores history",
			segment:   models.Segment{Type: models.SegmentAll},
			completed: []time.Time{evalNow.AddDate(0, 0, -1)},
			userID:    userID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := activePromo("TARGETED")
			p.Segment = tt.segment
			stats := &fakeTxnStats{completed: tt.completed}
			e := testEvaluatorWithTxns(newFakeStore(p), stats, evalNow)

			_, err := e.Evaluate(context.Background(), "TARGETED", TransactionContext{
				UserID: tt.userID,
				Amount: dec("100"),
			})
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected acceptance, got %v", err)
				}
				return
			}
			wantRejection(t, err, tt.want)
		})
	}
}
