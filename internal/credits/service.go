package credits

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-remit/backend/internal/models"
)

// Validation errors for manual adjustments. Undocumented balance changes are
// rejected: reason code and notes are mandatory, not advisory.
var (
	ErrInvalidEventType = errors.New("type must be earned or voided")
	ErrInvalidReason    = errors.New("reason_code must be goodwill, correction, or manual_adjustment")
	ErrNotesRequired    = errors.New("notes are required for manual adjustments")
	ErrZeroAmount       = errors.New("amount must be non-zero")
)

// AdjustParams are the inputs for a manual ledger adjustment.
type AdjustParams struct {
	UserID         uuid.UUID
	Amount         decimal.Decimal // signed: positive credit, negative void
	EventType      string          // earned or voided
	ReasonCode     string
	Notes          string
	SchemeID       *uuid.UUID
	AdminUser      string
	IdempotencyKey string
}

// Statement is the balance-and-history view for one user.
type Statement struct {
	Balance      decimal.Decimal      `json:"balance"`
	CostIncurred decimal.Decimal      `json:"cost_incurred"`
	Currency     string               `json:"currency"`
	History      []models.LedgerEntry `json:"history"`
}

// Service implements manual adjustments and balance queries over a ledger Store.
type Service struct {
	store    Store
	currency string
}

// NewService creates a credit ledger service. currency is the portal's
// reporting currency, echoed in statements.
func NewService(store Store, currency string) *Service {
	return &Service{store: store, currency: currency}
}

// manualReference derives the reference tag for a manual adjustment. With an
// idempotency key the tag is stable, so a replayed request finds the prior
// entry instead of inserting a duplicate.
func manualReference(key string) string {
	if key != "" {
		return "manual:" + key
	}
	return "manual:" + uuid.New().String()
}

// Adjust appends one manual ledger entry. Returns the entry and whether it was
// an idempotent replay of an earlier request.
func (s *Service) Adjust(ctx context.Context, p AdjustParams) (*models.LedgerEntry, bool, error) {
	if p.EventType != models.LedgerEventEarned && p.EventType != models.LedgerEventVoided {
		return nil, false, ErrInvalidEventType
	}
	if !models.ValidReasonCode(p.ReasonCode) {
		return nil, false, ErrInvalidReason
	}
	if strings.TrimSpace(p.Notes) == "" {
		return nil, false, ErrNotesRequired
	}
	if p.Amount.IsZero() {
		return nil, false, ErrZeroAmount
	}

	referenceID := manualReference(p.IdempotencyKey)
	if p.IdempotencyKey != "" {
		prior, err := s.store.GetByReference(ctx, p.UserID, referenceID)
		if err != nil {
			return nil, false, err
		}
		if prior != nil {
			return prior, true, nil
		}
	}

	reason := p.ReasonCode
	notes := p.Notes
	entry := &models.LedgerEntry{
		UserID:      p.UserID,
		Amount:      p.Amount,
		EventType:   p.EventType,
		SchemeID:    p.SchemeID,
		ReferenceID: referenceID,
		ReasonCode:  &reason,
		Notes:       &notes,
	}
	if p.AdminUser != "" {
		admin := p.AdminUser
		entry.AdminUser = &admin
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return nil, false, err
	}
	return entry, false, nil
}

// Query returns the user's statement. Balance is the signed sum over ALL
// entries; the filter shapes only history and cost_incurred.
func (s *Service) Query(ctx context.Context, userID uuid.UUID, f HistoryFilter) (*Statement, error) {
	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.History(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	earned, err := s.store.EarnedInRange(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	redeemed, err := s.store.RedemptionCostInRange(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	return &Statement{
		Balance:      balance,
		CostIncurred: earned.Add(redeemed),
		Currency:     s.currency,
		History:      history,
	}, nil
}

// ParseHistoryFilter builds a HistoryFilter from query string values.
func ParseHistoryFilter(startDate, endDate, eventType, schemeID string) (HistoryFilter, error) {
	var f HistoryFilter
	if startDate != "" {
		t, err := time.Parse(time.RFC3339, startDate)
		if err != nil {
			return f, errors.New("invalid startDate")
		}
		f.StartDate = &t
	}
	if endDate != "" {
		t, err := time.Parse(time.RFC3339, endDate)
		if err != nil {
			return f, errors.New("invalid endDate")
		}
		f.EndDate = &t
	}
	if eventType != "" {
		switch eventType {
		case models.LedgerEventEarned, models.LedgerEventApplied, models.LedgerEventExpired, models.LedgerEventVoided:
			f.EventType = eventType
		default:
			return f, errors.New("invalid eventType")
		}
	}
	if schemeID != "" {
		id, err := uuid.Parse(schemeID)
		if err != nil {
			return f, errors.New("invalid schemeId")
		}
		f.SchemeID = &id
	}
	return f, nil
}
