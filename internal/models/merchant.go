package models

import (
	"time"

	"github.com/google/uuid"
)

// Merchant statuses.
const (
	MerchantStatusActive    = "active"
	MerchantStatusSuspended = "suspended"
)

// Merchant is a payout partner of the platform.
type Merchant struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Country            string    `json:"country"`
	SettlementCurrency string    `json:"settlement_currency"`
	ContactEmail       string    `json:"contact_email"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
