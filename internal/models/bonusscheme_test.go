package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestValidateTiers(t *testing.T) {
	tests := []struct {
		name    string
		tiers   []BonusTier
		wantErr bool
	}{
		{
			name: "sorted non-overlapping with open end",
			tiers: []BonusTier{
				{Min: d("0"), Max: dp("1000"), Value: d("50")},
				{Min: d("1001"), Max: dp("5000"), Value: d("100")},
				{Min: d("5001"), Value: d("200")},
			},
		},
		{
			name:  "single open-ended tier",
			tiers: []BonusTier{{Min: d("0"), Value: d("10")}},
		},
		{
			name: "overlapping ranges",
			tiers: []BonusTier{
				{Min: d("0"), Max: dp("1000"), Value: d("50")},
				{Min: d("1000"), Max: dp("5000"), Value: d("100")},
			},
			wantErr: true,
		},
		{
			name: "unsorted",
			tiers: []BonusTier{
				{Min: d("1001"), Max: dp("5000"), Value: d("100")},
				{Min: d("0"), Max: dp("1000"), Value: d("50")},
			},
			wantErr: true,
		},
		{
			name: "open-ended tier not last",
			tiers: []BonusTier{
				{Min: d("0"), Value: d("50")},
				{Min: d("1001"), Max: dp("5000"), Value: d("100")},
			},
			wantErr: true,
		},
		{
			name:    "max below min",
			tiers:   []BonusTier{{Min: d("100"), Max: dp("50"), Value: d("10")}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTiers(tt.tiers)
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTierContains(t *testing.T) {
	bounded := BonusTier{Min: d("100"), Max: dp("500")}
	open := BonusTier{Min: d("501")}

	if bounded.Contains(d("99.99")) {
		t.Fatal("amount below min should not match")
	}
	if !bounded.Contains(d("100")) || !bounded.Contains(d("500")) {
		t.Fatal("bounds are inclusive")
	}
	if bounded.Contains(d("500.01")) {
		t.Fatal("amount above max should not match")
	}
	if !open.Contains(d("1000000")) {
		t.Fatal("open-ended tier should match any amount above min")
	}
}

func TestEligibilityOneTimeDefault(t *testing.T) {
	var e BonusEligibility
	if !e.IsOneTimeOnly() {
		t.Fatal("unset one_time_only must default to true")
	}
	f := false
	e.OneTimeOnly = &f
	if e.IsOneTimeOnly() {
		t.Fatal("explicit false must be honored")
	}
}
