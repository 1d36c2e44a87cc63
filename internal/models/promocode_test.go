package models

import (
	"testing"
	"time"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"save20", "SAVE20"},
		{"  Save20  ", "SAVE20"},
		{"SAVE20", "SAVE20"},
	}
	for _, tt := range tests {
		if got := NormalizeCode(tt.in); got != tt.want {
			t.Fatalf("NormalizeCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWithinWindow(t *testing.T) {
	p := PromoCode{
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if !p.WithinWindow(p.StartDate) {
		t.Fatal("start date is inclusive")
	}
	if p.WithinWindow(p.EndDate) {
		t.Fatal("end date is exclusive")
	}
	if p.WithinWindow(p.StartDate.Add(-time.Second)) {
		t.Fatal("before window must not match")
	}
	if !p.WithinWindow(p.StartDate.AddDate(0, 0, 15)) {
		t.Fatal("inside window must match")
	}
}

func TestRestrictionsEmptyMeansUnrestricted(t *testing.T) {
	var r Restrictions
	if !r.AllowsCorridor("USD", "PHP") {
		t.Fatal("empty corridors must allow any corridor")
	}
	if !r.AllowsPaymentMethod("card") {
		t.Fatal("empty methods must allow any method")
	}
	if !r.AllowsAffiliate("partner-x") {
		t.Fatal("empty affiliates must allow any affiliate")
	}
}

func TestRestrictionsMatching(t *testing.T) {
	r := Restrictions{
		Corridors:      []string{"USD-PHP", "gbp-inr"},
		PaymentMethods: []string{"Bank_Transfer"},
		Affiliates:     []string{"Partner-A"},
	}
	if !r.AllowsCorridor("usd", "php") || !r.AllowsCorridor("GBP", "INR") {
		t.Fatal("corridor match must be case-insensitive")
	}
	if r.AllowsCorridor("USD", "INR") {
		t.Fatal("unlisted corridor must be rejected")
	}
	if !r.AllowsPaymentMethod("bank_transfer") {
		t.Fatal("method match must be case-insensitive")
	}
	if r.AllowsPaymentMethod("card") {
		t.Fatal("unlisted method must be rejected")
	}
	if !r.AllowsAffiliate("partner-a") || r.AllowsAffiliate("partner-b") {
		t.Fatal("affiliate list must be enforced case-insensitively")
	}
}

func TestBudgetUnlimited(t *testing.T) {
	p := PromoCode{BudgetLimit: d("-1")}
	if !p.BudgetUnlimited() {
		t.Fatal("negative budget limit means unlimited")
	}
	p.BudgetLimit = d("0")
	if p.BudgetUnlimited() {
		t.Fatal("zero budget is a real cap")
	}
}
