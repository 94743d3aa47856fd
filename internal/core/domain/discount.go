package domain

import (
	"encoding/json"
	"math"
	"net/http"
	"time"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Discount is the decoded shape of a discount record. Active comes from the
// record's status column, everything else from its data.
type Discount struct {
	Code        string  `json:"code"`
	Type        string  `json:"type"`
	Value       float64 `json:"value"`
	MinAmount   float64 `json:"minAmount"`
	MaxDiscount float64 `json:"maxDiscount"`
	ValidFrom   string  `json:"validFrom"`
	ValidUntil  string  `json:"validUntil"`
	Active      bool    `json:"-"`
}

func DiscountFromRecord(rec Record) (Discount, error) {
	var d Discount
	if err := json.Unmarshal(rec.Data, &d); err != nil {
		return Discount{}, err
	}
	d.Active = rec.Status == "active"
	return d, nil
}

// Quote is the result of validating a discount code against an amount.
type Quote struct {
	Code           string  `json:"code"`
	DiscountAmount float64 `json:"discountAmount"`
	FinalAmount    float64 `json:"finalAmount"`
}

// Apply computes the quote for amount at the given instant. Validity bounds
// are RFC3339 or date-only strings; empty bounds impose no constraint.
func (d Discount) Apply(amount float64, at time.Time) (Quote, *Error) {
	if !d.Active {
		return Quote{}, NewError(http.StatusBadRequest, "DISCOUNT_INACTIVE", "discount code is not active")
	}
	if from, ok := parseBound(d.ValidFrom); ok && at.Before(from) {
		return Quote{}, NewError(http.StatusBadRequest, "DISCOUNT_EXPIRED", "discount code is not yet valid")
	}
	if until, ok := parseBound(d.ValidUntil); ok && at.After(until) {
		return Quote{}, NewError(http.StatusBadRequest, "DISCOUNT_EXPIRED", "discount code has expired")
	}
	if d.MinAmount > 0 && amount < d.MinAmount {
		return Quote{}, NewError(http.StatusBadRequest, "AMOUNT_BELOW_MINIMUM", "amount is below the discount minimum")
	}

	var off float64
	switch d.Type {
	case DiscountFixed:
		off = d.Value
	default:
		off = amount * d.Value / 100
	}
	if d.MaxDiscount > 0 && off > d.MaxDiscount {
		off = d.MaxDiscount
	}
	if off > amount {
		off = amount
	}
	off = round2(off)

	return Quote{Code: d.Code, DiscountAmount: off, FinalAmount: round2(amount - off)}, nil
}

func parseBound(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
