package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PromoKind is how a promo code value is interpreted
type PromoKind string

const (
	PromoKindFlat    PromoKind = "flat"
	PromoKindPercent PromoKind = "percent"
)

// PromoCode is an entry of the promo-code table
type PromoCode struct {
	Code       string
	Kind       PromoKind
	Value      decimal.Decimal
	ValidFrom  *time.Time
	ValidUntil *time.Time
	Active     bool
}

// NormalizePromoCode trims and upper-cases a user supplied code
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsUsableAt reports whether the code is active within its validity window
func (p *PromoCode) IsUsableAt(t time.Time) bool {
	if p == nil || !p.Active {
		return false
	}
	if p.ValidFrom != nil && t.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && t.After(*p.ValidUntil) {
		return false
	}
	return true
}

// Discount returns the amount this code takes off basePrice, never more than
// basePrice and never negative. Unknown kinds yield zero.
func (p *PromoCode) Discount(basePrice decimal.Decimal) decimal.Decimal {
	if p == nil || p.Value.IsNegative() {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch p.Kind {
	case PromoKindFlat:
		d = p.Value
	case PromoKindPercent:
		d = basePrice.Mul(p.Value).Div(decimal.NewFromInt(100)).Round(2)
	default:
		return decimal.Zero
	}
	if d.GreaterThan(basePrice) {
		return basePrice
	}
	return d
}
