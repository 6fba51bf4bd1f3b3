// Package fee computes what a student owes for a class.
package fee

import (
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/catalog"
)

// PricingKind records which pricing rule produced a breakdown
type PricingKind string

const (
	// PricingStandard applies promo and theory discounts additively
	PricingStandard PricingKind = "standard"
	// PricingCard applies the card tier multiplier and ignores other discounts
	PricingCard PricingKind = "card"
)

// CollectionPreference is how the student receives class material
type CollectionPreference string

const (
	CollectionCounter   CollectionPreference = "counter"
	CollectionSpeedPost CollectionPreference = "speed_post"
)

// IsValid checks if the preference is valid
func (p CollectionPreference) IsValid() bool {
	return p == CollectionCounter || p == CollectionSpeedPost || p == ""
}

// Breakdown is the itemised fee for one checkout
type Breakdown struct {
	BasePrice      decimal.Decimal  `json:"base_price"`
	PromoDiscount  decimal.Decimal  `json:"promo_discount"`
	TheoryDiscount decimal.Decimal  `json:"theory_discount"`
	CardDiscount   decimal.Decimal  `json:"card_discount"`
	SpeedPostFee   decimal.Decimal  `json:"speed_post_fee"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	Pricing        PricingKind      `json:"pricing"`
	CardType       catalog.CardType `json:"card_type"`
	PromoCode      string           `json:"promo_code,omitempty"`
}

// ApplicableDiscount returns the discount that was actually applied
func (b Breakdown) ApplicableDiscount() decimal.Decimal {
	if b.Pricing == PricingCard {
		return b.CardDiscount
	}
	return b.PromoDiscount.Add(b.TheoryDiscount)
}

// ExpectedTotal recomputes max(0, base - discount) + speed post from the parts
func (b Breakdown) ExpectedTotal() decimal.Decimal {
	net := b.BasePrice.Sub(b.ApplicableDiscount())
	if net.IsNegative() {
		net = decimal.Zero
	}
	return net.Add(b.SpeedPostFee).Round(2)
}

// Validate checks the breakdown is internally consistent. Breakdowns coming
// from outside the calculator (e.g. a client supplied quote) must pass this
// before a payment is created from them.
func (b Breakdown) Validate() error {
	for _, v := range []decimal.Decimal{b.BasePrice, b.PromoDiscount, b.TheoryDiscount, b.CardDiscount, b.SpeedPostFee, b.TotalAmount} {
		if v.IsNegative() {
			return ErrNegativeComponent
		}
	}
	if b.Pricing != PricingStandard && b.Pricing != PricingCard {
		return ErrUnknownPricing
	}
	if b.Pricing == PricingCard && (b.PromoDiscount.IsPositive() || b.TheoryDiscount.IsPositive()) {
		return ErrMixedPricing
	}
	if !b.TotalAmount.Equal(b.ExpectedTotal()) {
		return ErrTotalMismatch
	}
	return nil
}
