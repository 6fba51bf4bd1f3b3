package fee

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// Calculator errors
var (
	ErrClassRequired       = shared.NewValidationError("Class is required to compute a fee")
	ErrBasePriceUndefined  = shared.NewValidationError("Class base price is undefined")
	ErrNegativeComponent   = shared.NewValidationError("Fee components must not be negative")
	ErrUnknownPricing      = shared.NewValidationError("Unknown pricing kind")
	ErrMixedPricing        = shared.NewValidationError("Card pricing cannot be combined with promo or theory discounts")
	ErrTotalMismatch       = shared.NewValidationError("Total amount does not match fee components")
	ErrInvalidCollection   = shared.NewValidationError("Invalid collection preference")
	ErrNegativeSpeedPost   = shared.NewValidationError("Speed post fee must not be negative")
	ErrInvalidCardMultiple = shared.NewValidationError("Card multipliers must be between 0 and 1")
)

// Input is everything the calculator needs for one quote
type Input struct {
	Class       *catalog.Class
	TheoryOwned bool
	Card        *catalog.Card
	Promo       *catalog.PromoCode
	Collection  CollectionPreference
	At          time.Time
}

// Config holds the pricing knobs
type Config struct {
	SpeedPostFee    decimal.Decimal
	CardMultipliers catalog.CardMultipliers
}

// DefaultConfig returns a speed post fee of 300 and the default card tiers
func DefaultConfig() Config {
	return Config{
		SpeedPostFee:    decimal.NewFromInt(300),
		CardMultipliers: catalog.DefaultCardMultipliers(),
	}
}

// Calculator applies the discount precedence rules. It has no side effects.
type Calculator struct {
	config Config
}

// NewCalculator creates a calculator, validating its configuration
func NewCalculator(cfg Config) (*Calculator, error) {
	if cfg.SpeedPostFee.IsNegative() {
		return nil, ErrNegativeSpeedPost
	}
	if cfg.CardMultipliers == nil {
		cfg.CardMultipliers = catalog.DefaultCardMultipliers()
	}
	one := decimal.NewFromInt(1)
	for _, m := range cfg.CardMultipliers {
		if m.IsNegative() || m.GreaterThan(one) {
			return nil, ErrInvalidCardMultiple
		}
	}
	return &Calculator{config: cfg}, nil
}

// Calculate returns the fee breakdown.
//
// A card valid at in.At supersedes promo and theory pricing. Without a card,
// promo and theory discounts add up. The net fee is clamped at zero before
// the speed post surcharge is added.
func (c *Calculator) Calculate(in Input) (Breakdown, error) {
	if in.Class == nil {
		return Breakdown{}, ErrClassRequired
	}
	if in.Class.BasePrice.IsNegative() {
		return Breakdown{}, ErrBasePriceUndefined
	}
	if !in.Collection.IsValid() {
		return Breakdown{}, ErrInvalidCollection
	}
	at := in.At
	if at.IsZero() {
		at = shared.Now()
	}

	base := in.Class.BasePrice.Round(2)
	b := Breakdown{
		BasePrice:      base,
		PromoDiscount:  decimal.Zero,
		TheoryDiscount: decimal.Zero,
		CardDiscount:   decimal.Zero,
		SpeedPostFee:   decimal.Zero,
		Pricing:        PricingStandard,
		CardType:       catalog.CardTypeFull,
	}

	if in.Card != nil && in.Card.ClassID == in.Class.ID && in.Card.IsValidAt(at) {
		charged := base.Mul(c.config.CardMultipliers.For(in.Card.CardType)).Round(2)
		b.Pricing = PricingCard
		b.CardType = in.Card.CardType
		b.CardDiscount = base.Sub(charged)
	} else {
		if in.Promo.IsUsableAt(at) {
			b.PromoDiscount = in.Promo.Discount(base)
			b.PromoCode = in.Promo.Code
		}
		if in.TheoryOwned && in.Class.OffersTheoryDiscount() && in.Class.RevisionDiscountPrice.IsPositive() {
			b.TheoryDiscount = in.Class.RevisionDiscountPrice.Round(2)
		}
	}

	if in.Collection == CollectionSpeedPost && !in.Class.IsStudyPack {
		b.SpeedPostFee = c.config.SpeedPostFee.Round(2)
	}

	b.TotalAmount = b.ExpectedTotal()
	return b, nil
}
