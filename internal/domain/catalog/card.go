package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardType is the fee tier a student card grants
type CardType string

const (
	CardTypeFull CardType = "full"
	CardTypeHalf CardType = "half"
	CardTypeFree CardType = "free"
)

// AllCardTypes lists every card tier in report order
var AllCardTypes = []CardType{CardTypeFull, CardTypeHalf, CardTypeFree}

// IsValid checks if the card type is valid
func (t CardType) IsValid() bool {
	switch t {
	case CardTypeFull, CardTypeHalf, CardTypeFree:
		return true
	}
	return false
}

// String returns the string representation
func (t CardType) String() string {
	return string(t)
}

// CardMultipliers maps each card tier to the fraction of the base price the
// student pays.
type CardMultipliers map[CardType]decimal.Decimal

// DefaultCardMultipliers returns full=1, half=0.5, free=0
func DefaultCardMultipliers() CardMultipliers {
	return CardMultipliers{
		CardTypeFull: decimal.NewFromInt(1),
		CardTypeHalf: decimal.NewFromFloat(0.5),
		CardTypeFree: decimal.Zero,
	}
}

// For returns the multiplier for a card type, defaulting to full price
func (m CardMultipliers) For(t CardType) decimal.Decimal {
	if v, ok := m[t]; ok {
		return v
	}
	return decimal.NewFromInt(1)
}

// Card is a student-held credential granting a fee tier for one class.
// Issued by the card-issuance collaborator and read-only here.
type Card struct {
	ID         uuid.UUID
	StudentID  uuid.UUID
	ClassID    uuid.UUID
	CardType   CardType
	ValidFrom  time.Time
	ValidUntil time.Time
	Reason     string
	RevokedAt  *time.Time
}

// IsValidAt reports whether the card can be used at t
func (c *Card) IsValidAt(t time.Time) bool {
	if c == nil || !c.CardType.IsValid() || c.RevokedAt != nil {
		return false
	}
	if t.Before(c.ValidFrom) {
		return false
	}
	return !t.After(c.ValidUntil)
}
