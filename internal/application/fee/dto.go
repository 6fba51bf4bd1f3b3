package fee

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/fee"
)

// QuoteRequest asks for the fee a student would pay for a class
type QuoteRequest struct {
	StudentID  uuid.UUID `json:"student_id" binding:"required"`
	ClassID    uuid.UUID `json:"class_id" binding:"required"`
	PromoCode  string    `json:"promo_code" binding:"max=50"`
	Collection string    `json:"collection" binding:"omitempty,oneof=counter speed_post"`
}

// QuoteResponse is an itemised fee quote
type QuoteResponse struct {
	StudentID      uuid.UUID       `json:"student_id"`
	ClassID        uuid.UUID       `json:"class_id"`
	ClassName      string          `json:"class_name"`
	BasePrice      decimal.Decimal `json:"base_price"`
	PromoDiscount  decimal.Decimal `json:"promo_discount"`
	TheoryDiscount decimal.Decimal `json:"theory_discount"`
	CardDiscount   decimal.Decimal `json:"card_discount"`
	SpeedPostFee   decimal.Decimal `json:"speed_post_fee"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Pricing        string          `json:"pricing"`
	CardType       string          `json:"card_type"`
	PromoCode      string          `json:"promo_code,omitempty"`

	Breakdown fee.Breakdown `json:"-"`
}

// ToQuoteResponse converts a breakdown into a response
func ToQuoteResponse(studentID, classID uuid.UUID, className string, b fee.Breakdown) *QuoteResponse {
	return &QuoteResponse{
		StudentID:      studentID,
		ClassID:        classID,
		ClassName:      className,
		BasePrice:      b.BasePrice,
		PromoDiscount:  b.PromoDiscount,
		TheoryDiscount: b.TheoryDiscount,
		CardDiscount:   b.CardDiscount,
		SpeedPostFee:   b.SpeedPostFee,
		TotalAmount:    b.TotalAmount,
		Pricing:        string(b.Pricing),
		CardType:       string(b.CardType),
		PromoCode:      b.PromoCode,
		Breakdown:      b,
	}
}
