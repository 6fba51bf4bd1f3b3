package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/fee"
	"github.com/tuitionhub/backend/internal/domain/payment"
)

// PaymentModel is the persistence model for the Payment aggregate root.
// The fee breakdown is flattened into columns.
type PaymentModel struct {
	AggregateModel
	TransactionID      string           `gorm:"type:varchar(64);not null;uniqueIndex"`
	StudentID          uuid.UUID        `gorm:"type:uuid;not null;index"`
	ClassID            uuid.UUID        `gorm:"type:uuid;not null;index"`
	BasePrice          decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	PromoDiscount      decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	TheoryDiscount     decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	CardDiscount       decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	SpeedPostFee       decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	TotalAmount        decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	Pricing            fee.PricingKind  `gorm:"type:varchar(20);not null;default:'standard'"`
	CardType           catalog.CardType `gorm:"type:varchar(10);not null;default:'full'"`
	PromoCode          string           `gorm:"type:varchar(50)"`
	PaymentMethod      payment.Method   `gorm:"type:varchar(20);not null"`
	Status             payment.Status   `gorm:"type:varchar(20);not null;index"`
	Unsettled          bool             `gorm:"not null;default:false;index"`
	SettlementError    string           `gorm:"type:text"`
	SettlementAttempts int              `gorm:"not null;default:0"`
	EnrollmentID       *uuid.UUID       `gorm:"type:uuid"`
	GatewayReference   string           `gorm:"type:varchar(100)"`
	CollectedBy        *uuid.UUID       `gorm:"type:uuid;index"`
	ProcessedAt        *time.Time       `gorm:"index"`
	SettledAt          *time.Time
	Notes              string           `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *payment.Payment {
	return &payment.Payment{
		BaseAggregateRoot: m.ToAggregateRoot(),
		TransactionID:     m.TransactionID,
		StudentID:         m.StudentID,
		ClassID:           m.ClassID,
		Fee: fee.Breakdown{
			BasePrice:      m.BasePrice,
			PromoDiscount:  m.PromoDiscount,
			TheoryDiscount: m.TheoryDiscount,
			CardDiscount:   m.CardDiscount,
			SpeedPostFee:   m.SpeedPostFee,
			TotalAmount:    m.TotalAmount,
			Pricing:        m.Pricing,
			CardType:       m.CardType,
			PromoCode:      m.PromoCode,
		},
		PaymentMethod:      m.PaymentMethod,
		Status:             m.Status,
		Unsettled:          m.Unsettled,
		SettlementError:    m.SettlementError,
		SettlementAttempts: m.SettlementAttempts,
		EnrollmentID:       m.EnrollmentID,
		GatewayReference:   m.GatewayReference,
		CollectedBy:        m.CollectedBy,
		ProcessedAt:        m.ProcessedAt,
		SettledAt:          m.SettledAt,
		Notes:              m.Notes,
	}
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *payment.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.TransactionID = p.TransactionID
	m.StudentID = p.StudentID
	m.ClassID = p.ClassID
	m.BasePrice = p.Fee.BasePrice
	m.PromoDiscount = p.Fee.PromoDiscount
	m.TheoryDiscount = p.Fee.TheoryDiscount
	m.CardDiscount = p.Fee.CardDiscount
	m.SpeedPostFee = p.Fee.SpeedPostFee
	m.TotalAmount = p.Fee.TotalAmount
	m.Pricing = p.Fee.Pricing
	m.CardType = p.Fee.CardType
	m.PromoCode = p.Fee.PromoCode
	m.PaymentMethod = p.PaymentMethod
	m.Status = p.Status
	m.Unsettled = p.Unsettled
	m.SettlementError = p.SettlementError
	m.SettlementAttempts = p.SettlementAttempts
	m.EnrollmentID = p.EnrollmentID
	m.GatewayReference = p.GatewayReference
	m.CollectedBy = p.CollectedBy
	m.ProcessedAt = p.ProcessedAt
	m.SettledAt = p.SettledAt
	m.Notes = p.Notes
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *payment.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}
