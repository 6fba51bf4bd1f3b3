package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/enrollment"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// EnrollmentModel is the persistence model for an Enrollment. A partial
// unique index keeps one active row per (student, class).
type EnrollmentModel struct {
	BaseModel
	StudentID       uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_enrollments_active_pair,where:status = 'active'"`
	ClassID         uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_enrollments_active_pair,where:status = 'active'"`
	PaymentID       uuid.UUID                `gorm:"type:uuid;not null"`
	AmountPaid      decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	PaymentMethod   string                   `gorm:"type:varchar(20);not null"`
	PaymentStatus   enrollment.PaymentStatus `gorm:"type:varchar(20);not null"`
	EnrollmentDate  time.Time                `gorm:"not null"`
	NextPaymentDate time.Time                `gorm:"not null"`
	Status          enrollment.Status        `gorm:"type:varchar(20);not null;default:'active'"`
	History         []EnrollmentPaymentModel `gorm:"foreignKey:EnrollmentID;references:ID"`
}

// TableName returns the table name for GORM
func (EnrollmentModel) TableName() string {
	return "enrollments"
}

// ToDomain converts the persistence model to a domain Enrollment
func (m *EnrollmentModel) ToDomain() *enrollment.Enrollment {
	e := &enrollment.Enrollment{
		BaseEntity:      shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		StudentID:       m.StudentID,
		ClassID:         m.ClassID,
		PaymentID:       m.PaymentID,
		AmountPaid:      m.AmountPaid,
		PaymentMethod:   m.PaymentMethod,
		PaymentStatus:   m.PaymentStatus,
		EnrollmentDate:  m.EnrollmentDate,
		NextPaymentDate: m.NextPaymentDate,
		Status:          m.Status,
		PaymentHistory:  make([]enrollment.HistoryEntry, len(m.History)),
	}
	for i, h := range m.History {
		e.PaymentHistory[i] = h.ToDomain()
	}
	return e
}

// EnrollmentModelFromDomain creates a persistence model without history rows
func EnrollmentModelFromDomain(e *enrollment.Enrollment) *EnrollmentModel {
	return &EnrollmentModel{
		BaseModel:       BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt},
		StudentID:       e.StudentID,
		ClassID:         e.ClassID,
		PaymentID:       e.PaymentID,
		AmountPaid:      e.AmountPaid,
		PaymentMethod:   e.PaymentMethod,
		PaymentStatus:   e.PaymentStatus,
		EnrollmentDate:  e.EnrollmentDate,
		NextPaymentDate: e.NextPaymentDate,
		Status:          e.Status,
	}
}

// EnrollmentPaymentModel is one append-only history row
type EnrollmentPaymentModel struct {
	ID            uuid.UUID                `gorm:"type:uuid;primary_key"`
	EnrollmentID  uuid.UUID                `gorm:"type:uuid;not null;index"`
	TransactionID string                   `gorm:"type:varchar(64);not null;uniqueIndex"`
	PaidAt        time.Time                `gorm:"not null"`
	Amount        decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	Method        string                   `gorm:"type:varchar(20);not null"`
	Status        enrollment.PaymentStatus `gorm:"type:varchar(20);not null"`
	CreatedAt     time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EnrollmentPaymentModel) TableName() string {
	return "enrollment_payments"
}

// ToDomain converts the history row to a domain HistoryEntry
func (m EnrollmentPaymentModel) ToDomain() enrollment.HistoryEntry {
	return enrollment.HistoryEntry{
		Date:          m.PaidAt,
		Amount:        m.Amount,
		Method:        m.Method,
		Status:        m.Status,
		TransactionID: m.TransactionID,
	}
}
