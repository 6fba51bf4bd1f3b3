package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuitionhub/backend/internal/domain/catalog"
)

// ClassModel is the read model of a class offering. Rows are owned by the
// class-management system; this service never writes them outside seeding.
type ClassModel struct {
	BaseModel
	Subject               string              `gorm:"type:varchar(100);not null"`
	Teacher               string              `gorm:"type:varchar(100);not null"`
	Stream                string              `gorm:"type:varchar(50)"`
	CourseType            catalog.CourseType  `gorm:"type:varchar(20);not null"`
	DeliveryMethod        string              `gorm:"type:varchar(20)"`
	BasePrice             decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	RevisionDiscountPrice *decimal.Decimal    `gorm:"type:decimal(18,2)"`
	RelatedTheoryClassID  *uuid.UUID          `gorm:"type:uuid"`
	ScheduleDay           string              `gorm:"type:varchar(20)"`
	ScheduleTime          string              `gorm:"type:varchar(20)"`
	ScheduleFrequency     catalog.Frequency   `gorm:"type:varchar(20);not null;default:'monthly'"`
	MaxStudents           int                 `gorm:"not null;default:0"`
	CurrentStudents       int                 `gorm:"not null;default:0"`
	Status                catalog.ClassStatus `gorm:"type:varchar(20);not null;default:'active'"`
	IsStudyPack           bool                `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (ClassModel) TableName() string {
	return "classes"
}

// ToDomain converts the row to a domain Class
func (m *ClassModel) ToDomain() *catalog.Class {
	return &catalog.Class{
		ID:                    m.ID,
		Subject:               m.Subject,
		Teacher:               m.Teacher,
		Stream:                m.Stream,
		CourseType:            m.CourseType,
		DeliveryMethod:        m.DeliveryMethod,
		BasePrice:             m.BasePrice,
		RevisionDiscountPrice: m.RevisionDiscountPrice,
		RelatedTheoryClassID:  m.RelatedTheoryClassID,
		Schedule: catalog.Schedule{
			Day:       m.ScheduleDay,
			Time:      m.ScheduleTime,
			Frequency: m.ScheduleFrequency,
		},
		MaxStudents:     m.MaxStudents,
		CurrentStudents: m.CurrentStudents,
		Status:          m.Status,
		IsStudyPack:     m.IsStudyPack,
	}
}

// ClassModelFromDomain creates a row from a domain Class
func ClassModelFromDomain(c *catalog.Class) *ClassModel {
	now := time.Now().UTC()
	return &ClassModel{
		BaseModel:             BaseModel{ID: c.ID, CreatedAt: now, UpdatedAt: now},
		Subject:               c.Subject,
		Teacher:               c.Teacher,
		Stream:                c.Stream,
		CourseType:            c.CourseType,
		DeliveryMethod:        c.DeliveryMethod,
		BasePrice:             c.BasePrice,
		RevisionDiscountPrice: c.RevisionDiscountPrice,
		RelatedTheoryClassID:  c.RelatedTheoryClassID,
		ScheduleDay:           c.Schedule.Day,
		ScheduleTime:          c.Schedule.Time,
		ScheduleFrequency:     c.Schedule.Frequency,
		MaxStudents:           c.MaxStudents,
		CurrentStudents:       c.CurrentStudents,
		Status:                c.Status,
		IsStudyPack:           c.IsStudyPack,
	}
}

// StudentModel is the minimal student row needed to validate checkouts
type StudentModel struct {
	BaseModel
	Name   string `gorm:"type:varchar(200);not null"`
	Status string `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (StudentModel) TableName() string {
	return "students"
}

// CardModel is a discount card issued to a student for a class
type CardModel struct {
	ID         uuid.UUID        `gorm:"type:uuid;primary_key"`
	StudentID  uuid.UUID        `gorm:"type:uuid;not null;index:idx_cards_pair"`
	ClassID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_cards_pair"`
	CardType   catalog.CardType `gorm:"type:varchar(10);not null"`
	ValidFrom  time.Time        `gorm:"not null"`
	ValidUntil time.Time        `gorm:"not null"`
	Reason     string           `gorm:"type:varchar(500)"`
	RevokedAt  *time.Time
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CardModel) TableName() string {
	return "cards"
}

// ToDomain converts the row to a domain Card
func (m *CardModel) ToDomain() *catalog.Card {
	return &catalog.Card{
		ID:         m.ID,
		StudentID:  m.StudentID,
		ClassID:    m.ClassID,
		CardType:   m.CardType,
		ValidFrom:  m.ValidFrom.UTC(),
		ValidUntil: m.ValidUntil.UTC(),
		Reason:     m.Reason,
		RevokedAt:  utcPtr(m.RevokedAt),
	}
}

// PromoCodeModel is an entry of the promo-code table
type PromoCodeModel struct {
	Code       string            `gorm:"type:varchar(50);primary_key"`
	Kind       catalog.PromoKind `gorm:"type:varchar(10);not null"`
	Value      decimal.Decimal   `gorm:"type:decimal(18,2);not null"`
	ValidFrom  *time.Time
	ValidUntil *time.Time
	Active     bool      `gorm:"not null;default:true"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PromoCodeModel) TableName() string {
	return "promo_codes"
}

// ToDomain converts the row to a domain PromoCode
func (m *PromoCodeModel) ToDomain() *catalog.PromoCode {
	return &catalog.PromoCode{
		Code:       m.Code,
		Kind:       m.Kind,
		Value:      m.Value,
		ValidFrom:  utcPtr(m.ValidFrom),
		ValidUntil: utcPtr(m.ValidUntil),
		Active:     m.Active,
	}
}
