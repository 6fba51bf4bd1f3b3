package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog errors
var (
	ErrClassNotFound   = errors.New("catalog: class not found")
	ErrStudentNotFound = errors.New("catalog: student not found")
	ErrCardNotFound    = errors.New("catalog: card not found")
)

// CourseType distinguishes theory offerings from the revision courses that
// may build on them.
type CourseType string

const (
	CourseTypeTheory   CourseType = "theory"
	CourseTypeRevision CourseType = "revision"
)

// IsValid checks if the course type is valid
func (t CourseType) IsValid() bool {
	switch t {
	case CourseTypeTheory, CourseTypeRevision:
		return true
	}
	return false
}

// String returns the string representation
func (t CourseType) String() string {
	return string(t)
}

// Frequency is how often a class bills its students
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiWeekly Frequency = "bi-weekly"
	FrequencyMonthly  Frequency = "monthly"
)

// NextDate returns the next billing date after from.
// Unknown frequencies fall back to a 30 day cycle.
func (f Frequency) NextDate(from time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyBiWeekly:
		return from.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 30)
	}
}

// Schedule is when a class meets
type Schedule struct {
	Day       string    `json:"day"`
	Time      string    `json:"time"`
	Frequency Frequency `json:"frequency"`
}

// ClassStatus represents the lifecycle of a class offering
type ClassStatus string

const (
	ClassStatusActive   ClassStatus = "active"
	ClassStatusInactive ClassStatus = "inactive"
)

// Class is a tuition offering owned by the class-management collaborator.
// The settlement core only reads it.
type Class struct {
	ID                    uuid.UUID
	Subject               string
	Teacher               string
	Stream                string
	CourseType            CourseType
	DeliveryMethod        string
	BasePrice             decimal.Decimal
	RevisionDiscountPrice *decimal.Decimal
	RelatedTheoryClassID  *uuid.UUID
	Schedule              Schedule
	MaxStudents           int
	CurrentStudents       int
	Status                ClassStatus
	IsStudyPack           bool
}

// DisplayName returns the label used on reports
func (c *Class) DisplayName() string {
	if c.Stream == "" {
		return c.Subject
	}
	return c.Subject + " (" + c.Stream + ")"
}

// OffersTheoryDiscount reports whether this class is a revision course with a
// configured discount for holders of its related theory course.
func (c *Class) OffersTheoryDiscount() bool {
	return c.CourseType == CourseTypeRevision &&
		c.RelatedTheoryClassID != nil &&
		c.RevisionDiscountPrice != nil
}
