// Package fee quotes class fees by loading the calculator inputs from the
// class, card, promo and enrollment stores.
package fee

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/enrollment"
	"github.com/tuitionhub/backend/internal/domain/fee"
	"github.com/tuitionhub/backend/internal/domain/shared"
	"github.com/tuitionhub/backend/internal/infrastructure/telemetry"
)

// Quote errors
var (
	ErrUnknownClass   = shared.NewValidationError("Class does not exist")
	ErrUnknownStudent = shared.NewValidationError("Student does not exist")
)

// EnrollmentLookup finds the active enrollment of a pair
type EnrollmentLookup interface {
	FindActive(ctx context.Context, studentID, classID uuid.UUID) (*enrollment.Enrollment, error)
}

// QuoteServiceConfig holds the collaborators of the quote service
type QuoteServiceConfig struct {
	Classes     catalog.ClassDirectory
	Students    catalog.StudentDirectory
	Cards       catalog.CardRegistry
	Promos      catalog.PromoCodeRepository
	Enrollments EnrollmentLookup
	Calculator  *fee.Calculator
	Logger      *zap.Logger
}

// QuoteService computes fee quotes
type QuoteService struct {
	classes     catalog.ClassDirectory
	students    catalog.StudentDirectory
	cards       catalog.CardRegistry
	promos      catalog.PromoCodeRepository
	enrollments EnrollmentLookup
	calculator  *fee.Calculator
	logger      *zap.Logger
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteService{
		classes:     cfg.Classes,
		students:    cfg.Students,
		cards:       cfg.Cards,
		promos:      cfg.Promos,
		enrollments: cfg.Enrollments,
		calculator:  cfg.Calculator,
		logger:      logger,
	}
}

// Quote returns the fee breakdown for a student and class at the current time
func (s *QuoteService) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee", "quote",
		telemetry.SpanAttrStudentID, req.StudentID.String(),
		telemetry.SpanAttrClassID, req.ClassID.String(),
	)
	defer span.End()

	resp, err := s.quote(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return resp, nil
}

func (s *QuoteService) quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	if req.StudentID == uuid.Nil {
		return nil, shared.NewValidationError("Student ID is required")
	}
	if req.ClassID == uuid.Nil {
		return nil, shared.NewValidationError("Class ID is required")
	}

	class, err := s.classes.GetClass(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, catalog.ErrClassNotFound) {
			return nil, ErrUnknownClass
		}
		return nil, fmt.Errorf("failed to load class: %w", err)
	}

	if s.students != nil {
		exists, err := s.students.StudentExists(ctx, req.StudentID)
		if err != nil {
			return nil, fmt.Errorf("failed to check student: %w", err)
		}
		if !exists {
			return nil, ErrUnknownStudent
		}
	}

	at := shared.Now()
	in := fee.Input{
		Class:      class,
		Collection: fee.CollectionPreference(req.Collection),
		At:         at,
	}

	if s.cards != nil {
		card, err := s.cards.GetActiveCard(ctx, req.StudentID, req.ClassID, at)
		if err != nil {
			return nil, fmt.Errorf("failed to load card: %w", err)
		}
		in.Card = card
	}

	if code := catalog.NormalizePromoCode(req.PromoCode); code != "" && s.promos != nil {
		promo, err := s.promos.FindByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to load promo code: %w", err)
		}
		if promo == nil {
			s.logger.Debug("Unknown promo code ignored", zap.String("promo_code", code))
		}
		in.Promo = promo
	}

	if class.OffersTheoryDiscount() && s.enrollments != nil {
		owned, err := s.enrollments.FindActive(ctx, req.StudentID, *class.RelatedTheoryClassID)
		if err != nil {
			return nil, fmt.Errorf("failed to check theory enrollment: %w", err)
		}
		in.TheoryOwned = owned != nil && owned.IsActive()
	}

	breakdown, err := s.calculator.Calculate(in)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Fee quoted",
		zap.String("student_id", req.StudentID.String()),
		zap.String("class_id", req.ClassID.String()),
		zap.String("pricing", string(breakdown.Pricing)),
		zap.String("total", breakdown.TotalAmount.String()))

	return ToQuoteResponse(req.StudentID, req.ClassID, class.DisplayName(), breakdown), nil
}
