// Package enrollment turns successful payments into active enrollments.
package enrollment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/enrollment"
	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/domain/shared"
	"github.com/tuitionhub/backend/internal/infrastructure/telemetry"
)

// Materializer creates or renews the enrollment for a paid payment
type Materializer struct {
	repo           enrollment.EnrollmentRepository
	eventPublisher shared.EventPublisher
	metrics        *telemetry.SettlementMetrics
	logger         *zap.Logger
}

// MaterializerConfig holds the collaborators of the materializer
type MaterializerConfig struct {
	Repo           enrollment.EnrollmentRepository
	EventPublisher shared.EventPublisher
	Metrics        *telemetry.SettlementMetrics
	Logger         *zap.Logger
}

// NewMaterializer creates a new Materializer
func NewMaterializer(cfg MaterializerConfig) *Materializer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		repo:           cfg.Repo,
		eventPublisher: cfg.EventPublisher,
		metrics:        cfg.Metrics,
		logger:         logger,
	}
}

// Materialize applies a paid payment. The repository upsert is atomic per
// (student, class), so concurrent payments for the same pair converge on one
// active enrollment and replays of the same transaction add no history.
func (m *Materializer) Materialize(ctx context.Context, p *payment.Payment, class *catalog.Class) (*enrollment.Enrollment, enrollment.Kind, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "enrollment", "materialize",
		telemetry.SpanAttrTransactionID, p.TransactionID,
		telemetry.SpanAttrStudentID, p.StudentID.String(),
		telemetry.SpanAttrClassID, p.ClassID.String(),
	)
	defer span.End()

	if p.Status != payment.StatusPaid {
		err := shared.NewInvalidStateError(fmt.Sprintf("Cannot materialize enrollment for payment in %s status", p.Status))
		telemetry.RecordError(span, err)
		return nil, "", err
	}
	if class == nil || class.ID != p.ClassID {
		err := shared.NewValidationError("Class does not match the payment")
		telemetry.RecordError(span, err)
		return nil, "", err
	}

	paidAt := shared.Now()
	if p.ProcessedAt != nil {
		paidAt = *p.ProcessedAt
	}
	settlement := enrollment.Settlement{
		PaymentID:     p.ID,
		TransactionID: p.TransactionID,
		StudentID:     p.StudentID,
		ClassID:       p.ClassID,
		Amount:        p.Amount(),
		Method:        p.PaymentMethod.String(),
		PaidAt:        paidAt,
		Frequency:     class.Schedule.Frequency,
	}
	if err := settlement.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, "", err
	}

	e, kind, err := m.repo.Upsert(ctx, settlement)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, "", fmt.Errorf("failed to upsert enrollment: %w", err)
	}

	m.logger.Info("Enrollment materialized",
		zap.String("enrollment_id", e.ID.String()),
		zap.String("transaction_id", p.TransactionID),
		zap.String("kind", string(kind)),
		zap.Time("next_payment_date", e.NextPaymentDate))
	m.metrics.RecordEnrollment(ctx, string(kind))

	if m.eventPublisher != nil {
		if err := m.eventPublisher.Publish(ctx, enrollment.NewMaterializedEvent(e, p.TransactionID, kind)); err != nil {
			m.logger.Warn("Failed to publish enrollment materialized event",
				zap.String("enrollment_id", e.ID.String()),
				zap.Error(err))
		}
	}
	return e, kind, nil
}

// Get returns an enrollment with its payment history
func (m *Materializer) Get(ctx context.Context, id uuid.UUID) (*EnrollmentResponse, error) {
	e, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToEnrollmentResponse(e)
	return &resp, nil
}

// ListForStudent returns every enrollment of a student, newest first
func (m *Materializer) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]EnrollmentResponse, error) {
	if studentID == uuid.Nil {
		return nil, shared.NewValidationError("Student ID is required")
	}
	list, err := m.repo.FindByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return ToEnrollmentResponses(list), nil
}

// Cancel ends an active enrollment so the pair can be enrolled again
func (m *Materializer) Cancel(ctx context.Context, id uuid.UUID) (*EnrollmentResponse, error) {
	e, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.Cancel(); err != nil {
		return nil, err
	}
	if err := m.repo.UpdateStatus(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to cancel enrollment: %w", err)
	}
	m.logger.Info("Enrollment cancelled", zap.String("enrollment_id", id.String()))
	resp := ToEnrollmentResponse(e)
	return &resp, nil
}
