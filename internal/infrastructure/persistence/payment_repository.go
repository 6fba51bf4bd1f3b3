package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/domain/shared"
	"github.com/tuitionhub/backend/internal/infrastructure/persistence/models"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByTransactionID finds a payment by its transaction ID
func (r *GormPaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new payment. A transaction ID collision returns ErrAlreadyExists.
func (r *GormPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	model := models.PaymentModelFromDomain(p)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SaveWithLock updates the payment only if its version is unchanged and
// bumps the version. A lost race returns ErrConcurrencyConflict.
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, p *payment.Payment) error {
	expected := p.Version
	updatedAt := shared.Now()

	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", p.ID, expected).
		Updates(map[string]any{
			"status":              p.Status,
			"unsettled":           p.Unsettled,
			"settlement_error":    p.SettlementError,
			"settlement_attempts": p.SettlementAttempts,
			"enrollment_id":       p.EnrollmentID,
			"gateway_reference":   p.GatewayReference,
			"processed_at":        p.ProcessedAt,
			"settled_at":          p.SettledAt,
			"notes":               p.Notes,
			"version":             expected + 1,
			"updated_at":          updatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where("id = ?", p.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return payment.ErrPaymentNotFound
		}
		return shared.ErrConcurrencyConflict
	}

	p.Version = expected + 1
	p.UpdatedAt = updatedAt
	return nil
}

// FindAll finds payments matching the filter
func (r *GormPaymentRepository) FindAll(ctx context.Context, filter payment.PaymentFilter) ([]payment.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CollectedBy != nil {
		query = query.Where("collected_by = ?", *filter.CollectedBy)
	}
	if filter.Unsettled != nil {
		if *filter.Unsettled {
			query = query.Where(awaitingSettlement)
		} else {
			query = query.Where("NOT (" + awaitingSettlement + ")")
		}
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, PaymentSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder)
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.PaymentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toPayments(rows), total, nil
}

// awaitingSettlement matches paid payments without a materialized enrollment.
// A missing enrollment_id counts even when the unsettled flag was lost.
const awaitingSettlement = "status = 'paid' AND (unsettled OR enrollment_id IS NULL)"

// FindUnsettled returns paid payments whose enrollment is not materialized,
// oldest first
func (r *GormPaymentRepository) FindUnsettled(ctx context.Context, limit int) ([]payment.Payment, error) {
	query := r.db.WithContext(ctx).
		Where(awaitingSettlement).
		Order("processed_at ASC, created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.PaymentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPayments(rows), nil
}

// CountUnsettled counts paid payments awaiting settlement
func (r *GormPaymentRepository) CountUnsettled(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where(awaitingSettlement).
		Count(&count).Error
	return count, err
}

// FindSettledCollectedBy returns payments collected by the cashier with
// processed_at in [from, to] whose enrollment was materialized
func (r *GormPaymentRepository) FindSettledCollectedBy(ctx context.Context, cashierID uuid.UUID, from, to time.Time) ([]payment.Payment, error) {
	var rows []models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND unsettled = ? AND enrollment_id IS NOT NULL AND collected_by = ?", payment.StatusPaid, false, cashierID).
		Where("processed_at >= ? AND processed_at <= ?", from, to).
		Order("processed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toPayments(rows), nil
}

func toPayments(rows []models.PaymentModel) []payment.Payment {
	out := make([]payment.Payment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}
