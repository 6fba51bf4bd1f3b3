package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tuitionhub/backend/internal/domain/enrollment"
	"github.com/tuitionhub/backend/internal/domain/shared"
	"github.com/tuitionhub/backend/internal/infrastructure/persistence/models"
)

// GormEnrollmentRepository implements EnrollmentRepository using GORM
type GormEnrollmentRepository struct {
	db *gorm.DB
}

// NewGormEnrollmentRepository creates a new GormEnrollmentRepository
func NewGormEnrollmentRepository(db *gorm.DB) *GormEnrollmentRepository {
	return &GormEnrollmentRepository{db: db}
}

// Upsert applies a settlement in one transaction. The enrollment row is
// written with INSERT ... ON CONFLICT on the active (student, class) pair and
// the history row with ON CONFLICT (transaction_id) DO NOTHING, so concurrent
// settlements of the same pair converge on one active row and replays of the
// same transaction leave the stored enrollment untouched.
func (r *GormEnrollmentRepository) Upsert(ctx context.Context, s enrollment.Settlement) (*enrollment.Enrollment, enrollment.Kind, error) {
	if err := s.Validate(); err != nil {
		return nil, "", err
	}

	var (
		result *enrollment.Enrollment
		kind   enrollment.Kind
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior models.EnrollmentPaymentModel
		err := tx.Where("transaction_id = ?", s.TransactionID).Take(&prior).Error
		switch {
		case err == nil:
			e, err := r.load(tx, prior.EnrollmentID)
			if err != nil {
				return err
			}
			result = e
			kind = enrollment.KindRenewal
			if len(e.PaymentHistory) > 0 && e.PaymentHistory[0].TransactionID == s.TransactionID {
				kind = enrollment.KindNew
			}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		candidate, err := enrollment.NewFromSettlement(s)
		if err != nil {
			return err
		}
		row := models.EnrollmentModelFromDomain(candidate)
		err = tx.Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: "student_id"}, {Name: "class_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{activePairPredicate}},
			DoUpdates: clause.AssignmentColumns([]string{
				"payment_id", "amount_paid", "payment_method", "payment_status", "next_payment_date", "updated_at",
			}),
		}).Omit(clause.Associations).Create(row).Error
		if err != nil {
			return err
		}

		var active models.EnrollmentModel
		if err := tx.Where("student_id = ? AND class_id = ? AND status = ?", s.StudentID, s.ClassID, enrollment.StatusActive).
			Take(&active).Error; err != nil {
			return err
		}
		kind = enrollment.KindRenewal
		if active.ID == candidate.ID {
			kind = enrollment.KindNew
		}

		entry := s.HistoryEntry()
		history := models.EnrollmentPaymentModel{
			ID:            uuid.New(),
			EnrollmentID:  active.ID,
			TransactionID: entry.TransactionID,
			PaidAt:        entry.Date,
			Amount:        entry.Amount,
			Method:        entry.Method,
			Status:        entry.Status,
			CreatedAt:     shared.Now(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoNothing: true,
		}).Create(&history).Error; err != nil {
			return err
		}

		result, err = r.load(tx, active.ID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return result, kind, nil
}

// FindByID finds an enrollment with its payment history
func (r *GormEnrollmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*enrollment.Enrollment, error) {
	return r.load(r.db.WithContext(ctx), id)
}

// FindActive returns the active enrollment of a pair, or nil
func (r *GormEnrollmentRepository) FindActive(ctx context.Context, studentID, classID uuid.UUID) (*enrollment.Enrollment, error) {
	var model models.EnrollmentModel
	err := r.db.WithContext(ctx).
		Preload("History", withHistoryOrder).
		Where("student_id = ? AND class_id = ? AND status = ?", studentID, classID, enrollment.StatusActive).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStudent returns every enrollment of a student, newest first
func (r *GormEnrollmentRepository) FindByStudent(ctx context.Context, studentID uuid.UUID) ([]enrollment.Enrollment, error) {
	var rows []models.EnrollmentModel
	err := r.db.WithContext(ctx).
		Preload("History", withHistoryOrder).
		Where("student_id = ?", studentID).
		Order("enrollment_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]enrollment.Enrollment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// UpdateStatus persists a status change
func (r *GormEnrollmentRepository) UpdateStatus(ctx context.Context, e *enrollment.Enrollment) error {
	result := r.db.WithContext(ctx).Model(&models.EnrollmentModel{}).
		Where("id = ?", e.ID).
		Updates(map[string]any{
			"status":     e.Status,
			"updated_at": e.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return enrollment.ErrEnrollmentNotFound
	}
	return nil
}

func (r *GormEnrollmentRepository) load(db *gorm.DB, id uuid.UUID) (*enrollment.Enrollment, error) {
	var model models.EnrollmentModel
	if err := db.Preload("History", withHistoryOrder).Where("id = ?", id).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, enrollment.ErrEnrollmentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// activePairPredicate must repeat the partial index predicate literally;
// a bound parameter would not match the index during conflict inference.
var activePairPredicate = clause.Expr{SQL: "status = 'active'"}

func withHistoryOrder(db *gorm.DB) *gorm.DB {
	return db.Order("paid_at ASC, created_at ASC")
}
