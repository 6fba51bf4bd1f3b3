package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/infrastructure/persistence/models"
)

// GormClassDirectory reads classes from the shared classes table
type GormClassDirectory struct {
	db *gorm.DB
}

// NewGormClassDirectory creates a new GormClassDirectory
func NewGormClassDirectory(db *gorm.DB) *GormClassDirectory {
	return &GormClassDirectory{db: db}
}

// GetClass returns a class or catalog.ErrClassNotFound
func (d *GormClassDirectory) GetClass(ctx context.Context, id uuid.UUID) (*catalog.Class, error) {
	var row models.ClassModel
	if err := d.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrClassNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// GetClasses returns the known classes among ids
func (d *GormClassDirectory) GetClasses(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Class, error) {
	out := make(map[uuid.UUID]*catalog.Class, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.ClassModel
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = rows[i].ToDomain()
	}
	return out, nil
}

// GormStudentDirectory checks student existence
type GormStudentDirectory struct {
	db *gorm.DB
}

// NewGormStudentDirectory creates a new GormStudentDirectory
func NewGormStudentDirectory(db *gorm.DB) *GormStudentDirectory {
	return &GormStudentDirectory{db: db}
}

// StudentExists reports whether the student row exists
func (d *GormStudentDirectory) StudentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&models.StudentModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GormCardRegistry reads issued cards
type GormCardRegistry struct {
	db *gorm.DB
}

// NewGormCardRegistry creates a new GormCardRegistry
func NewGormCardRegistry(db *gorm.DB) *GormCardRegistry {
	return &GormCardRegistry{db: db}
}

// GetActiveCard returns the newest unrevoked card whose validity window
// contains at, or nil
func (r *GormCardRegistry) GetActiveCard(ctx context.Context, studentID, classID uuid.UUID, at time.Time) (*catalog.Card, error) {
	var rows []models.CardModel
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND class_id = ? AND revoked_at IS NULL", studentID, classID).
		Where("valid_from <= ? AND valid_until >= ?", at, at).
		Order("valid_from DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if c := rows[i].ToDomain(); c.IsValidAt(at) {
			return c, nil
		}
	}
	return nil, nil
}

// GormPromoCodeRepository looks up promo codes
type GormPromoCodeRepository struct {
	db *gorm.DB
}

// NewGormPromoCodeRepository creates a new GormPromoCodeRepository
func NewGormPromoCodeRepository(db *gorm.DB) *GormPromoCodeRepository {
	return &GormPromoCodeRepository{db: db}
}

// FindByCode returns the promo code or nil. Codes are stored normalized.
func (r *GormPromoCodeRepository) FindByCode(ctx context.Context, code string) (*catalog.PromoCode, error) {
	var row models.PromoCodeModel
	err := r.db.WithContext(ctx).Where("code = ?", catalog.NormalizePromoCode(code)).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.ToDomain(), nil
}
