package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tuitionhub/backend/internal/domain/cashsession"
	"github.com/tuitionhub/backend/internal/infrastructure/persistence/models"
)

// GormReportRepository implements cashsession.ReportRepository using GORM.
// Reports are append-only; the only update path refuses final rows.
type GormReportRepository struct {
	db *gorm.DB
}

// NewGormReportRepository creates a new GormReportRepository
func NewGormReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{db: db}
}

// Append inserts a report row
func (r *GormReportRepository) Append(ctx context.Context, report *cashsession.SessionReport) error {
	row, err := models.SessionReportModelFromDomain(report)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// FindByID finds a report by ID
func (r *GormReportRepository) FindByID(ctx context.Context, id uuid.UUID) (*cashsession.SessionReport, error) {
	var row models.SessionReportModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cashsession.ErrReportNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// FindFinal returns the final report of a session, or nil while it is open
func (r *GormReportRepository) FindFinal(ctx context.Context, sessionID uuid.UUID) (*cashsession.SessionReport, error) {
	var row models.SessionReportModel
	err := r.db.WithContext(ctx).Where("session_id = ? AND is_final = ?", sessionID, true).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// FindAll finds reports matching the filter, newest first by default
func (r *GormReportRepository) FindAll(ctx context.Context, filter cashsession.ReportFilter) ([]cashsession.SessionReport, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SessionReportModel{})
	if filter.CashierID != nil {
		query = query.Where("cashier_id = ?", *filter.CashierID)
	}
	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}
	if filter.From != nil {
		query = query.Where("session_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("session_date <= ?", *filter.To)
	}
	if filter.IsFinal != nil {
		query = query.Where("is_final = ?", *filter.IsFinal)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, ReportSortFields, "generated_at")
	query = query.Order(sortField + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.SessionReportModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]cashsession.SessionReport, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// UpdateNotes sets the notes of a draft report. The is_final guard is part
// of the statement, so a final row is never modified.
func (r *GormReportRepository) UpdateNotes(ctx context.Context, report *cashsession.SessionReport) error {
	res := r.db.WithContext(ctx).Model(&models.SessionReportModel{}).
		Where("id = ? AND is_final = ?", report.ID, false).
		Update("notes", report.Notes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	existing, err := r.FindByID(ctx, report.ID)
	if err != nil {
		return err
	}
	if existing.IsFinal {
		return cashsession.ErrImmutable(report.ID)
	}
	return nil
}
