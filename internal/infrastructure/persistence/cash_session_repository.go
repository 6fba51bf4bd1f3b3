package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tuitionhub/backend/internal/domain/cashsession"
	"github.com/tuitionhub/backend/internal/domain/shared"
	"github.com/tuitionhub/backend/internal/infrastructure/persistence/models"
)

// GormSessionRepository implements cashsession.SessionRepository using GORM.
// Every write that changes session counters goes through a version CAS.
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GormSessionRepository
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// Create inserts an open session. The partial unique index on open sessions
// turns a second open session for the cashier into ErrSessionAlreadyOpen.
func (r *GormSessionRepository) Create(ctx context.Context, s *cashsession.CashSession) error {
	if err := r.db.WithContext(ctx).Create(models.CashSessionModelFromDomain(s)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return cashsession.ErrSessionAlreadyOpen
		}
		return err
	}
	return nil
}

// FindByID finds a session by ID
func (r *GormSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*cashsession.CashSession, error) {
	var model models.CashSessionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cashsession.ErrSessionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpenByCashier returns the cashier's open session, or nil
func (r *GormSessionRepository) FindOpenByCashier(ctx context.Context, cashierID uuid.UUID) (*cashsession.CashSession, error) {
	var model models.CashSessionModel
	err := r.db.WithContext(ctx).
		Where("cashier_id = ? AND status = ?", cashierID, cashsession.StatusOpen).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// AddEntry writes a ledger entry and the session counters together. It
// returns false without touching the session when the transaction is already
// attributed.
func (r *GormSessionRepository) AddEntry(ctx context.Context, s *cashsession.CashSession, entry *cashsession.SessionEntry) (bool, error) {
	added := false
	newVersion := s.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoNothing: true,
		}).Create(models.SessionEntryModelFromDomain(entry))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		v, err := r.saveCounters(tx, s)
		if err != nil {
			return err
		}
		newVersion = v
		added = true
		return nil
	})
	if err != nil {
		return false, err
	}
	s.Version = newVersion
	return added, nil
}

// FindLedger reads the session row and its entries inside one read-only
// repeatable-read transaction. AddEntry writes both together, so the snapshot
// never shows counters ahead of or behind the entries.
func (r *GormSessionRepository) FindLedger(ctx context.Context, sessionID uuid.UUID) (*cashsession.CashSession, []cashsession.SessionEntry, error) {
	var (
		session models.CashSessionModel
		rows    []models.SessionEntryModel
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", sessionID).Take(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return cashsession.ErrSessionNotFound
			}
			return err
		}
		return tx.Where("session_id = ?", sessionID).
			Order("settled_at ASC").
			Find(&rows).Error
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}

	entries := make([]cashsession.SessionEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return session.ToDomain(), entries, nil
}

// RecordCashOut writes the movement and the increased cash-out total together
func (r *GormSessionRepository) RecordCashOut(ctx context.Context, s *cashsession.CashSession, m *cashsession.CashMovement) error {
	newVersion := s.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := r.saveCounters(tx, s)
		if err != nil {
			return err
		}
		newVersion = v
		return tx.Create(models.CashMovementModelFromDomain(m)).Error
	})
	if err != nil {
		return err
	}
	s.Version = newVersion
	return nil
}

// FindCashOuts returns the session's cash-outs in order
func (r *GormSessionRepository) FindCashOuts(ctx context.Context, sessionID uuid.UUID) ([]cashsession.CashMovement, error) {
	var rows []models.CashMovementModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]cashsession.CashMovement, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// CloseWithReport persists the closed session and its final report in one
// transaction
func (r *GormSessionRepository) CloseWithReport(ctx context.Context, s *cashsession.CashSession, report *cashsession.SessionReport) error {
	row, err := models.SessionReportModelFromDomain(report)
	if err != nil {
		return err
	}
	newVersion := s.Version
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := r.saveCounters(tx, s)
		if err != nil {
			return err
		}
		newVersion = v
		if err := tx.Create(row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.NewInvalidStateError("Session already has a final report")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Version = newVersion
	return nil
}

// saveCounters writes the mutable session columns under a version check and
// returns the new version
func (r *GormSessionRepository) saveCounters(tx *gorm.DB, s *cashsession.CashSession) (int, error) {
	next := s.Version + 1
	res := tx.Model(&models.CashSessionModel{}).
		Where("id = ? AND version = ?", s.ID, s.Version).
		Updates(map[string]any{
			"status":            s.Status,
			"end_time":          s.EndTime,
			"total_collections": s.TotalCollections,
			"total_receipts":    s.TotalReceipts,
			"cash_out_amount":   s.CashOutAmount,
			"version":           next,
			"updated_at":        shared.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.CashSessionModel{}).Where("id = ?", s.ID).Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, cashsession.ErrSessionNotFound
		}
		return 0, shared.ErrConcurrencyConflict
	}
	return next, nil
}
