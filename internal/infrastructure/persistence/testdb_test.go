package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/fee"
	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/infrastructure/persistence/models"
)

// setupTestDB opens a private in-memory SQLite database with every table of
// the settlement schema. A single connection keeps the shared-cache database
// alive and serializes transactions.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.PaymentModel{},
		&models.EnrollmentModel{},
		&models.EnrollmentPaymentModel{},
		&models.CashSessionModel{},
		&models.SessionEntryModel{},
		&models.CashMovementModel{},
		&models.SessionReportModel{},
		&models.ClassModel{},
		&models.StudentModel{},
		&models.CardModel{},
		&models.PromoCodeModel{},
	)
	require.NoError(t, err)
	return db
}

func standardBreakdown(amount int64) fee.Breakdown {
	b := fee.Breakdown{
		BasePrice: decimal.NewFromInt(amount),
		Pricing:   fee.PricingStandard,
		CardType:  catalog.CardTypeFull,
	}
	b.TotalAmount = b.ExpectedTotal()
	return b
}

func newTestPayment(t *testing.T, studentID, classID uuid.UUID, amount int64, collectedBy *uuid.UUID) *payment.Payment {
	t.Helper()
	txID := payment.RandomTransactionIDGenerator{}.NewTransactionID(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	p, err := payment.NewPayment(txID, studentID, classID, standardBreakdown(amount), payment.MethodCash, collectedBy, "")
	require.NoError(t, err)
	p.ClearDomainEvents()
	return p
}

func utc(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}
