package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	feeapp "github.com/tuitionhub/backend/internal/application/fee"
	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/enrollment"
	"github.com/tuitionhub/backend/internal/domain/fee"
	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

type paymentFixture struct {
	repo         *MockPaymentRepository
	classes      *MockClassDirectory
	students     *MockStudentDirectory
	quoter       *MockQuoter
	materializer *MockMaterializer
	gateway      *MockGateway
	publisher    *MockEventPublisher
	ids          *sequenceIDGenerator
	service      *PaymentService
	class        *catalog.Class
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		repo:         new(MockPaymentRepository),
		classes:      new(MockClassDirectory),
		students:     new(MockStudentDirectory),
		quoter:       new(MockQuoter),
		materializer: new(MockMaterializer),
		gateway:      new(MockGateway),
		publisher:    new(MockEventPublisher),
		ids:          &sequenceIDGenerator{ids: []string{"TXN-20260301-0001", "TXN-20260301-0002"}},
		class: &catalog.Class{
			ID:        uuid.New(),
			Subject:   "Combined Maths",
			BasePrice: decimal.NewFromInt(2500),
			Schedule:  catalog.Schedule{Frequency: catalog.FrequencyMonthly},
		},
	}
	f.service = NewPaymentService(PaymentServiceConfig{
		Repo:           f.repo,
		Classes:        f.classes,
		Students:       f.students,
		Quoter:         f.quoter,
		Materializer:   f.materializer,
		Gateway:        f.gateway,
		IDGenerator:    f.ids,
		EventPublisher: f.publisher,
		MaxAttempts:    3,
		RetryDelay:     0,
	})
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

func standardBreakdown(total int64) fee.Breakdown {
	b := fee.Breakdown{
		BasePrice: decimal.NewFromInt(total),
		Pricing:   fee.PricingStandard,
		CardType:  catalog.CardTypeFull,
	}
	b.TotalAmount = b.ExpectedTotal()
	return b
}

func (f *paymentFixture) newPayment(t *testing.T, status payment.Status) *payment.Payment {
	t.Helper()
	p, err := payment.NewPayment("TXN-20260301-0001", uuid.New(), f.class.ID, standardBreakdown(2500), payment.MethodOnline, nil, "")
	require.NoError(t, err)
	p.ClearDomainEvents()
	switch status {
	case payment.StatusPending:
		require.NoError(t, p.MarkPending("ref-1"))
	case payment.StatusPaid:
		require.NoError(t, p.MarkPending("ref-1"))
		require.NoError(t, p.MarkPaid("ref-1", ""))
	case payment.StatusFailed:
		require.NoError(t, p.MarkFailed("declined"))
	case payment.StatusCancelled:
		require.NoError(t, p.Cancel("changed mind"))
	}
	p.ClearDomainEvents()
	return p
}

func paidResult(txID string, amount int64) payment.GatewayResult {
	return payment.GatewayResult{
		TransactionID: txID,
		Status:        payment.GatewayStatusPaid,
		Amount:        decimal.NewFromInt(amount),
		PaymentMethod: payment.MethodOnline,
		Reference:     "gw-123",
	}
}

// =============================================================================
// Create
// =============================================================================

func TestPaymentService_Create_QuotesWhenNoBreakdown(t *testing.T) {
	f := newPaymentFixture(t)
	studentID := uuid.New()

	f.quoter.On("Quote", mock.Anything, feeapp.QuoteRequest{StudentID: studentID, ClassID: f.class.ID, PromoCode: "X", Collection: "counter"}).
		Return(&feeapp.QuoteResponse{Breakdown: standardBreakdown(2500)}, nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).Return(nil)

	resp, err := f.service.Create(context.Background(), CreatePaymentRequest{
		StudentID:     studentID,
		ClassID:       f.class.ID,
		PaymentMethod: "online",
		PromoCode:     "X",
		Collection:    "counter",
	})
	require.NoError(t, err)
	assert.Equal(t, "TXN-20260301-0001", resp.TransactionID)
	assert.Equal(t, "created", resp.Status)
	assert.True(t, resp.Amount.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, []string{payment.EventTypePaymentCreated}, collectEventTypes(f.publisher))
}

func TestPaymentService_Create_RegeneratesOnCollision(t *testing.T) {
	f := newPaymentFixture(t)
	studentID := uuid.New()
	b := standardBreakdown(2500)

	f.classes.On("GetClass", mock.Anything, f.class.ID).Return(f.class, nil)
	f.students.On("StudentExists", mock.Anything, studentID).Return(true, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists).Once()
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	resp, err := f.service.Create(context.Background(), CreatePaymentRequest{
		StudentID:     studentID,
		ClassID:       f.class.ID,
		PaymentMethod: "cash",
		FeeBreakdown:  &b,
	})
	require.NoError(t, err)
	assert.Equal(t, "TXN-20260301-0002", resp.TransactionID)
	f.repo.AssertNumberOfCalls(t, "Create", 2)
}

func TestPaymentService_Create_Validation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *paymentFixture) CreatePaymentRequest
	}{
		{
			name: "missing student",
			setup: func(f *paymentFixture) CreatePaymentRequest {
				return CreatePaymentRequest{ClassID: f.class.ID, PaymentMethod: "cash"}
			},
		},
		{
			name: "missing class",
			setup: func(f *paymentFixture) CreatePaymentRequest {
				return CreatePaymentRequest{StudentID: uuid.New(), PaymentMethod: "cash"}
			},
		},
		{
			name: "unknown method",
			setup: func(f *paymentFixture) CreatePaymentRequest {
				return CreatePaymentRequest{StudentID: uuid.New(), ClassID: f.class.ID, PaymentMethod: "cheque"}
			},
		},
		{
			name: "negative total in breakdown",
			setup: func(f *paymentFixture) CreatePaymentRequest {
				studentID := uuid.New()
				f.classes.On("GetClass", mock.Anything, f.class.ID).Return(f.class, nil)
				f.students.On("StudentExists", mock.Anything, studentID).Return(true, nil)
				b := standardBreakdown(2500)
				b.TotalAmount = decimal.NewFromInt(-1)
				return CreatePaymentRequest{StudentID: studentID, ClassID: f.class.ID, PaymentMethod: "cash", FeeBreakdown: &b}
			},
		},
		{
			name: "breakdown for another price",
			setup: func(f *paymentFixture) CreatePaymentRequest {
				studentID := uuid.New()
				f.classes.On("GetClass", mock.Anything, f.class.ID).Return(f.class, nil)
				f.students.On("StudentExists", mock.Anything, studentID).Return(true, nil)
				b := standardBreakdown(100)
				return CreatePaymentRequest{StudentID: studentID, ClassID: f.class.ID, PaymentMethod: "cash", FeeBreakdown: &b}
			},
		},
		{
			name: "unknown student",
			setup: func(f *paymentFixture) CreatePaymentRequest {
				studentID := uuid.New()
				f.classes.On("GetClass", mock.Anything, f.class.ID).Return(f.class, nil)
				f.students.On("StudentExists", mock.Anything, studentID).Return(false, nil)
				b := standardBreakdown(2500)
				return CreatePaymentRequest{StudentID: studentID, ClassID: f.class.ID, PaymentMethod: "cash", FeeBreakdown: &b}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			_, err := f.service.Create(context.Background(), tt.setup(f))
			assert.ErrorIs(t, err, shared.ErrValidation)
			f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

// =============================================================================
// Process
// =============================================================================

func TestPaymentService_Process_PaidMaterializesEnrollment(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.newPayment(t, payment.StatusCreated)
	enr := &enrollment.Enrollment{BaseEntity: shared.NewBaseEntity()}

	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)
	f.repo.On("SaveWithLock", mock.Anything, p).Return(nil)
	f.classes.On("GetClass", mock.Anything, f.class.ID).Return(f.class, nil)
	f.materializer.On("Materialize", mock.Anything, p, f.class).Return(enr, enrollment.KindNew, nil)

	res, err := f.service.Process(context.Background(), p.TransactionID, paidResult(p.TransactionID, 2500))
	require.NoError(t, err)

	assert.False(t, res.Replayed)
	assert.False(t, res.Unsettled)
	assert.Equal(t, "paid", res.Payment.Status)
	assert.Equal(t, "gw-123", res.Payment.GatewayReference)
	require.NotNil(t, res.EnrollmentID)
	assert.Equal(t, enr.ID, *res.EnrollmentID)
	assert.Equal(t, "new", res.EnrollmentKind)
	assert.True(t, p.IsSettled())
	assert.NotNil(t, p.ProcessedAt)

	f.repo.AssertNumberOfCalls(t, "SaveWithLock", 2)
	assert.Contains(t, collectEventTypes(f.publisher), payment.EventTypePaymentSettled)
}

func TestPaymentService_Process_ReplayOfTerminalStatus(t *testing.T) {
	for _, status := range []payment.Status{payment.StatusPaid, payment.StatusFailed, payment.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newPaymentFixture(t)
			p := f.newPayment(t, status)
			version := p.Version
			f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)

			res, err := f.service.Process(context.Background(), p.TransactionID, paidResult(p.TransactionID, 2500))
			require.NoError(t, err)
			assert.True(t, res.Replayed)
			assert.Equal(t, string(status), res.Payment.Status)
			assert.Equal(t, version, p.Version)

			f.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
			f.materializer.AssertNotCalled(t, "Materialize", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentService_Process_AmountMismatch(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.newPayment(t, payment.StatusPending)
	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)

	_, err := f.service.Process(context.Background(), p.TransactionID, paidResult(p.TransactionID, 2400))
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, payment.StatusPending, p.Status)
	f.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestPaymentService_Process_MaterializationFailureFlagsUnsettled(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.newPayment(t, payment.StatusPending)

	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)
	f.repo.On("SaveWithLock", mock.Anything, p).Return(nil)
	f.classes.On("GetClass", mock.Anything, f.class.ID).Return(f.class, nil)
	f.materializer.On("Materialize", mock.Anything, p, f.class).Return(nil, enrollment.Kind(""), errors.New("enrollment store unavailable"))

	res, err := f.service.Process(context.Background(), p.TransactionID, paidResult(p.TransactionID, 2500))
	require.NoError(t, err)

	assert.True(t, res.Unsettled)
	assert.Contains(t, res.SettlementError, "enrollment store unavailable")
	assert.Equal(t, "paid", res.Payment.Status)
	assert.True(t, p.Unsettled)
	assert.Equal(t, 1, p.SettlementAttempts)
	assert.Nil(t, p.EnrollmentID)

	types := collectEventTypes(f.publisher)
	assert.Contains(t, types, payment.EventTypePaymentUnsettled)
	assert.NotContains(t, types, payment.EventTypePaymentSettled)
}

func TestPaymentService_Process_SettlementWriteFailureStaysInBacklog(t *testing.T) {
	tests := []struct {
		name        string
		materialize error
	}{
		{"settled write fails", nil},
		{"unsettled flag write fails", errors.New("enrollment store unavailable")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			p := f.newPayment(t, payment.StatusPending)
			enr := &enrollment.Enrollment{BaseEntity: shared.NewBaseEntity()}

			var stored payment.Payment
			f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil).Once()
			f.repo.On("SaveWithLock", mock.Anything, p).Run(func(args mock.Arguments) {
				stored = *args.Get(1).(*payment.Payment)
			}).Return(nil).Once()
			f.repo.On("SaveWithLock", mock.Anything, p).Return(errors.New("connection reset")).Once()
			f.classes.On("GetClass", mock.Anything, f.class.ID).Return(f.class, nil)
			if tt.materialize != nil {
				f.materializer.On("Materialize", mock.Anything, p, f.class).Return(nil, enrollment.Kind(""), tt.materialize)
			} else {
				f.materializer.On("Materialize", mock.Anything, p, f.class).Return(enr, enrollment.KindNew, nil)
			}

			_, err := f.service.Process(context.Background(), p.TransactionID, paidResult(p.TransactionID, 2500))
			require.Error(t, err)

			assert.Equal(t, payment.StatusPaid, stored.Status)
			assert.True(t, stored.Unsettled, "paid row must be stored awaiting settlement")
			assert.Nil(t, stored.EnrollmentID)
			assert.Nil(t, stored.SettledAt)
			assert.NotContains(t, collectEventTypes(f.publisher), payment.EventTypePaymentSettled)
		})
	}
}

func TestPaymentService_Redrive_LostRaceToConcurrentSettlement(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.newPayment(t, payment.StatusPaid)
	enr := &enrollment.Enrollment{BaseEntity: shared.NewBaseEntity()}

	winner := f.newPayment(t, payment.StatusPaid)
	winner.ID = p.ID
	require.NoError(t, winner.MarkSettled(enr.ID))
	winner.ClearDomainEvents()

	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil).Once()
	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(winner, nil).Once()
	f.repo.On("SaveWithLock", mock.Anything, p).Return(shared.ErrConcurrencyConflict).Once()
	f.classes.On("GetClass", mock.Anything, f.class.ID).Return(f.class, nil)
	f.materializer.On("Materialize", mock.Anything, p, f.class).Return(enr, enrollment.KindRenewal, nil)

	res, err := f.service.Redrive(context.Background(), p.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, res.EnrollmentID)
	assert.Equal(t, enr.ID, *res.EnrollmentID)
	assert.False(t, res.Unsettled)
	assert.True(t, p.IsSettled())
	assert.Empty(t, collectEventTypes(f.publisher), "the winning attempt publishes PaymentSettled")
}

func TestPaymentService_Process_Failed(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.newPayment(t, payment.StatusPending)
	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)
	f.repo.On("SaveWithLock", mock.Anything, p).Return(nil)

	res, err := f.service.Process(context.Background(), p.TransactionID, payment.GatewayResult{
		Status:   payment.GatewayStatusFailed,
		Amount:   decimal.NewFromInt(2500),
		RawNotes: "card declined",
	})
	require.NoError(t, err)
	assert.Equal(t, "failed", res.Payment.Status)
	assert.Contains(t, res.Payment.Notes, "card declined")
	assert.Equal(t, []string{payment.EventTypePaymentFailed}, collectEventTypes(f.publisher))
	f.materializer.AssertNotCalled(t, "Materialize", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_Process_PendingAdvancesCreated(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.newPayment(t, payment.StatusCreated)
	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)
	f.repo.On("SaveWithLock", mock.Anything, p).Return(nil)

	res, err := f.service.Process(context.Background(), p.TransactionID, payment.GatewayResult{Status: payment.GatewayStatusPending, Reference: "gw-9"})
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Payment.Status)
	assert.Equal(t, "gw-9", p.GatewayReference)

	// a second pending notification changes nothing
	_, err = f.service.Process(context.Background(), p.TransactionID, payment.GatewayResult{Status: payment.GatewayStatusPending})
	require.NoError(t, err)
	f.repo.AssertNumberOfCalls(t, "SaveWithLock", 1)
}

func TestPaymentService_Process_LostRaceIsReplay(t *testing.T) {
	f := newPaymentFixture(t)
	stale := f.newPayment(t, payment.StatusPending)
	winner := f.newPayment(t, payment.StatusPaid)

	f.repo.On("FindByTransactionID", mock.Anything, stale.TransactionID).Return(stale, nil).Once()
	f.repo.On("FindByTransactionID", mock.Anything, stale.TransactionID).Return(winner, nil).Once()
	f.repo.On("SaveWithLock", mock.Anything, stale).Return(shared.ErrConcurrencyConflict)

	res, err := f.service.Process(context.Background(), stale.TransactionID, paidResult(stale.TransactionID, 2500))
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	f.materializer.AssertNotCalled(t, "Materialize", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_Process_UnknownStatus(t *testing.T) {
	f := newPaymentFixture(t)
	_, err := f.service.Process(context.Background(), "TXN-X", payment.GatewayResult{Status: "REFUNDED"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestPaymentService_Process_NotFound(t *testing.T) {
	f := newPaymentFixture(t)
	f.repo.On("FindByTransactionID", mock.Anything, "TXN-404").Return(nil, payment.ErrPaymentNotFound)

	_, err := f.service.Process(context.Background(), "TXN-404", paidResult("TXN-404", 1))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// =============================================================================
// Submit
// =============================================================================

func TestPaymentService_Submit(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.newPayment(t, payment.StatusCreated)
	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)
	f.repo.On("SaveWithLock", mock.Anything, p).Return(nil)
	f.gateway.On("InitiateCharge", mock.Anything, mock.MatchedBy(func(req *payment.ChargeRequest) bool {
		return req.TransactionID == p.TransactionID && req.Amount.Equal(decimal.NewFromInt(2500))
	})).Return(&payment.ChargeResponse{Reference: "gw-1", Status: payment.GatewayStatusPending}, nil)

	resp, err := f.service.Submit(context.Background(), p.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "gw-1", resp.GatewayReference)
}

func TestPaymentService_Submit_RetriesThenSucceeds(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.newPayment(t, payment.StatusCreated)
	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)
	f.repo.On("SaveWithLock", mock.Anything, p).Return(nil)
	f.gateway.On("InitiateCharge", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()
	f.gateway.On("InitiateCharge", mock.Anything, mock.Anything).Return(&payment.ChargeResponse{Reference: "gw-2", Status: payment.GatewayStatusPending}, nil).Once()

	resp, err := f.service.Submit(context.Background(), p.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
	f.gateway.AssertNumberOfCalls(t, "InitiateCharge", 2)
}

func TestPaymentService_Submit_ExhaustedMarksFailed(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.newPayment(t, payment.StatusCreated)
	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)
	f.repo.On("SaveWithLock", mock.Anything, p).Return(nil)
	f.gateway.On("InitiateCharge", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := f.service.Submit(context.Background(), p.TransactionID)
	require.Error(t, err)
	assert.Equal(t, shared.CodeGateway, shared.ErrorCode(err))
	assert.Equal(t, payment.StatusFailed, p.Status)
	f.gateway.AssertNumberOfCalls(t, "InitiateCharge", 3)
}

func TestPaymentService_Submit_StopsWhenConcludedElsewhere(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.newPayment(t, payment.StatusCreated)
	paid := f.newPayment(t, payment.StatusPaid)

	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil).Once()
	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(paid, nil)
	f.gateway.On("InitiateCharge", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	resp, err := f.service.Submit(context.Background(), p.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "paid", resp.Status)
	f.gateway.AssertNumberOfCalls(t, "InitiateCharge", 1)
	f.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestPaymentService_Submit_OnlyFromCreated(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.newPayment(t, payment.StatusPending)
	f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)

	_, err := f.service.Submit(context.Background(), p.TransactionID)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	f.gateway.AssertNotCalled(t, "InitiateCharge", mock.Anything, mock.Anything)
}

// =============================================================================
// Counter payments, cancel, re-drive
// =============================================================================

func TestPaymentService_RecordCounterPayment(t *testing.T) {
	f := newPaymentFixture(t)
	studentID := uuid.New()
	cashierID := uuid.New()
	var created *payment.Payment

	f.quoter.On("Quote", mock.Anything, mock.Anything).Return(&feeapp.QuoteResponse{Breakdown: standardBreakdown(2500)}, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*payment.Payment)
	}).Return(nil)
	f.repo.On("FindByTransactionID", mock.Anything, "TXN-20260301-0001").Return(func(context.Context, string) *payment.Payment {
		return created
	}, nil)
	f.repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)
	f.classes.On("GetClass", mock.Anything, f.class.ID).Return(f.class, nil)
	f.materializer.On("Materialize", mock.Anything, mock.Anything, f.class).Return(&enrollment.Enrollment{BaseEntity: shared.NewBaseEntity()}, enrollment.KindRenewal, nil)

	res, err := f.service.RecordCounterPayment(context.Background(), CounterPaymentRequest{
		StudentID: studentID,
		ClassID:   f.class.ID,
		CashierID: cashierID,
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", res.Payment.Status)
	assert.Equal(t, "cash", res.Payment.PaymentMethod)
	require.NotNil(t, res.Payment.CollectedBy)
	assert.Equal(t, cashierID, *res.Payment.CollectedBy)
	assert.Equal(t, "renewal", res.EnrollmentKind)
}

func TestPaymentService_RecordCounterPayment_RequiresCashier(t *testing.T) {
	f := newPaymentFixture(t)
	_, err := f.service.RecordCounterPayment(context.Background(), CounterPaymentRequest{StudentID: uuid.New(), ClassID: f.class.ID})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestPaymentService_Cancel(t *testing.T) {
	f := newPaymentFixture(t)
	created := f.newPayment(t, payment.StatusCreated)
	f.repo.On("FindByTransactionID", mock.Anything, created.TransactionID).Return(created, nil).Once()
	f.repo.On("SaveWithLock", mock.Anything, created).Return(nil)

	resp, err := f.service.Cancel(context.Background(), created.TransactionID, "duplicate checkout")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", resp.Status)

	pending := f.newPayment(t, payment.StatusPending)
	f.repo.On("FindByTransactionID", mock.Anything, pending.TransactionID).Return(pending, nil)
	_, err = f.service.Cancel(context.Background(), pending.TransactionID, "")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestPaymentService_Redrive(t *testing.T) {
	t.Run("settles an unsettled payment", func(t *testing.T) {
		f := newPaymentFixture(t)
		p := f.newPayment(t, payment.StatusPaid)
		require.NoError(t, p.MarkUnsettled(errors.New("first failure")))
		p.ClearDomainEvents()
		enr := &enrollment.Enrollment{BaseEntity: shared.NewBaseEntity()}

		f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)
		f.repo.On("SaveWithLock", mock.Anything, p).Return(nil)
		f.classes.On("GetClass", mock.Anything, f.class.ID).Return(f.class, nil)
		f.materializer.On("Materialize", mock.Anything, p, f.class).Return(enr, enrollment.KindNew, nil)

		res, err := f.service.Redrive(context.Background(), p.TransactionID)
		require.NoError(t, err)
		assert.False(t, res.Payment.Unsettled)
		assert.Empty(t, res.Payment.SettlementError)
		assert.Equal(t, 2, res.Payment.SettlementAttempts)
		assert.Equal(t, &enr.ID, res.Payment.EnrollmentID)
	})

	t.Run("keeps the flag when it fails again", func(t *testing.T) {
		f := newPaymentFixture(t)
		p := f.newPayment(t, payment.StatusPaid)
		require.NoError(t, p.MarkUnsettled(errors.New("first failure")))

		f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)
		f.repo.On("SaveWithLock", mock.Anything, p).Return(nil)
		f.classes.On("GetClass", mock.Anything, f.class.ID).Return(nil, errors.New("class directory down"))

		_, err := f.service.Redrive(context.Background(), p.TransactionID)
		require.Error(t, err)
		assert.Equal(t, shared.CodeUnsettledPayment, shared.ErrorCode(err))
		assert.True(t, p.Unsettled)
		assert.Contains(t, p.SettlementError, "class directory down")
	})

	t.Run("rejects settled payments", func(t *testing.T) {
		f := newPaymentFixture(t)
		p := f.newPayment(t, payment.StatusPaid)
		require.NoError(t, p.MarkSettled(uuid.New()))
		f.repo.On("FindByTransactionID", mock.Anything, p.TransactionID).Return(p, nil)

		_, err := f.service.Redrive(context.Background(), p.TransactionID)
		assert.ErrorIs(t, err, payment.ErrNotUnsettled)
	})
}

func TestPaymentService_RedriveUnsettled(t *testing.T) {
	f := newPaymentFixture(t)
	ok := *f.newPayment(t, payment.StatusPaid)
	require.NoError(t, ok.MarkUnsettled(errors.New("x")))
	bad := *f.newPayment(t, payment.StatusPaid)
	bad.ClassID = uuid.New()
	require.NoError(t, bad.MarkUnsettled(errors.New("y")))

	f.repo.On("FindUnsettled", mock.Anything, 10).Return([]payment.Payment{ok, bad}, nil)
	f.repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("CountUnsettled", mock.Anything).Return(int64(1), nil)
	f.classes.On("GetClass", mock.Anything, f.class.ID).Return(f.class, nil)
	f.classes.On("GetClass", mock.Anything, bad.ClassID).Return(nil, catalog.ErrClassNotFound)
	f.materializer.On("Materialize", mock.Anything, mock.Anything, f.class).Return(&enrollment.Enrollment{BaseEntity: shared.NewBaseEntity()}, enrollment.KindNew, nil)

	summary, err := f.service.RedriveUnsettled(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, &RedriveSummary{Attempted: 2, Settled: 1, Failed: 1, Remaining: 1}, summary)
}

func TestPaymentService_ListUnsettled(t *testing.T) {
	f := newPaymentFixture(t)
	f.repo.On("FindAll", mock.Anything, mock.MatchedBy(func(filter payment.PaymentFilter) bool {
		return filter.Status != nil && *filter.Status == payment.StatusPaid &&
			filter.Unsettled != nil && *filter.Unsettled &&
			filter.Page == 2 && filter.PageSize == 5
	})).Return([]payment.Payment{}, int64(7), nil)

	list, total, err := f.service.ListUnsettled(context.Background(), PaymentListFilter{Page: 2, PageSize: 5})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, int64(7), total)
}
