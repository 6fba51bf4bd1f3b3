package payment

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/fee"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

func testBreakdown(total int64) fee.Breakdown {
	return fee.Breakdown{
		BasePrice:      decimal.NewFromInt(total),
		PromoDiscount:  decimal.Zero,
		TheoryDiscount: decimal.Zero,
		CardDiscount:   decimal.Zero,
		SpeedPostFee:   decimal.Zero,
		TotalAmount:    decimal.NewFromInt(total),
		Pricing:        fee.PricingStandard,
		CardType:       catalog.CardTypeFull,
	}
}

func newTestPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := NewPayment("TXN-1", uuid.New(), uuid.New(), testBreakdown(500), MethodCash, nil, "")
	require.NoError(t, err)
	return p
}

func TestNewPayment(t *testing.T) {
	t.Run("creates payment in created state", func(t *testing.T) {
		p := newTestPayment(t)
		assert.Equal(t, StatusCreated, p.Status)
		assert.Equal(t, 1, p.Version)
		assert.True(t, p.Amount().Equal(decimal.NewFromInt(500)))
		require.Len(t, p.GetDomainEvents(), 1)
		assert.Equal(t, EventTypePaymentCreated, p.GetDomainEvents()[0].EventType())
	})

	tests := []struct {
		name      string
		txID      string
		studentID uuid.UUID
		classID   uuid.UUID
		method    Method
		breakdown fee.Breakdown
		wantErr   error
	}{
		{name: "missing transaction id", txID: " ", studentID: uuid.New(), classID: uuid.New(), method: MethodCash, breakdown: testBreakdown(1), wantErr: ErrTransactionIDRequired},
		{name: "missing student", txID: "T", classID: uuid.New(), method: MethodCash, breakdown: testBreakdown(1), wantErr: ErrStudentRequired},
		{name: "missing class", txID: "T", studentID: uuid.New(), method: MethodCash, breakdown: testBreakdown(1), wantErr: ErrClassRequired},
		{name: "invalid method", txID: "T", studentID: uuid.New(), classID: uuid.New(), method: "barter", breakdown: testBreakdown(1), wantErr: ErrInvalidMethod},
		{name: "inconsistent breakdown", txID: "T", studentID: uuid.New(), classID: uuid.New(), method: MethodCash, breakdown: func() fee.Breakdown {
			b := testBreakdown(100)
			b.TotalAmount = decimal.NewFromInt(90)
			return b
		}(), wantErr: fee.ErrTotalMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPayment(tt.txID, tt.studentID, tt.classID, tt.breakdown, tt.method, nil, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestPayment_HappyPath(t *testing.T) {
	p := newTestPayment(t)

	require.NoError(t, p.MarkPending("GW-1"))
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, "GW-1", p.GatewayReference)

	require.NoError(t, p.MarkPaid("", "paid at counter"))
	assert.Equal(t, StatusPaid, p.Status)
	assert.NotNil(t, p.ProcessedAt)
	assert.Equal(t, "paid at counter", p.Notes)
	assert.False(t, p.IsSettled())
	assert.True(t, p.Unsettled, "paid waits for its enrollment")
	assert.Nil(t, p.SettledAt)

	enrollmentID := uuid.New()
	require.NoError(t, p.MarkSettled(enrollmentID))
	assert.True(t, p.IsSettled())
	assert.False(t, p.Unsettled)
	require.NotNil(t, p.SettledAt)
	assert.False(t, p.SettledAt.Before(*p.ProcessedAt))
	assert.Equal(t, 1, p.SettlementAttempts)

	events := p.GetDomainEvents()
	last := events[len(events)-1]
	settled, ok := last.(*PaymentSettledEvent)
	require.True(t, ok)
	assert.Equal(t, enrollmentID, settled.EnrollmentID)
	assert.Equal(t, *p.SettledAt, settled.SettledAt)
	assert.Equal(t, catalog.CardTypeFull, settled.CardType)
}

func TestPayment_TerminalStatesAreFinal(t *testing.T) {
	paid := newTestPayment(t)
	require.NoError(t, paid.MarkPending(""))
	require.NoError(t, paid.MarkPaid("", ""))

	failed := newTestPayment(t)
	require.NoError(t, failed.MarkFailed("declined"))

	cancelled := newTestPayment(t)
	require.NoError(t, cancelled.Cancel("student left"))

	for _, p := range []*Payment{paid, failed, cancelled} {
		t.Run(string(p.Status), func(t *testing.T) {
			assert.True(t, p.Status.IsTerminal())
			assert.ErrorIs(t, p.MarkPending(""), shared.ErrInvalidState)
			assert.ErrorIs(t, p.MarkPaid("", ""), shared.ErrInvalidState)
			assert.ErrorIs(t, p.MarkFailed(""), shared.ErrInvalidState)
			assert.ErrorIs(t, p.Cancel(""), shared.ErrInvalidState)
		})
	}
}

func TestPayment_CannotPayFromCreated(t *testing.T) {
	p := newTestPayment(t)
	assert.ErrorIs(t, p.MarkPaid("", ""), shared.ErrInvalidState)
}

func TestPayment_CancelOnlyBeforePending(t *testing.T) {
	p := newTestPayment(t)
	require.NoError(t, p.MarkPending(""))
	assert.ErrorIs(t, p.Cancel(""), shared.ErrInvalidState)
}

func TestPayment_MarkUnsettled(t *testing.T) {
	p := newTestPayment(t)
	assert.ErrorIs(t, p.MarkUnsettled(errors.New("x")), shared.ErrInvalidState)

	require.NoError(t, p.MarkPending(""))
	require.NoError(t, p.MarkPaid("", ""))
	require.NoError(t, p.MarkUnsettled(errors.New("db down")))

	assert.True(t, p.Unsettled)
	assert.Equal(t, "db down", p.SettlementError)
	assert.Equal(t, StatusPaid, p.Status)
	assert.False(t, p.IsSettled())

	require.NoError(t, p.MarkSettled(uuid.New()))
	assert.False(t, p.Unsettled)
	assert.Empty(t, p.SettlementError)
	assert.Equal(t, 2, p.SettlementAttempts)
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusCreated.IsRetryable())
	assert.True(t, StatusPending.IsRetryable())
	assert.False(t, StatusPaid.IsRetryable())
	assert.False(t, Status("unknown").IsValid())
	assert.True(t, GatewayStatusPaid.IsFinal())
	assert.False(t, GatewayStatusPending.IsFinal())
}

func TestRandomTransactionIDGenerator_Unique(t *testing.T) {
	gen := RandomTransactionIDGenerator{}
	at := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	const workers, perWorker = 8, 500
	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := gen.NewTransactionID(at)
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	for id := range seen {
		assert.True(t, strings.HasPrefix(id, "TXN-20260115-"))
		break
	}
}
