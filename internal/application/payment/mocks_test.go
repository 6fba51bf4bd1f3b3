package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	feeapp "github.com/tuitionhub/backend/internal/application/fee"
	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/enrollment"
	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// =============================================================================
// Mock Payment Repository
// =============================================================================

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	args := m.Called(ctx, transactionID)
	if fn, ok := args.Get(0).(func(context.Context, string) *payment.Payment); ok {
		return fn(ctx, transactionID), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveWithLock(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindAll(ctx context.Context, filter payment.PaymentFilter) ([]payment.Payment, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]payment.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentRepository) FindUnsettled(ctx context.Context, limit int) ([]payment.Payment, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) CountUnsettled(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPaymentRepository) FindSettledCollectedBy(ctx context.Context, cashierID uuid.UUID, from, to time.Time) ([]payment.Payment, error) {
	args := m.Called(ctx, cashierID, from, to)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

// =============================================================================
// Mock collaborators
// =============================================================================

type MockClassDirectory struct {
	mock.Mock
}

func (m *MockClassDirectory) GetClass(ctx context.Context, id uuid.UUID) (*catalog.Class, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Class), args.Error(1)
}

func (m *MockClassDirectory) GetClasses(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Class, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[uuid.UUID]*catalog.Class), args.Error(1)
}

type MockStudentDirectory struct {
	mock.Mock
}

func (m *MockStudentDirectory) StudentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockQuoter struct {
	mock.Mock
}

func (m *MockQuoter) Quote(ctx context.Context, req feeapp.QuoteRequest) (*feeapp.QuoteResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*feeapp.QuoteResponse), args.Error(1)
}

type MockMaterializer struct {
	mock.Mock
}

func (m *MockMaterializer) Materialize(ctx context.Context, p *payment.Payment, class *catalog.Class) (*enrollment.Enrollment, enrollment.Kind, error) {
	args := m.Called(ctx, p, class)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*enrollment.Enrollment), args.Get(1).(enrollment.Kind), args.Error(2)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) InitiateCharge(ctx context.Context, req *payment.ChargeRequest) (*payment.ChargeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeResponse), args.Error(1)
}

func (m *MockGateway) ParseCallback(ctx context.Context, body []byte, signature string) (*payment.GatewayResult, error) {
	args := m.Called(ctx, body, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.GatewayResult), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Forget(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) Process(ctx context.Context, transactionID string, result payment.GatewayResult) (*ProcessResult, error) {
	args := m.Called(ctx, transactionID, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProcessResult), args.Error(1)
}

// sequenceIDGenerator hands out predictable transaction IDs
type sequenceIDGenerator struct {
	mu  sync.Mutex
	ids []string
	n   int
}

func (g *sequenceIDGenerator) NewTransactionID(time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[g.n%len(g.ids)]
	g.n++
	return id
}

// collectEventTypes returns the event types of every Publish call
func collectEventTypes(publisher *MockEventPublisher) []string {
	var types []string
	for _, call := range publisher.Calls {
		if call.Method != "Publish" {
			continue
		}
		for _, e := range call.Arguments.Get(1).([]shared.DomainEvent) {
			types = append(types, e.EventType())
		}
	}
	return types
}
