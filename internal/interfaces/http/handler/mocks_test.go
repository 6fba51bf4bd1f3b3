package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	sessionapp "github.com/tuitionhub/backend/internal/application/cashsession"
	enrollmentapp "github.com/tuitionhub/backend/internal/application/enrollment"
	feeapp "github.com/tuitionhub/backend/internal/application/fee"
	paymentapp "github.com/tuitionhub/backend/internal/application/payment"
	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/interfaces/http/dto"
	"github.com/tuitionhub/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// serve runs one request through a router built by register
func serve(t *testing.T, register func(r *gin.Engine), method, path string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	r := gin.New()
	r.Use(middleware.RequestID())
	register(r)

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

type MockFeeQuoter struct {
	mock.Mock
}

func (m *MockFeeQuoter) Quote(ctx context.Context, req feeapp.QuoteRequest) (*feeapp.QuoteResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*feeapp.QuoteResponse), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Create(ctx context.Context, req paymentapp.CreatePaymentRequest) (*paymentapp.PaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) RecordCounterPayment(ctx context.Context, req paymentapp.CounterPaymentRequest) (*paymentapp.ProcessResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.ProcessResult), args.Error(1)
}

func (m *MockPaymentService) Submit(ctx context.Context, transactionID string) (*paymentapp.PaymentResponse, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) Process(ctx context.Context, transactionID string, result payment.GatewayResult) (*paymentapp.ProcessResult, error) {
	args := m.Called(ctx, transactionID, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.ProcessResult), args.Error(1)
}

func (m *MockPaymentService) Cancel(ctx context.Context, transactionID, reason string) (*paymentapp.PaymentResponse, error) {
	args := m.Called(ctx, transactionID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) Get(ctx context.Context, transactionID string) (*paymentapp.PaymentResponse, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) List(ctx context.Context, filter paymentapp.PaymentListFilter) ([]paymentapp.PaymentResponse, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]paymentapp.PaymentResponse), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentService) ListUnsettled(ctx context.Context, filter paymentapp.PaymentListFilter) ([]paymentapp.PaymentResponse, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]paymentapp.PaymentResponse), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentService) Redrive(ctx context.Context, transactionID string) (*paymentapp.ProcessResult, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.ProcessResult), args.Error(1)
}

func (m *MockPaymentService) RedriveUnsettled(ctx context.Context, batchSize int) (*paymentapp.RedriveSummary, error) {
	args := m.Called(ctx, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.RedriveSummary), args.Error(1)
}

type MockCallbackProcessor struct {
	mock.Mock
}

func (m *MockCallbackProcessor) HandleCallback(ctx context.Context, body []byte, signature string) (*paymentapp.CallbackResult, error) {
	args := m.Called(ctx, body, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentapp.CallbackResult), args.Error(1)
}

type MockEnrollmentService struct {
	mock.Mock
}

func (m *MockEnrollmentService) Get(ctx context.Context, id uuid.UUID) (*enrollmentapp.EnrollmentResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*enrollmentapp.EnrollmentResponse), args.Error(1)
}

func (m *MockEnrollmentService) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]enrollmentapp.EnrollmentResponse, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]enrollmentapp.EnrollmentResponse), args.Error(1)
}

func (m *MockEnrollmentService) Cancel(ctx context.Context, id uuid.UUID) (*enrollmentapp.EnrollmentResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*enrollmentapp.EnrollmentResponse), args.Error(1)
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Open(ctx context.Context, req sessionapp.OpenSessionRequest) (*sessionapp.SessionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionapp.SessionResponse), args.Error(1)
}

func (m *MockSessionService) GetSession(ctx context.Context, id uuid.UUID) (*sessionapp.SessionResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionapp.SessionResponse), args.Error(1)
}

func (m *MockSessionService) CashOut(ctx context.Context, sessionID uuid.UUID, req sessionapp.CashOutRequest) (*sessionapp.CashOutResult, error) {
	args := m.Called(ctx, sessionID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionapp.CashOutResult), args.Error(1)
}

func (m *MockSessionService) GenerateReport(ctx context.Context, sessionID uuid.UUID, req sessionapp.GenerateReportRequest) (*sessionapp.ReportResponse, error) {
	args := m.Called(ctx, sessionID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionapp.ReportResponse), args.Error(1)
}

func (m *MockSessionService) Close(ctx context.Context, sessionID uuid.UUID) (*sessionapp.CloseResult, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionapp.CloseResult), args.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) ListReports(ctx context.Context, filter sessionapp.ReportListFilter) ([]sessionapp.ReportResponse, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]sessionapp.ReportResponse), args.Get(1).(int64), args.Error(2)
}

func (m *MockReportService) GetReport(ctx context.Context, id uuid.UUID) (*sessionapp.ReportResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionapp.ReportResponse), args.Error(1)
}

func (m *MockReportService) AnnotateReport(ctx context.Context, id uuid.UUID, req sessionapp.AnnotateReportRequest) (*sessionapp.ReportResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionapp.ReportResponse), args.Error(1)
}

type MockArchiveLinker struct {
	mock.Mock
}

func (m *MockArchiveLinker) ArchiveLink(ctx context.Context, reportID uuid.UUID) (*sessionapp.ArchiveLinkResponse, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionapp.ArchiveLinkResponse), args.Error(1)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }

// compile-time checks against the real services
var (
	_ PaymentService    = (*paymentapp.PaymentService)(nil)
	_ CallbackProcessor = (*paymentapp.CallbackService)(nil)
	_ FeeQuoter         = (*feeapp.QuoteService)(nil)
	_ EnrollmentService = (*enrollmentapp.Materializer)(nil)
	_ SessionService    = (*sessionapp.SessionService)(nil)
	_ ReportService     = (*sessionapp.SessionService)(nil)
	_ ArchiveLinker     = (*sessionapp.ArchiveLinkService)(nil)
)
