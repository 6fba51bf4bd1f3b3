// Package payment drives payments through their lifecycle and hands paid
// payments to the enrollment materializer.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	feeapp "github.com/tuitionhub/backend/internal/application/fee"
	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/enrollment"
	"github.com/tuitionhub/backend/internal/domain/fee"
	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/domain/shared"
	"github.com/tuitionhub/backend/internal/infrastructure/telemetry"
)

const (
	defaultGatewayTimeout = 15 * time.Second
	defaultMaxAttempts    = 3
	defaultRetryDelay     = 2 * time.Second
	maxIDCollisions       = 3
)

// Quoter prices a checkout when the client does not send a breakdown
type Quoter interface {
	Quote(ctx context.Context, req feeapp.QuoteRequest) (*feeapp.QuoteResponse, error)
}

// EnrollmentMaterializer applies a paid payment to the student's enrollment
type EnrollmentMaterializer interface {
	Materialize(ctx context.Context, p *payment.Payment, class *catalog.Class) (*enrollment.Enrollment, enrollment.Kind, error)
}

// PaymentServiceConfig holds the collaborators and retry policy of the payment service
type PaymentServiceConfig struct {
	Repo           payment.PaymentRepository
	Classes        catalog.ClassDirectory
	Students       catalog.StudentDirectory
	Quoter         Quoter
	Materializer   EnrollmentMaterializer
	Gateway        payment.Gateway
	IDGenerator    payment.TransactionIDGenerator
	EventPublisher shared.EventPublisher
	Metrics        *telemetry.SettlementMetrics
	Logger         *zap.Logger

	GatewayTimeout time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
}

// PaymentService manages the payment lifecycle
type PaymentService struct {
	repo           payment.PaymentRepository
	classes        catalog.ClassDirectory
	students       catalog.StudentDirectory
	quoter         Quoter
	materializer   EnrollmentMaterializer
	gateway        payment.Gateway
	idGenerator    payment.TransactionIDGenerator
	eventPublisher shared.EventPublisher
	metrics        *telemetry.SettlementMetrics
	logger         *zap.Logger

	gatewayTimeout time.Duration
	maxAttempts    int
	retryDelay     time.Duration
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(cfg PaymentServiceConfig) *PaymentService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = payment.RandomTransactionIDGenerator{}
	}
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	delay := cfg.RetryDelay
	if delay < 0 {
		delay = defaultRetryDelay
	}

	return &PaymentService{
		repo:           cfg.Repo,
		classes:        cfg.Classes,
		students:       cfg.Students,
		quoter:         cfg.Quoter,
		materializer:   cfg.Materializer,
		gateway:        cfg.Gateway,
		idGenerator:    idGen,
		eventPublisher: cfg.EventPublisher,
		metrics:        cfg.Metrics,
		logger:         logger,
		gatewayTimeout: timeout,
		maxAttempts:    attempts,
		retryDelay:     delay,
	}
}

// =============================================================================
// Create
// =============================================================================

// Create registers a new payment in the created state
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "create",
		telemetry.SpanAttrStudentID, req.StudentID.String(),
		telemetry.SpanAttrClassID, req.ClassID.String(),
	)
	defer span.End()

	p, err := s.create(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToPaymentResponse(p)
	return &resp, nil
}

func (s *PaymentService) create(ctx context.Context, req CreatePaymentRequest) (*payment.Payment, error) {
	if req.StudentID == uuid.Nil {
		return nil, payment.ErrStudentRequired
	}
	if req.ClassID == uuid.Nil {
		return nil, payment.ErrClassRequired
	}
	method := payment.Method(req.PaymentMethod)
	if !method.IsValid() {
		return nil, payment.ErrInvalidMethod
	}

	breakdown, err := s.resolveBreakdown(ctx, req)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		txID := s.idGenerator.NewTransactionID(shared.Now())
		p, err := payment.NewPayment(txID, req.StudentID, req.ClassID, breakdown, method, req.CollectedBy, req.Notes)
		if err != nil {
			return nil, err
		}

		err = s.repo.Create(ctx, p)
		if err == nil {
			s.logger.Info("Payment created",
				zap.String("transaction_id", p.TransactionID),
				zap.String("student_id", p.StudentID.String()),
				zap.String("class_id", p.ClassID.String()),
				zap.String("amount", p.Amount().String()),
				zap.String("method", method.String()))
			s.publishEvents(ctx, p)
			return p, nil
		}
		if !errors.Is(err, shared.ErrAlreadyExists) || attempt >= maxIDCollisions {
			return nil, fmt.Errorf("failed to create payment: %w", err)
		}
		s.logger.Warn("Transaction ID collision, regenerating", zap.String("transaction_id", txID))
	}
}

// resolveBreakdown validates a client breakdown against the class, or quotes one
func (s *PaymentService) resolveBreakdown(ctx context.Context, req CreatePaymentRequest) (fee.Breakdown, error) {
	if req.FeeBreakdown == nil {
		if s.quoter == nil {
			return fee.Breakdown{}, shared.NewValidationError("Fee breakdown is required")
		}
		quote, err := s.quoter.Quote(ctx, feeapp.QuoteRequest{
			StudentID:  req.StudentID,
			ClassID:    req.ClassID,
			PromoCode:  req.PromoCode,
			Collection: req.Collection,
		})
		if err != nil {
			return fee.Breakdown{}, err
		}
		return quote.Breakdown, nil
	}

	class, err := s.classes.GetClass(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, catalog.ErrClassNotFound) {
			return fee.Breakdown{}, feeapp.ErrUnknownClass
		}
		return fee.Breakdown{}, fmt.Errorf("failed to load class: %w", err)
	}
	if s.students != nil {
		exists, err := s.students.StudentExists(ctx, req.StudentID)
		if err != nil {
			return fee.Breakdown{}, fmt.Errorf("failed to check student: %w", err)
		}
		if !exists {
			return fee.Breakdown{}, feeapp.ErrUnknownStudent
		}
	}

	b := *req.FeeBreakdown
	if err := b.Validate(); err != nil {
		return fee.Breakdown{}, err
	}
	if !b.BasePrice.Equal(class.BasePrice.Round(2)) {
		return fee.Breakdown{}, shared.NewValidationError("Fee breakdown base price does not match the class")
	}
	return b, nil
}

// RecordCounterPayment creates a payment collected by a cashier and marks it
// paid in one call
func (s *PaymentService) RecordCounterPayment(ctx context.Context, req CounterPaymentRequest) (*ProcessResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record_counter_payment",
		telemetry.SpanAttrCashierID, req.CashierID.String(),
	)
	defer span.End()

	if req.CashierID == uuid.Nil {
		err := shared.NewValidationError("Cashier ID is required")
		telemetry.RecordError(span, err)
		return nil, err
	}
	method := req.PaymentMethod
	if method == "" {
		method = payment.MethodCash.String()
	}
	cashierID := req.CashierID

	p, err := s.create(ctx, CreatePaymentRequest{
		StudentID:     req.StudentID,
		ClassID:       req.ClassID,
		PaymentMethod: method,
		PromoCode:     req.PromoCode,
		Collection:    req.Collection,
		CollectedBy:   &cashierID,
		Notes:         req.Notes,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.process(ctx, p.TransactionID, payment.GatewayResult{
		TransactionID: p.TransactionID,
		Status:        payment.GatewayStatusPaid,
		Amount:        p.Amount(),
		PaymentMethod: p.PaymentMethod,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// =============================================================================
// Submit
// =============================================================================

// Submit sends a created payment to the gateway. Gateway calls are bounded by
// the configured timeout and retried while the stored payment is still
// created or pending. When every attempt fails the payment is marked failed.
func (s *PaymentService) Submit(ctx context.Context, transactionID string) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "submit",
		telemetry.SpanAttrTransactionID, transactionID,
	)
	defer span.End()

	p, err := s.submit(ctx, transactionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToPaymentResponse(p)
	return &resp, nil
}

func (s *PaymentService) submit(ctx context.Context, transactionID string) (*payment.Payment, error) {
	if s.gateway == nil {
		return nil, shared.NewDomainError(shared.CodeGateway, "No payment gateway configured")
	}

	p, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanSubmit() {
		return nil, shared.NewInvalidStateError(fmt.Sprintf("Cannot submit payment in %s status", p.Status))
	}

	req := &payment.ChargeRequest{
		TransactionID: p.TransactionID,
		Amount:        p.Amount(),
		StudentID:     p.StudentID,
		ClassID:       p.ClassID,
		Description:   fmt.Sprintf("Class fee %s", p.ClassID),
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			// Retry only while the payment can still move; a callback may have
			// concluded it in the meantime.
			p, err = s.repo.FindByTransactionID(ctx, transactionID)
			if err != nil {
				return nil, err
			}
			if !p.Status.IsRetryable() {
				s.logger.Info("Payment concluded while retrying gateway submission",
					zap.String("transaction_id", transactionID),
					zap.String("status", p.Status.String()))
				return p, nil
			}
		}

		resp, err := s.initiateCharge(ctx, req, attempt)
		if err == nil {
			return s.applyChargeResponse(ctx, p, resp)
		}
		lastErr = err

		if attempt < s.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}

	return nil, s.failExhausted(ctx, transactionID, lastErr)
}

func (s *PaymentService) initiateCharge(ctx context.Context, req *payment.ChargeRequest, attempt int) (*payment.ChargeResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.gateway.InitiateCharge(callCtx, req)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.RecordGatewayCall(ctx, elapsed, "error")
		s.logger.Warn("Gateway charge attempt failed",
			zap.String("transaction_id", req.TransactionID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxAttempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}
	if resp == nil || !resp.Status.IsValid() {
		s.metrics.RecordGatewayCall(ctx, elapsed, "invalid")
		return nil, fmt.Errorf("%w: invalid charge response", payment.ErrGatewayUnavailable)
	}
	s.metrics.RecordGatewayCall(ctx, elapsed, "ok")
	return resp, nil
}

func (s *PaymentService) applyChargeResponse(ctx context.Context, p *payment.Payment, resp *payment.ChargeResponse) (*payment.Payment, error) {
	if p.Status.CanSubmit() {
		if err := p.MarkPending(resp.Reference); err != nil {
			return nil, err
		}
		if err := s.repo.SaveWithLock(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to save submitted payment: %w", err)
		}
		s.logger.Info("Payment submitted to gateway",
			zap.String("transaction_id", p.TransactionID),
			zap.String("gateway_reference", resp.Reference))
	}

	if !resp.Status.IsFinal() {
		return p, nil
	}
	result, err := s.process(ctx, p.TransactionID, payment.GatewayResult{
		TransactionID: p.TransactionID,
		Status:        resp.Status,
		Amount:        p.Amount(),
		PaymentMethod: p.PaymentMethod,
		Reference:     resp.Reference,
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByTransactionID(ctx, result.Payment.TransactionID)
}

func (s *PaymentService) failExhausted(ctx context.Context, transactionID string, cause error) error {
	gatewayErr := shared.NewDomainError(shared.CodeGateway,
		fmt.Sprintf("Payment gateway unavailable after %d attempts: %v", s.maxAttempts, cause))

	p, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return err
	}
	if !p.Status.IsRetryable() {
		return gatewayErr
	}
	if err := p.MarkFailed(gatewayErr.Message); err != nil {
		return err
	}
	if err := s.repo.SaveWithLock(ctx, p); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return gatewayErr
		}
		return fmt.Errorf("failed to save failed payment: %w", err)
	}
	s.metrics.RecordPayment(ctx, p.Status.String(), p.PaymentMethod.String(), p.Amount())
	s.publishEvents(ctx, p)

	s.logger.Error("Payment failed after exhausting gateway retries",
		zap.String("transaction_id", transactionID),
		zap.Int("attempts", s.maxAttempts),
		zap.Error(cause))
	return gatewayErr
}

// =============================================================================
// Process
// =============================================================================

// Process applies a gateway outcome. Results for a payment already in a
// terminal state are replays: the stored payment is returned unchanged with
// Replayed set. A paid payment is materialized immediately; if that fails the
// payment is flagged unsettled and the result reports it without an error.
func (s *PaymentService) Process(ctx context.Context, transactionID string, result payment.GatewayResult) (*ProcessResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "process",
		telemetry.SpanAttrTransactionID, transactionID,
		telemetry.SpanAttrStatus, string(result.Status),
	)
	defer span.End()

	res, err := s.process(ctx, transactionID, result)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "replayed", res.Replayed, "unsettled", res.Unsettled)
	return res, nil
}

func (s *PaymentService) process(ctx context.Context, transactionID string, result payment.GatewayResult) (*ProcessResult, error) {
	if !result.Status.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("Unknown gateway status %q", result.Status))
	}
	if result.TransactionID != "" && result.TransactionID != transactionID {
		return nil, shared.NewValidationError("Gateway result belongs to a different transaction")
	}

	p, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return s.replayed(p), nil
	}
	if result.Status == payment.GatewayStatusPending && !p.Status.CanSubmit() {
		return &ProcessResult{Payment: ToPaymentResponse(p)}, nil
	}

	if result.Status.IsFinal() && !result.Amount.Equal(p.Amount()) {
		s.logger.Warn("Gateway amount mismatch",
			zap.String("transaction_id", transactionID),
			zap.String("expected", p.Amount().String()),
			zap.String("reported", result.Amount.String()))
		return nil, shared.NewValidationError(fmt.Sprintf("Gateway amount %s does not match payment total %s",
			result.Amount.StringFixed(2), p.Amount().StringFixed(2)))
	}

	if p.Status.CanSubmit() {
		if err := p.MarkPending(result.Reference); err != nil {
			return nil, err
		}
	}

	switch result.Status {
	case payment.GatewayStatusPending:
		// already advanced above
	case payment.GatewayStatusPaid:
		if result.PaymentMethod.IsValid() {
			p.PaymentMethod = result.PaymentMethod
		}
		if err := p.MarkPaid(result.Reference, result.RawNotes); err != nil {
			return nil, err
		}
	case payment.GatewayStatusFailed:
		reason := result.RawNotes
		if reason == "" {
			reason = "Gateway reported failure"
		}
		if err := p.MarkFailed(reason); err != nil {
			return nil, err
		}
	}

	if err := s.repo.SaveWithLock(ctx, p); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			// Someone else applied an outcome first; their result stands.
			current, ferr := s.repo.FindByTransactionID(ctx, transactionID)
			if ferr == nil && current.Status.IsTerminal() {
				return s.replayed(current), nil
			}
		}
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	s.logger.Info("Payment processed",
		zap.String("transaction_id", transactionID),
		zap.String("status", p.Status.String()),
		zap.String("amount", p.Amount().String()))
	if p.Status.IsTerminal() {
		s.metrics.RecordPayment(ctx, p.Status.String(), p.PaymentMethod.String(), p.Amount())
	}

	res := &ProcessResult{}
	if p.Status == payment.StatusPaid {
		if err := s.settle(ctx, p, res); err != nil {
			return nil, err
		}
	} else {
		s.publishEvents(ctx, p)
	}
	res.Payment = ToPaymentResponse(p)
	return res, nil
}

func (s *PaymentService) replayed(p *payment.Payment) *ProcessResult {
	s.logger.Info("Duplicate transaction result ignored",
		zap.String("transaction_id", p.TransactionID),
		zap.String("status", p.Status.String()))
	return &ProcessResult{
		Payment:         ToPaymentResponse(p),
		Replayed:        true,
		Unsettled:       p.Unsettled,
		SettlementError: p.SettlementError,
		EnrollmentID:    p.EnrollmentID,
	}
}

// settle materializes the enrollment for a stored paid payment and records
// the outcome on it. Materialization failures flag the payment instead of
// failing the call. The payment was stored unsettled when it became paid, so
// a failed write here leaves it in the re-drive backlog.
func (s *PaymentService) settle(ctx context.Context, p *payment.Payment, res *ProcessResult) error {
	e, kind, cause := s.materialize(ctx, p)
	if cause != nil {
		if err := p.MarkUnsettled(cause); err != nil {
			return err
		}
		if err := s.repo.SaveWithLock(ctx, p); err != nil {
			if s.settledElsewhere(ctx, p, res, err) {
				return nil
			}
			return fmt.Errorf("failed to flag unsettled payment: %w", err)
		}
		s.logger.Error("Enrollment materialization failed, payment flagged unsettled",
			zap.String("transaction_id", p.TransactionID),
			zap.Int("settlement_attempts", p.SettlementAttempts),
			zap.Error(cause))
		s.metrics.RecordPayment(ctx, "unsettled", p.PaymentMethod.String(), p.Amount())
		s.publishEvents(ctx, p)

		res.Unsettled = true
		res.SettlementError = p.SettlementError
		return nil
	}

	if err := p.MarkSettled(e.ID); err != nil {
		return err
	}
	if err := s.repo.SaveWithLock(ctx, p); err != nil {
		if s.settledElsewhere(ctx, p, res, err) {
			return nil
		}
		return fmt.Errorf("failed to record settlement: %w", err)
	}
	s.publishEvents(ctx, p)

	res.EnrollmentID = &e.ID
	res.EnrollmentKind = string(kind)
	return nil
}

// settledElsewhere handles a lost version race while recording a settlement.
// When the winner already linked the enrollment, p takes the stored state and
// the winner's events stand.
func (s *PaymentService) settledElsewhere(ctx context.Context, p *payment.Payment, res *ProcessResult, saveErr error) bool {
	if !errors.Is(saveErr, shared.ErrConcurrencyConflict) {
		return false
	}
	current, err := s.repo.FindByTransactionID(ctx, p.TransactionID)
	if err != nil || !current.IsSettled() {
		return false
	}
	s.logger.Info("Payment settled by a concurrent attempt",
		zap.String("transaction_id", p.TransactionID))
	*p = *current
	res.Unsettled = false
	res.SettlementError = ""
	res.EnrollmentID = current.EnrollmentID
	return true
}

func (s *PaymentService) materialize(ctx context.Context, p *payment.Payment) (*enrollment.Enrollment, enrollment.Kind, error) {
	if s.materializer == nil {
		return nil, "", errors.New("enrollment materializer not configured")
	}
	class, err := s.classes.GetClass(ctx, p.ClassID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load class: %w", err)
	}
	return s.materializer.Materialize(ctx, p, class)
}

// =============================================================================
// Cancel / queries
// =============================================================================

// Cancel abandons a payment that has not been submitted
func (s *PaymentService) Cancel(ctx context.Context, transactionID, reason string) (*PaymentResponse, error) {
	p, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := p.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to cancel payment: %w", err)
	}
	s.metrics.RecordPayment(ctx, p.Status.String(), p.PaymentMethod.String(), p.Amount())
	s.logger.Info("Payment cancelled", zap.String("transaction_id", transactionID))

	resp := ToPaymentResponse(p)
	return &resp, nil
}

// Get returns a payment by transaction ID
func (s *PaymentService) Get(ctx context.Context, transactionID string) (*PaymentResponse, error) {
	p, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(p)
	return &resp, nil
}

// List returns a page of payments
func (s *PaymentService) List(ctx context.Context, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	list, total, err := s.repo.FindAll(ctx, filter.ToDomain())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	return ToPaymentResponses(list), total, nil
}

// ListUnsettled returns paid payments whose enrollment is still missing
func (s *PaymentService) ListUnsettled(ctx context.Context, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	domainFilter := filter.ToDomain()
	paid := payment.StatusPaid
	unsettled := true
	domainFilter.Status = &paid
	domainFilter.Unsettled = &unsettled
	domainFilter.OrderDir = "asc"

	list, total, err := s.repo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list unsettled payments: %w", err)
	}
	return ToPaymentResponses(list), total, nil
}

// =============================================================================
// Re-drive
// =============================================================================

// Redrive retries materialization for a paid payment without an enrollment.
// It returns an UNSETTLED_PAYMENT error when the retry fails again.
func (s *PaymentService) Redrive(ctx context.Context, transactionID string) (*ProcessResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "redrive",
		telemetry.SpanAttrTransactionID, transactionID,
	)
	defer span.End()

	p, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	res, err := s.redrive(ctx, p)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return res, nil
}

func (s *PaymentService) redrive(ctx context.Context, p *payment.Payment) (*ProcessResult, error) {
	if p.Status != payment.StatusPaid || p.IsSettled() {
		return nil, payment.ErrNotUnsettled
	}

	res := &ProcessResult{}
	if err := s.settle(ctx, p, res); err != nil {
		return nil, err
	}
	if res.Unsettled {
		return nil, shared.NewDomainError(shared.CodeUnsettledPayment,
			fmt.Sprintf("Payment %s is still unsettled: %s", p.TransactionID, res.SettlementError))
	}

	s.logger.Info("Unsettled payment re-driven",
		zap.String("transaction_id", p.TransactionID),
		zap.String("enrollment_kind", res.EnrollmentKind))
	res.Payment = ToPaymentResponse(p)
	return res, nil
}

// RedriveUnsettled re-drives up to batchSize unsettled payments, oldest first
func (s *PaymentService) RedriveUnsettled(ctx context.Context, batchSize int) (*RedriveSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "redrive_unsettled")
	defer span.End()

	if batchSize <= 0 {
		batchSize = 50
	}
	pending, err := s.repo.FindUnsettled(ctx, batchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load unsettled payments: %w", err)
	}

	summary := &RedriveSummary{}
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		summary.Attempted++
		if _, err := s.redrive(ctx, &pending[i]); err != nil {
			summary.Failed++
			s.logger.Warn("Re-drive attempt failed",
				zap.String("transaction_id", pending[i].TransactionID),
				zap.Error(err))
			continue
		}
		summary.Settled++
	}

	remaining, err := s.repo.CountUnsettled(ctx)
	if err != nil {
		s.logger.Warn("Failed to count unsettled payments", zap.Error(err))
	} else {
		summary.Remaining = int(remaining)
		s.metrics.RecordUnsettledCount(ctx, remaining)
	}

	if summary.Attempted > 0 {
		s.logger.Info("Unsettled re-drive batch finished",
			zap.Int("attempted", summary.Attempted),
			zap.Int("settled", summary.Settled),
			zap.Int("failed", summary.Failed),
			zap.Int("remaining", summary.Remaining))
	}
	return summary, nil
}

// publishEvents publishes and clears the payment's pending domain events.
// Publish failures are logged; the state change is already stored.
func (s *PaymentService) publishEvents(ctx context.Context, p *payment.Payment) {
	events := p.PullDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish payment events",
			zap.String("transaction_id", p.TransactionID),
			zap.Error(err))
	}
}
