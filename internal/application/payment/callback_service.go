package payment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/domain/shared"
	"github.com/tuitionhub/backend/internal/infrastructure/telemetry"
)

// Callback errors
var (
	ErrCallbackVerificationFailed = shared.NewValidationError("Callback signature verification failed")
	ErrCallbackInvalidPayload     = shared.NewValidationError("Callback payload is invalid")
)

const defaultCallbackTTL = 24 * time.Hour

// PaymentProcessor applies a gateway result to a stored payment
type PaymentProcessor interface {
	Process(ctx context.Context, transactionID string, result payment.GatewayResult) (*ProcessResult, error)
}

// CallbackServiceConfig holds configuration for the callback service
type CallbackServiceConfig struct {
	Gateway        payment.Gateway
	Processor      PaymentProcessor
	Store          shared.IdempotencyStore
	IdempotencyTTL time.Duration
	Metrics        *telemetry.SettlementMetrics
	Logger         *zap.Logger
}

// CallbackService handles payment gateway webhooks
type CallbackService struct {
	gateway   payment.Gateway
	processor PaymentProcessor
	store     shared.IdempotencyStore
	ttl       time.Duration
	metrics   *telemetry.SettlementMetrics
	logger    *zap.Logger
}

// NewCallbackService creates a new CallbackService
func NewCallbackService(cfg CallbackServiceConfig) *CallbackService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultCallbackTTL
	}
	return &CallbackService{
		gateway:   cfg.Gateway,
		processor: cfg.Processor,
		store:     cfg.Store,
		ttl:       ttl,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// CallbackResult represents the result of processing a gateway callback
type CallbackResult struct {
	TransactionID    string         `json:"transaction_id"`
	Status           string         `json:"status"`
	AlreadyProcessed bool           `json:"already_processed"`
	Result           *ProcessResult `json:"result,omitempty"`
}

// HandleCallback verifies a raw webhook body and applies it. Deliveries are
// deduplicated on transaction and status; when the dedupe store is down the
// payment's own compare-and-set still keeps processing idempotent.
func (s *CallbackService) HandleCallback(ctx context.Context, body []byte, signature string) (*CallbackResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "handle_callback")
	defer span.End()

	result, err := s.gateway.ParseCallback(ctx, body, signature)
	if err != nil {
		s.logger.Warn("Callback verification failed", zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", ErrCallbackVerificationFailed, err)
	}
	if result == nil || result.TransactionID == "" || !result.Status.IsValid() {
		telemetry.RecordError(span, ErrCallbackInvalidPayload)
		return nil, ErrCallbackInvalidPayload
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTransactionID, result.TransactionID,
		telemetry.SpanAttrStatus, string(result.Status),
	)

	s.logger.Info("Payment callback received",
		zap.String("transaction_id", result.TransactionID),
		zap.String("status", string(result.Status)),
		zap.String("amount", result.Amount.String()))

	key := fmt.Sprintf("payment-callback:%s:%s", result.TransactionID, result.Status)
	marked := false
	if s.store != nil {
		fresh, err := s.store.MarkProcessed(ctx, key, s.ttl)
		switch {
		case err != nil:
			s.metrics.RecordIdempotencyStoreError(ctx)
			s.logger.Warn("Idempotency store unavailable, relying on payment version check",
				zap.String("idempotency_key", key),
				zap.Error(err))
		case !fresh:
			s.logger.Info("Callback already processed (idempotency check)",
				zap.String("idempotency_key", key))
			return &CallbackResult{
				TransactionID:    result.TransactionID,
				Status:           string(result.Status),
				AlreadyProcessed: true,
			}, nil
		default:
			marked = true
		}
	}

	processed, err := s.processor.Process(ctx, result.TransactionID, *result)
	if err != nil {
		if marked {
			// Let the gateway's next delivery retry.
			if ferr := s.store.Forget(ctx, key); ferr != nil {
				s.logger.Warn("Failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(ferr))
			}
		}
		s.logger.Error("Failed to handle payment callback",
			zap.String("transaction_id", result.TransactionID),
			zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, err
	}

	return &CallbackResult{
		TransactionID:    result.TransactionID,
		Status:           string(result.Status),
		AlreadyProcessed: processed.Replayed,
		Result:           processed,
	}, nil
}
