package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = &MetricsError{Op: "NewSettlementMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// SettlementMetrics records payment, enrollment and cash-session activity.
// A nil *SettlementMetrics is valid and records nothing.
type SettlementMetrics struct {
	logger *zap.Logger

	paymentsTotal         *Counter
	paymentAmountTotal    *Counter
	unsettledPayments     *Gauge
	enrollmentsTotal      *Counter
	cashOutsTotal         *Counter
	reconciliationMisses  *Counter
	gatewayCallDuration   *Histogram
	idempotencyStoreFails *Counter
	eventHandlerFailures  *Counter
}

// NewSettlementMetrics creates all settlement instruments on meter.
func NewSettlementMetrics(meter metric.Meter, logger *zap.Logger) (*SettlementMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SettlementMetrics{logger: logger}
	var err error

	if sm.paymentsTotal, err = NewCounter(meter, "settlement_payments_total", "Payments reaching a terminal or flagged state", "{payment}"); err != nil {
		return nil, err
	}
	if sm.paymentAmountTotal, err = NewCounter(meter, "settlement_payment_amount_total", "Amount of paid payments in cents", "{cent}"); err != nil {
		return nil, err
	}
	if sm.unsettledPayments, err = NewGauge(meter, "settlement_unsettled_payments", "Paid payments awaiting enrollment materialization", "{payment}"); err != nil {
		return nil, err
	}
	if sm.enrollmentsTotal, err = NewCounter(meter, "settlement_enrollments_materialized_total", "Enrollments created or renewed", "{enrollment}"); err != nil {
		return nil, err
	}
	if sm.cashOutsTotal, err = NewCounter(meter, "settlement_cash_outs_total", "Cash-out attempts", "{cash_out}"); err != nil {
		return nil, err
	}
	if sm.reconciliationMisses, err = NewCounter(meter, "settlement_reconciliation_mismatches_total", "Reports blocked by a totals mismatch", "{report}"); err != nil {
		return nil, err
	}
	if sm.gatewayCallDuration, err = NewHistogram(meter, "settlement_gateway_duration_seconds", "Payment gateway call latency", "s", GatewayDurationBuckets...); err != nil {
		return nil, err
	}
	if sm.idempotencyStoreFails, err = NewCounter(meter, "settlement_idempotency_store_errors_total", "Callback dedupe store failures", "{error}"); err != nil {
		return nil, err
	}
	if sm.eventHandlerFailures, err = NewCounter(meter, "settlement_event_handler_failures_total", "Domain event handlers that returned an error or panicked", "{failure}"); err != nil {
		return nil, err
	}
	return sm, nil
}

// RecordPayment counts a payment outcome; amount is only added for paid payments
func (sm *SettlementMetrics) RecordPayment(ctx context.Context, status, method string, amount decimal.Decimal) {
	if sm == nil {
		return
	}
	sm.paymentsTotal.Inc(ctx, AttrPaymentStatus.String(status), AttrPaymentMethod.String(method))
	if status == "paid" {
		sm.paymentAmountTotal.Add(ctx, amount.Mul(decimal.NewFromInt(100)).IntPart(), AttrPaymentMethod.String(method))
	}
}

// RecordUnsettledCount sets the number of payments awaiting re-drive
func (sm *SettlementMetrics) RecordUnsettledCount(ctx context.Context, count int64) {
	if sm == nil {
		return
	}
	sm.unsettledPayments.Record(ctx, count)
}

// RecordEnrollment counts a materialized enrollment by kind (new|renewal)
func (sm *SettlementMetrics) RecordEnrollment(ctx context.Context, kind string) {
	if sm == nil {
		return
	}
	sm.enrollmentsTotal.Inc(ctx, AttrEnrollmentKind.String(kind))
}

// RecordCashOut counts a cash-out attempt by result (accepted|rejected)
func (sm *SettlementMetrics) RecordCashOut(ctx context.Context, result string) {
	if sm == nil {
		return
	}
	sm.cashOutsTotal.Inc(ctx, AttrResult.String(result))
}

// RecordReconciliationMismatch counts a report blocked by a mismatch
func (sm *SettlementMetrics) RecordReconciliationMismatch(ctx context.Context, operation string) {
	if sm == nil {
		return
	}
	sm.reconciliationMisses.Inc(ctx, AttrOperation.String(operation))
}

// RecordGatewayCall records the latency and result of one gateway attempt
func (sm *SettlementMetrics) RecordGatewayCall(ctx context.Context, d time.Duration, result string) {
	if sm == nil {
		return
	}
	sm.gatewayCallDuration.RecordDuration(ctx, d, AttrResult.String(result))
}

// RecordIdempotencyStoreError counts dedupe store failures
func (sm *SettlementMetrics) RecordIdempotencyStoreError(ctx context.Context) {
	if sm == nil {
		return
	}
	sm.idempotencyStoreFails.Inc(ctx)
}

// RecordHandlerFailure counts a failed domain event handler
func (sm *SettlementMetrics) RecordHandlerFailure(ctx context.Context, eventType string) {
	if sm == nil {
		return
	}
	sm.eventHandlerFailures.Inc(ctx, AttrEventType.String(eventType))
}
