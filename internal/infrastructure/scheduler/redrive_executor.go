package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	paymentapp "github.com/tuitionhub/backend/internal/application/payment"
)

// UnsettledRedriver re-drives one batch of unsettled payments
type UnsettledRedriver interface {
	RedriveUnsettled(ctx context.Context, batchSize int) (*paymentapp.RedriveSummary, error)
}

// RedriveExecutor runs JobKindRedriveUnsettled jobs
type RedriveExecutor struct {
	redriver UnsettledRedriver
	logger   *zap.Logger
}

// NewRedriveExecutor creates a new redrive executor
func NewRedriveExecutor(redriver UnsettledRedriver, logger *zap.Logger) *RedriveExecutor {
	return &RedriveExecutor{redriver: redriver, logger: logger}
}

// Execute runs one batch. A batch where every attempt failed is reported as
// an error so the scheduler retries it after its retry delay.
func (e *RedriveExecutor) Execute(ctx context.Context, job *Job) error {
	if job.Kind != JobKindRedriveUnsettled {
		return fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}

	summary, err := e.redriver.RedriveUnsettled(ctx, job.BatchSize)
	if err != nil {
		return fmt.Errorf("redrive unsettled: %w", err)
	}

	if summary.Attempted > 0 && summary.Settled == 0 {
		return fmt.Errorf("redrive made no progress: %d attempted, %d failed", summary.Attempted, summary.Failed)
	}

	e.logger.Debug("Redrive batch done",
		zap.String("job_id", job.ID.String()),
		zap.Int("settled", summary.Settled),
		zap.Int("remaining", summary.Remaining),
	)
	return nil
}
