package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RedriveTriggerConfig holds configuration for the periodic redrive
type RedriveTriggerConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// RedriveTrigger submits a redrive job on every interval tick. At most one
// redrive job is queued or running at a time; ticks that land while one is
// in flight are skipped.
type RedriveTrigger struct {
	config    RedriveTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger

	inFlight  atomic.Bool
	skipped   atomic.Int64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRedriveTrigger creates a trigger and registers it for job completions
func NewRedriveTrigger(config RedriveTriggerConfig, scheduler *Scheduler, logger *zap.Logger) *RedriveTrigger {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	t := &RedriveTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
	}
	scheduler.OnJobFinished(t.jobFinished)
	return t
}

// Start runs one redrive immediately, then one per interval
func (t *RedriveTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Redrive trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Int("batch_size", t.config.BatchSize),
	)
	return nil
}

// Stop stops the trigger loop
func (t *RedriveTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Redrive trigger stopped", zap.Int64("skipped_ticks", t.skipped.Load()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerNow submits a redrive job unless one is already in flight
func (t *RedriveTrigger) TriggerNow() error {
	if !t.inFlight.CompareAndSwap(false, true) {
		return ErrRedriveInProgress
	}
	job := NewJob(JobKindRedriveUnsettled, t.config.BatchSize, t.config.MaxRetries)
	if err := t.scheduler.SubmitJob(job); err != nil {
		t.inFlight.Store(false)
		return err
	}
	return nil
}

// InFlight reports whether a redrive job is queued or running
func (t *RedriveTrigger) InFlight() bool {
	return t.inFlight.Load()
}

func (t *RedriveTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	t.tick()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *RedriveTrigger) tick() {
	err := t.TriggerNow()
	switch {
	case err == nil:
	case errors.Is(err, ErrRedriveInProgress):
		t.skipped.Add(1)
		t.logger.Debug("Redrive still in flight, skipping tick")
	default:
		t.logger.Warn("Failed to submit redrive job", zap.Error(err))
	}
}

func (t *RedriveTrigger) jobFinished(job *Job) {
	if job.Kind != JobKindRedriveUnsettled {
		return
	}
	t.inFlight.Store(false)
	if job.Status == JobStatusFailed {
		t.logger.Warn("Redrive job gave up",
			zap.String("job_id", job.ID.String()),
			zap.Int("retries", job.RetryCount),
			zap.String("error", job.Error),
		)
	}
}
