package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKind names the work a job performs
type JobKind string

const (
	// JobKindRedriveUnsettled re-runs enrollment materialization for paid
	// payments flagged unsettled
	JobKindRedriveUnsettled JobKind = "REDRIVE_UNSETTLED"
)

// Job is one unit of background work
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	BatchSize   int
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewJob creates a pending job
func NewJob(kind JobKind, batchSize, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       kind,
		BatchSize:  batchSize,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry moves a failed job back to pending after delay
func (j *Job) ScheduleRetry(delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
}

// JobExecutor runs a job
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// JobObserver is notified when a job reaches a final state
type JobObserver func(job *Job)

// Config holds scheduler configuration
type Config struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	QueueSize         int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		JobTimeout:        5 * time.Minute,
		MaxRetries:        3,
		RetryDelay:        30 * time.Second,
		QueueSize:         16,
	}
}

// Scheduler runs submitted jobs on a bounded worker pool
type Scheduler struct {
	config   Config
	executor JobExecutor
	logger   *zap.Logger
	observer JobObserver

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	retries   sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, executor JobExecutor, logger *zap.Logger) *Scheduler {
	defaults := DefaultConfig()
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = defaults.MaxConcurrentJobs
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, config.QueueSize),
	}
}

// OnJobFinished registers an observer for final job states. Call before Start.
func (s *Scheduler) OnJobFinished(observer JobObserver) {
	s.observer = observer
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if s.jobs == nil {
		return ErrSchedulerStopped
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, s.jobs, i)
	}

	s.logger.Info("Scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}
	close(s.jobs)
	s.jobs = nil
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		s.retries.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob queues a job without blocking
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context, jobs <-chan *Job, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	job.Start()
	fields := []zap.Field{
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.Int("attempt", job.RetryCount+1),
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	if err := s.executor.Execute(jobCtx, job); err != nil {
		job.Fail(err.Error())
		s.logger.Error("Job failed", append(fields, zap.Error(err))...)

		if job.ShouldRetry() && ctx.Err() == nil {
			job.ScheduleRetry(s.config.RetryDelay)
			s.scheduleResubmit(ctx, job)
			return
		}
		s.finish(job)
		return
	}

	job.Complete()
	s.logger.Debug("Job completed", fields...)
	s.finish(job)
}

// scheduleResubmit puts a job back on the queue once its retry delay elapses
func (s *Scheduler) scheduleResubmit(ctx context.Context, job *Job) {
	s.retries.Add(1)
	go func() {
		defer s.retries.Done()

		timer := time.NewTimer(time.Until(*job.NextRetryAt))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			job.Fail("scheduler stopped before retry")
			s.finish(job)
			return
		case <-timer.C:
		}

		if err := s.SubmitJob(job); err != nil {
			job.Fail(err.Error())
			s.logger.Warn("Failed to re-queue job for retry",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
			s.finish(job)
		}
	}()
}

func (s *Scheduler) finish(job *Job) {
	if s.observer != nil {
		s.observer(job)
	}
}
