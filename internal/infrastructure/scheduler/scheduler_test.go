package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	paymentapp "github.com/tuitionhub/backend/internal/application/payment"
)

type funcExecutor func(ctx context.Context, job *Job) error

func (f funcExecutor) Execute(ctx context.Context, job *Job) error { return f(ctx, job) }

type finishedJobs struct {
	mu   sync.Mutex
	jobs []*Job
}

func (f *finishedJobs) observe(job *Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
}

func (f *finishedJobs) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func (f *finishedJobs) first() *Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[0]
}

func testConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		JobTimeout:        time.Second,
		MaxRetries:        2,
		RetryDelay:        5 * time.Millisecond,
		QueueSize:         4,
	}
}

func startScheduler(t *testing.T, cfg Config, exec JobExecutor) (*Scheduler, *finishedJobs) {
	t.Helper()
	s := NewScheduler(cfg, exec, zap.NewNop())
	done := &finishedJobs{}
	s.OnJobFinished(done.observe)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s, done
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob(JobKindRedriveUnsettled, 50, 1)
	assert.Equal(t, JobStatusPending, job.Status)

	job.Start()
	require.NotNil(t, job.StartedAt)
	job.Fail("db down")
	assert.True(t, job.ShouldRetry())

	job.ScheduleRetry(time.Minute)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.NextRetryAt)

	job.Start()
	job.Fail("db down")
	assert.False(t, job.ShouldRetry(), "retries exhausted")

	job.Start()
	job.Complete()
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.False(t, job.ShouldRetry())
}

func TestScheduler_RunsJob(t *testing.T) {
	var runs atomic.Int32
	s, done := startScheduler(t, testConfig(), funcExecutor(func(ctx context.Context, job *Job) error {
		runs.Add(1)
		return nil
	}))

	require.NoError(t, s.SubmitJob(NewJob(JobKindRedriveUnsettled, 10, 0)))
	require.Eventually(t, func() bool { return done.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, JobStatusSuccess, done.first().Status)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_RetriesThenSucceeds(t *testing.T) {
	var runs atomic.Int32
	s, done := startScheduler(t, testConfig(), funcExecutor(func(ctx context.Context, job *Job) error {
		if runs.Add(1) < 3 {
			return errors.New("enrollment store unavailable")
		}
		return nil
	}))

	require.NoError(t, s.SubmitJob(NewJob(JobKindRedriveUnsettled, 10, 2)))
	require.Eventually(t, func() bool { return done.len() == 1 }, time.Second, 5*time.Millisecond)

	job := done.first()
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.Equal(t, 2, job.RetryCount)
	assert.Equal(t, int32(3), runs.Load())
}

func TestScheduler_GivesUpAfterMaxRetries(t *testing.T) {
	var runs atomic.Int32
	s, done := startScheduler(t, testConfig(), funcExecutor(func(ctx context.Context, job *Job) error {
		runs.Add(1)
		return errors.New("still failing")
	}))

	require.NoError(t, s.SubmitJob(NewJob(JobKindRedriveUnsettled, 10, 1)))
	require.Eventually(t, func() bool { return done.len() == 1 }, time.Second, 5*time.Millisecond)

	job := done.first()
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "still failing", job.Error)
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_JobTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.JobTimeout = 20 * time.Millisecond
	s, done := startScheduler(t, cfg, funcExecutor(func(ctx context.Context, job *Job) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	require.NoError(t, s.SubmitJob(NewJob(JobKindRedriveUnsettled, 10, 0)))
	require.Eventually(t, func() bool { return done.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, done.first().Error, context.DeadlineExceeded.Error())
}

func TestScheduler_BoundedConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})
	s, done := startScheduler(t, testConfig(), funcExecutor(func(ctx context.Context, job *Job) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil
	}))

	for i := 0; i < 4; i++ {
		require.NoError(t, s.SubmitJob(NewJob(JobKindRedriveUnsettled, 10, 0)))
	}
	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	require.Eventually(t, func() bool { return done.len() == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), peak.Load())
}

func TestScheduler_SubmitWhenStopped(t *testing.T) {
	s := NewScheduler(testConfig(), funcExecutor(func(context.Context, *Job) error { return nil }), zap.NewNop())
	assert.ErrorIs(t, s.SubmitJob(NewJob(JobKindRedriveUnsettled, 1, 0)), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.ErrorIs(t, s.SubmitJob(NewJob(JobKindRedriveUnsettled, 1, 0)), ErrSchedulerNotRunning)
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerStopped)
}

func TestScheduler_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentJobs = 1
	cfg.QueueSize = 1
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{}, 1)

	s, _ := startScheduler(t, cfg, funcExecutor(func(ctx context.Context, job *Job) error {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))

	require.NoError(t, s.SubmitJob(NewJob(JobKindRedriveUnsettled, 1, 0)))
	<-started
	require.NoError(t, s.SubmitJob(NewJob(JobKindRedriveUnsettled, 1, 0)))
	assert.ErrorIs(t, s.SubmitJob(NewJob(JobKindRedriveUnsettled, 1, 0)), ErrJobQueueFull)
}

type stubRedriver struct {
	mu      sync.Mutex
	calls   []int
	summary *paymentapp.RedriveSummary
	err     error
}

func (r *stubRedriver) RedriveUnsettled(_ context.Context, batchSize int) (*paymentapp.RedriveSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, batchSize)
	return r.summary, r.err
}

func TestRedriveExecutor_Execute(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		kind    JobKind
		summary *paymentapp.RedriveSummary
		err     error
		wantErr bool
	}{
		{"empty batch", JobKindRedriveUnsettled, &paymentapp.RedriveSummary{}, nil, false},
		{"partial progress", JobKindRedriveUnsettled, &paymentapp.RedriveSummary{Attempted: 3, Settled: 1, Failed: 2, Remaining: 2}, nil, false},
		{"no progress", JobKindRedriveUnsettled, &paymentapp.RedriveSummary{Attempted: 2, Failed: 2, Remaining: 2}, nil, true},
		{"redriver error", JobKindRedriveUnsettled, nil, errors.New("db down"), true},
		{"unknown kind", JobKind("OTHER"), &paymentapp.RedriveSummary{}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			redriver := &stubRedriver{summary: tt.summary, err: tt.err}
			exec := NewRedriveExecutor(redriver, zap.NewNop())
			job := NewJob(tt.kind, 25, 0)

			err := exec.Execute(ctx, job)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.kind == JobKindRedriveUnsettled {
				assert.Equal(t, []int{25}, redriver.calls)
			} else {
				assert.Empty(t, redriver.calls)
			}
		})
	}
}

func TestRedriveTrigger_SubmitsPeriodically(t *testing.T) {
	redriver := &stubRedriver{summary: &paymentapp.RedriveSummary{}}
	s := NewScheduler(testConfig(), NewRedriveExecutor(redriver, zap.NewNop()), zap.NewNop())
	trigger := NewRedriveTrigger(RedriveTriggerConfig{Interval: 10 * time.Millisecond, BatchSize: 50}, s, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, trigger.Start(ctx))

	require.Eventually(t, func() bool {
		redriver.mu.Lock()
		defer redriver.mu.Unlock()
		return len(redriver.calls) >= 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, trigger.Stop(ctx))
	require.NoError(t, s.Stop(ctx))

	redriver.mu.Lock()
	defer redriver.mu.Unlock()
	for _, batch := range redriver.calls {
		assert.Equal(t, 50, batch)
	}
}

func TestRedriveTrigger_SingleJobInFlight(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	s := NewScheduler(testConfig(), funcExecutor(func(ctx context.Context, job *Job) error {
		runs.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}), zap.NewNop())
	trigger := NewRedriveTrigger(RedriveTriggerConfig{Interval: time.Hour, BatchSize: 10}, s, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() { _ = s.Stop(ctx) })

	require.NoError(t, trigger.TriggerNow())
	assert.True(t, trigger.InFlight())
	assert.ErrorIs(t, trigger.TriggerNow(), ErrRedriveInProgress)

	close(release)
	require.Eventually(t, func() bool { return !trigger.InFlight() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	require.NoError(t, trigger.TriggerNow(), "a new redrive can start once the previous one finished")
}

func TestRedriveTrigger_SubmitFailureClearsInFlight(t *testing.T) {
	s := NewScheduler(testConfig(), funcExecutor(func(context.Context, *Job) error { return nil }), zap.NewNop())
	trigger := NewRedriveTrigger(RedriveTriggerConfig{Interval: time.Hour}, s, zap.NewNop())

	assert.ErrorIs(t, trigger.TriggerNow(), ErrSchedulerNotRunning)
	assert.False(t, trigger.InFlight())
}
