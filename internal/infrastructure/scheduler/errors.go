package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrSchedulerStopped is returned when restarting a scheduler after Stop
	ErrSchedulerStopped = errors.New("scheduler was stopped and cannot be restarted")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrUnknownJobKind is returned for job kinds no executor handles
	ErrUnknownJobKind = errors.New("unknown job kind")

	// ErrRedriveInProgress is returned when a redrive batch is already queued or running
	ErrRedriveInProgress = errors.New("unsettled redrive already in progress")
)
