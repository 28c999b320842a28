package dedup

import "errors"

var (
	// ErrStoreUnavailable means the job store runtime or its backing
	// storage is not ready; the wrapped cause carries the sub-reason.
	ErrStoreUnavailable = errors.New("job store unavailable")

	ErrInvalidName     = errors.New("task name must not be empty")
	ErrInvalidDelay    = errors.New("task delay must not be negative")
	ErrInvalidInterval = errors.New("task interval must be positive")

	ErrScheduleFailed = errors.New("failed to schedule task")
	ErrCancelFailed   = errors.New("failed to cancel task")
	ErrDeleteFailed   = errors.New("failed to delete task")
	ErrTaskNotFound   = errors.New("task not found")

	// ErrStore wraps unexpected job store failures surfaced mid-call.
	ErrStore = errors.New("job store error")
)
