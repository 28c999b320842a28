// Package store defines the persistent job queue the dedup scheduler sits
// in front of: scheduling primitives, candidate queries and the readiness
// probe. The decision layer in internal/dedup only ever talks to the Store
// interface; the gorm implementation lives alongside it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jobs/dedup/internal/models"
	"github.com/samber/mo"
)

// Readiness sub-reasons. They all mean "store unavailable" to callers;
// the distinction only matters in diagnostics.
var (
	ErrRuntimeNotLoaded   = errors.New("job store runtime not loaded")
	ErrStorageUnreachable = errors.New("backing storage unreachable")
	ErrNotInitialized     = errors.New("job store schema not initialized")
)

// Filter selects jobs for Query and Count. Absent fields do not
// constrain the result. Args matches by exact equality of the whole
// argument map.
type Filter struct {
	Name     mo.Option[string]
	Group    mo.Option[string]
	Args     mo.Option[models.JSONMap]
	Statuses []models.JobStatus
}

type Store interface {
	// ScheduleOnce enqueues a one-shot job to run at the given time and
	// returns its handle. A zero handle is never returned without an error.
	ScheduleOnce(ctx context.Context, at time.Time, name string, args models.JSONMap, group string, priority int) (uint64, error)

	// ScheduleInterval enqueues a job that first runs at the given time and
	// then repeats every `every`, at most maxRuns times (0 = unbounded).
	ScheduleInterval(ctx context.Context, at time.Time, every time.Duration, name string, args models.JSONMap, group string, maxRuns, priority int) (uint64, error)

	// ScheduleCron enqueues a job driven by a standard cron expression.
	ScheduleCron(ctx context.Context, expr string, name string, args models.JSONMap, group string, maxRuns, priority int) (uint64, error)

	// Cancel marks a live job cancelled. Returns false when the job does
	// not exist or is already finished.
	Cancel(ctx context.Context, id uint64) (bool, error)

	// Delete removes a job record outright.
	Delete(ctx context.Context, id uint64) (bool, error)

	// Query returns jobs matching the filter, ordered by (created_at, id)
	// ascending so the oldest job is always first.
	Query(ctx context.Context, f Filter) ([]*models.Job, error)

	// FetchStatus reports a job's status; found is false for unknown ids.
	FetchStatus(ctx context.Context, id uint64) (status models.JobStatus, found bool, err error)

	Count(ctx context.Context, f Filter) (int64, error)

	// Ready probes the runtime and its backing storage.
	Ready(ctx context.Context) error
}
