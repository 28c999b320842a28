package dedup

import (
	"context"
	"fmt"

	"github.com/jobs/dedup/internal/models"
	"github.com/jobs/dedup/internal/store"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// Management and query passthroughs. Name and group arguments go through
// the same normalization as scheduling before they reach the store.
//
// The boolean/count/list readers have a soft contract: their callers
// treat "unknown" and "absent" the same, so a store failure degrades to
// false, zero or an empty list instead of an error.

// Cancel marks a live job cancelled by handle.
func (s *Scheduler) Cancel(ctx context.Context, id uint64) error {
	ok, err := s.store.Cancel(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !ok {
		return fmt.Errorf("%w: job %d", ErrCancelFailed, id)
	}
	return nil
}

// Delete removes a job record by handle.
func (s *Scheduler) Delete(ctx context.Context, id uint64) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !ok {
		return fmt.Errorf("%w: job %d", ErrDeleteFailed, id)
	}
	return nil
}

// Status reports a job's current status by handle.
func (s *Scheduler) Status(ctx context.Context, id uint64) (models.JobStatus, error) {
	status, found, err := s.store.FetchStatus(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !found {
		return "", fmt.Errorf("%w: job %d", ErrTaskNotFound, id)
	}
	return status, nil
}

// ListByName returns all jobs scheduled under the given raw name.
func (s *Scheduler) ListByName(ctx context.Context, name string) []*models.Job {
	return s.list(ctx, store.Filter{
		Name: mo.Some(s.NormalizeName(sanitizeKey(name))),
	})
}

// ListByGroup returns all jobs in the given group.
func (s *Scheduler) ListByGroup(ctx context.Context, group string) []*models.Job {
	return s.list(ctx, store.Filter{
		Group: mo.Some(s.resolveGroup(group)),
	})
}

// ListByArgs returns the jobs under the given name whose argument map is
// exactly equal to args.
func (s *Scheduler) ListByArgs(ctx context.Context, name string, args models.JSONMap) []*models.Job {
	return s.list(ctx, store.Filter{
		Name: mo.Some(s.NormalizeName(sanitizeKey(name))),
		Args: mo.Some(args),
	})
}

// Exists reports whether any live job is outstanding under the name.
func (s *Scheduler) Exists(ctx context.Context, name string) bool {
	jobs := s.list(ctx, store.Filter{
		Name:     mo.Some(s.NormalizeName(sanitizeKey(name))),
		Statuses: models.LiveStatuses,
	})
	return len(jobs) > 0
}

// RecurringExists reports whether a live recurring job is outstanding
// under the name, classifying each candidate by its schedule tag.
func (s *Scheduler) RecurringExists(ctx context.Context, name string) bool {
	jobs := s.list(ctx, store.Filter{
		Name:     mo.Some(s.NormalizeName(sanitizeKey(name))),
		Statuses: models.LiveStatuses,
	})
	for _, job := range jobs {
		if job.Schedule().Recurring() {
			return true
		}
	}
	return false
}

// CountByGroup counts the live jobs in the given group.
func (s *Scheduler) CountByGroup(ctx context.Context, group string) int64 {
	count, err := s.store.Count(ctx, store.Filter{
		Group:    mo.Some(s.resolveGroup(group)),
		Statuses: models.LiveStatuses,
	})
	if err != nil {
		s.logger.Warn("count failed, reporting zero",
			zap.String("group", group), zap.Error(err))
		return 0
	}
	return count
}

func (s *Scheduler) list(ctx context.Context, f store.Filter) []*models.Job {
	jobs, err := s.store.Query(ctx, f)
	if err != nil {
		s.logger.Warn("query failed, reporting no jobs", zap.Error(err))
		return nil
	}
	return jobs
}
