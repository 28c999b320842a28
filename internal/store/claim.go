package store

import (
	"context"
	"time"

	"github.com/jobs/dedup/internal/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ClaimDue flips up to limit due pending jobs to running on behalf of the
// named runner and returns the ones actually won. Each claim is a guarded
// single-row update, so two runners polling the same table never take the
// same job.
func (s *GormStore) ClaimDue(ctx context.Context, now time.Time, limit int, claimedBy string) ([]*models.Job, error) {
	var due []models.Job
	err := s.db(ctx).
		Where("status = ? AND next_run_at <= ?", models.JobStatusPending, now).
		Order("priority ASC, next_run_at ASC, id ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]*models.Job, 0, len(due))
	for i := range due {
		job := due[i]
		res := s.db(ctx).Model(&models.Job{}).
			Where("id = ? AND status = ?", job.ID, models.JobStatusPending).
			Updates(map[string]any{
				"status":     models.JobStatusRunning,
				"claimed_by": claimedBy,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue // lost the race to another runner
		}
		job.Status = models.JobStatusRunning
		job.ClaimedBy = claimedBy
		claimed = append(claimed, &job)
	}
	return claimed, nil
}

// Finish records the outcome of one run. One-shot jobs go terminal.
// Recurring jobs advance their run count and, unless exhausted, return to
// pending with the next fire time computed from their schedule descriptor.
func (s *GormStore) Finish(ctx context.Context, job *models.Job, runErr error) error {
	runs := job.RunCount + 1
	values := map[string]any{
		"run_count":  runs,
		"claimed_by": "",
		"last_error": "",
	}
	if runErr != nil {
		values["last_error"] = runErr.Error()
	}

	sched := job.Schedule()
	exhausted := job.MaxRuns > 0 && runs >= job.MaxRuns
	if !sched.Recurring() || exhausted {
		if runErr != nil {
			values["status"] = models.JobStatusFailed
		} else {
			values["status"] = models.JobStatusSucceeded
		}
		return s.db(ctx).Model(&models.Job{}).Where("id = ?", job.ID).Updates(values).Error
	}

	next, err := s.nextRun(sched)
	if err != nil {
		s.logger.Error("failed to compute next run, finishing job",
			zap.Uint64("job_id", job.ID),
			zap.Error(err))
		values["status"] = models.JobStatusFailed
		values["last_error"] = err.Error()
		return s.db(ctx).Model(&models.Job{}).Where("id = ?", job.ID).Updates(values).Error
	}

	values["status"] = models.JobStatusPending
	values["next_run_at"] = next
	return s.db(ctx).Model(&models.Job{}).Where("id = ?", job.ID).Updates(values).Error
}

func (s *GormStore) nextRun(sched models.Schedule) (time.Time, error) {
	switch sched.Kind {
	case models.ScheduleKindCron:
		cs, err := cron.ParseStandard(sched.Expr)
		if err != nil {
			return time.Time{}, err
		}
		return cs.Next(time.Now()), nil
	default:
		return time.Now().Add(sched.Every), nil
	}
}
