package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jobs/dedup/internal/models"
	"github.com/jobs/dedup/internal/storage"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"github.com/yitter/idgenerator-go/idgen"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormStore persists jobs in a relational jobs table (MySQL in
// production, sqlite in tests).
type GormStore struct {
	storage *storage.Storage
	logger  *zap.Logger
}

var _ Store = (*GormStore)(nil)

func NewGormStore(st *storage.Storage, logger *zap.Logger) *GormStore {
	return &GormStore{storage: st, logger: logger}
}

func (s *GormStore) db(ctx context.Context) *gorm.DB {
	return s.storage.DB().WithContext(ctx)
}

func (s *GormStore) ScheduleOnce(ctx context.Context, at time.Time, name string, args models.JSONMap, group string, priority int) (uint64, error) {
	job := &models.Job{
		ID:           uint64(idgen.NextId()),
		Name:         name,
		GroupName:    group,
		Args:         args,
		ArgsDigest:   args.Digest(),
		Status:       models.JobStatusPending,
		Priority:     priority,
		ScheduleKind: models.ScheduleKindOnce,
		NextRunAt:    at,
	}
	if err := s.db(ctx).Create(job).Error; err != nil {
		return 0, fmt.Errorf("failed to create job: %w", err)
	}
	return job.ID, nil
}

func (s *GormStore) ScheduleInterval(ctx context.Context, at time.Time, every time.Duration, name string, args models.JSONMap, group string, maxRuns, priority int) (uint64, error) {
	if every <= 0 {
		return 0, errors.New("interval must be positive")
	}
	job := &models.Job{
		ID:              uint64(idgen.NextId()),
		Name:            name,
		GroupName:       group,
		Args:            args,
		ArgsDigest:      args.Digest(),
		Status:          models.JobStatusPending,
		Priority:        priority,
		ScheduleKind:    models.ScheduleKindInterval,
		IntervalSeconds: int64(every / time.Second),
		NextRunAt:       at,
		MaxRuns:         maxRuns,
	}
	if err := s.db(ctx).Create(job).Error; err != nil {
		return 0, fmt.Errorf("failed to create job: %w", err)
	}
	return job.ID, nil
}

func (s *GormStore) ScheduleCron(ctx context.Context, expr string, name string, args models.JSONMap, group string, maxRuns, priority int) (uint64, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	job := &models.Job{
		ID:           uint64(idgen.NextId()),
		Name:         name,
		GroupName:    group,
		Args:         args,
		ArgsDigest:   args.Digest(),
		Status:       models.JobStatusPending,
		Priority:     priority,
		ScheduleKind: models.ScheduleKindCron,
		CronExpr:     expr,
		NextRunAt:    sched.Next(time.Now()),
		MaxRuns:      maxRuns,
	}
	if err := s.db(ctx).Create(job).Error; err != nil {
		return 0, fmt.Errorf("failed to create job: %w", err)
	}
	return job.ID, nil
}

func (s *GormStore) Cancel(ctx context.Context, id uint64) (bool, error) {
	res := s.db(ctx).Model(&models.Job{}).
		Where("id = ? AND status IN ?", id, models.LiveStatuses).
		Update("status", models.JobStatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) Delete(ctx context.Context, id uint64) (bool, error) {
	res := s.db(ctx).Where("id = ?", id).Delete(&models.Job{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) Query(ctx context.Context, f Filter) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.applyFilter(s.db(ctx), f).
		Order("created_at ASC, id ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return lo.Map(jobs, func(j models.Job, _ int) *models.Job {
		return &j
	}), nil
}

func (s *GormStore) FetchStatus(ctx context.Context, id uint64) (models.JobStatus, bool, error) {
	var job models.Job
	if err := s.db(ctx).Select("status").Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return job.Status, true, nil
}

func (s *GormStore) Count(ctx context.Context, f Filter) (int64, error) {
	var count int64
	if err := s.applyFilter(s.db(ctx).Model(&models.Job{}), f).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *GormStore) Ready(ctx context.Context) error {
	if s == nil || s.storage == nil {
		return ErrRuntimeNotLoaded
	}
	if err := s.storage.Ping(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnreachable, err)
	}
	if !s.storage.DB().Migrator().HasTable(&models.Job{}) {
		return ErrNotInitialized
	}
	return nil
}

func (s *GormStore) applyFilter(db *gorm.DB, f Filter) *gorm.DB {
	if name, ok := f.Name.Get(); ok {
		db = db.Where("name = ?", name)
	}
	if group, ok := f.Group.Get(); ok {
		db = db.Where("group_name = ?", group)
	}
	if args, ok := f.Args.Get(); ok {
		db = db.Where("args_digest = ?", args.Digest())
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	return db
}
