package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobs/dedup/internal/models"
	"github.com/jobs/dedup/internal/store"
	"github.com/jobs/dedup/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store that preserves creation order, which
// is what the gorm implementation's (created_at, id) ordering gives.
type fakeStore struct {
	jobs   []*models.Job
	nextID uint64

	failQuery bool
	failCount bool
	readyErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (f *fakeStore) add(job *models.Job) uint64 {
	f.nextID++
	job.ID = f.nextID
	job.CreatedAt = time.Now()
	f.jobs = append(f.jobs, job)
	return job.ID
}

func (f *fakeStore) ScheduleOnce(_ context.Context, at time.Time, name string, args models.JSONMap, group string, priority int) (uint64, error) {
	return f.add(&models.Job{
		Name:         name,
		GroupName:    group,
		Args:         args,
		ArgsDigest:   args.Digest(),
		Status:       models.JobStatusPending,
		Priority:     priority,
		ScheduleKind: models.ScheduleKindOnce,
		NextRunAt:    at,
	}), nil
}

func (f *fakeStore) ScheduleInterval(_ context.Context, at time.Time, every time.Duration, name string, args models.JSONMap, group string, maxRuns, priority int) (uint64, error) {
	return f.add(&models.Job{
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
	}), nil
}

func (f *fakeStore) ScheduleCron(_ context.Context, expr string, name string, args models.JSONMap, group string, maxRuns, priority int) (uint64, error) {
	return f.add(&models.Job{
		Name:         name,
		GroupName:    group,
		Args:         args,
		ArgsDigest:   args.Digest(),
		Status:       models.JobStatusPending,
		Priority:     priority,
		ScheduleKind: models.ScheduleKindCron,
		CronExpr:     expr,
		MaxRuns:      maxRuns,
	}), nil
}

func (f *fakeStore) Cancel(_ context.Context, id uint64) (bool, error) {
	for _, job := range f.jobs {
		if job.ID != id {
			continue
		}
		for _, live := range models.LiveStatuses {
			if job.Status == live {
				job.Status = models.JobStatusCancelled
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

func (f *fakeStore) Delete(_ context.Context, id uint64) (bool, error) {
	for i, job := range f.jobs {
		if job.ID == id {
			f.jobs = append(f.jobs[:i], f.jobs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Query(_ context.Context, filter store.Filter) ([]*models.Job, error) {
	if f.failQuery {
		return nil, errors.New("query exploded")
	}
	var out []*models.Job
	for _, job := range f.jobs {
		if !matches(job, filter) {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (f *fakeStore) FetchStatus(_ context.Context, id uint64) (models.JobStatus, bool, error) {
	for _, job := range f.jobs {
		if job.ID == id {
			return job.Status, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeStore) Count(ctx context.Context, filter store.Filter) (int64, error) {
	if f.failCount {
		return 0, errors.New("count exploded")
	}
	jobs, err := f.Query(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(jobs)), nil
}

func (f *fakeStore) Ready(_ context.Context) error {
	return f.readyErr
}

func matches(job *models.Job, filter store.Filter) bool {
	if name, ok := filter.Name.Get(); ok && job.Name != name {
		return false
	}
	if group, ok := filter.Group.Get(); ok && job.GroupName != group {
		return false
	}
	if args, ok := filter.Args.Get(); ok && job.ArgsDigest != args.Digest() {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, st := range filter.Statuses {
			if job.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func newTestScheduler() (*Scheduler, *fakeStore) {
	fs := newFakeStore()
	return New(NewConfig(), fs, logger.NewNop()), fs
}

func TestNormalizeName(t *testing.T) {
	s, _ := newTestScheduler()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "sync", "queue_sync"},
		{"already prefixed", "queue_sync", "queue_sync"},
		{"doubly prefixed", "queue_queue_sync", "queue_sync"},
		{"triply prefixed", "queue_queue_queue_sync", "queue_sync"},
		{"empty", "", ""},
		{"prefix only", "queue_", "queue_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.NormalizeName(tt.raw)
			assert.Equal(t, tt.want, got)
			// idempotent: applying again changes nothing
			assert.Equal(t, got, s.NormalizeName(got))
		})
	}
}

func TestNormalizeNameEmptyPrefix(t *testing.T) {
	s, _ := newTestScheduler()
	s.Config().Configure("", "queue_default", "")
	assert.Equal(t, "sync", s.NormalizeName("sync"))
}

func TestValidation(t *testing.T) {
	s, _ := newTestScheduler()
	ctx := context.Background()

	_, err := s.ScheduleOnce(ctx, TaskRequest{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = s.ScheduleOnce(ctx, TaskRequest{Name: "sync", Delay: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidDelay)

	_, err = s.ScheduleRecurring(ctx, TaskRequest{Name: "sync", Delay: -time.Second, Interval: time.Minute})
	assert.ErrorIs(t, err, ErrInvalidDelay)

	_, err = s.ScheduleRecurring(ctx, TaskRequest{Name: "sync"})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = s.ScheduleRecurring(ctx, TaskRequest{Name: "sync", Interval: -time.Minute})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestValidationBeforeStoreCall(t *testing.T) {
	s, fs := newTestScheduler()
	fs.failQuery = true // would surface as ErrStore if the store were hit

	_, err := s.ScheduleRecurring(context.Background(), TaskRequest{
		Name: "sync", Uniqueness: UniquenessHook,
	})
	assert.ErrorIs(t, err, ErrInvalidInterval)
	assert.Empty(t, fs.jobs)
}

func TestUniquenessNone(t *testing.T) {
	s, _ := newTestScheduler()
	ctx := context.Background()
	req := TaskRequest{Name: "sync", Args: models.JSONMap{"id": 1}}

	id1, err := s.ScheduleOnce(ctx, req)
	require.NoError(t, err)
	id2, err := s.ScheduleOnce(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestUniquenessHook(t *testing.T) {
	s, _ := newTestScheduler()
	ctx := context.Background()

	id1, err := s.ScheduleOnce(ctx, TaskRequest{
		Name: "sync", Group: "a", Args: models.JSONMap{"id": 1}, Uniqueness: UniquenessHook,
	})
	require.NoError(t, err)

	// same name, different group and args: still a duplicate
	id2, err := s.ScheduleOnce(ctx, TaskRequest{
		Name: "sync", Group: "b", Args: models.JSONMap{"id": 2}, Uniqueness: UniquenessHook,
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	id3, err := s.ScheduleOnce(ctx, TaskRequest{Name: "other", Uniqueness: UniquenessHook})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestUniquenessGroup(t *testing.T) {
	s, _ := newTestScheduler()
	ctx := context.Background()

	id1, err := s.ScheduleOnce(ctx, TaskRequest{
		Name: "sync", Group: "imports", Args: models.JSONMap{"id": 1}, Uniqueness: UniquenessGroup,
	})
	require.NoError(t, err)

	// same name+group, different args: duplicate
	id2, err := s.ScheduleOnce(ctx, TaskRequest{
		Name: "sync", Group: "imports", Args: models.JSONMap{"id": 2}, Uniqueness: UniquenessGroup,
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// different group: new job
	id3, err := s.ScheduleOnce(ctx, TaskRequest{
		Name: "sync", Group: "exports", Uniqueness: UniquenessGroup,
	})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestUniquenessArgs(t *testing.T) {
	s, _ := newTestScheduler()
	ctx := context.Background()
	s.Config().Configure("app_", "queue_default", "test")

	id1, err := s.ScheduleOnce(ctx, TaskRequest{
		Name: "sync", Args: models.JSONMap{"id": 1}, Uniqueness: UniquenessArgs,
	})
	require.NoError(t, err)

	// identical name+group+args: same handle, no new job
	id2, err := s.ScheduleOnce(ctx, TaskRequest{
		Name: "sync", Args: models.JSONMap{"id": 1}, Uniqueness: UniquenessArgs,
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// any difference in args: new job
	id3, err := s.ScheduleOnce(ctx, TaskRequest{
		Name: "sync", Args: models.JSONMap{"id": 2}, Uniqueness: UniquenessArgs,
	})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestOneShotAndRecurringNeverCollapse(t *testing.T) {
	s, _ := newTestScheduler()
	ctx := context.Background()

	onceID, err := s.ScheduleOnce(ctx, TaskRequest{Name: "sync", Uniqueness: UniquenessHook})
	require.NoError(t, err)

	recurringID, err := s.ScheduleRecurring(ctx, TaskRequest{
		Name: "sync", Interval: time.Minute, Uniqueness: UniquenessHook,
	})
	require.NoError(t, err)
	assert.NotEqual(t, onceID, recurringID)

	// and each still deduplicates against its own kind
	onceAgain, err := s.ScheduleOnce(ctx, TaskRequest{Name: "sync", Uniqueness: UniquenessHook})
	require.NoError(t, err)
	assert.Equal(t, onceID, onceAgain)

	recurringAgain, err := s.ScheduleRecurring(ctx, TaskRequest{
		Name: "sync", Interval: time.Hour, Uniqueness: UniquenessHook,
	})
	require.NoError(t, err)
	assert.Equal(t, recurringID, recurringAgain)
}

func TestDedupIgnoresFinishedJobs(t *testing.T) {
	s, fs := newTestScheduler()
	ctx := context.Background()

	id1, err := s.ScheduleOnce(ctx, TaskRequest{Name: "sync", Uniqueness: UniquenessHook})
	require.NoError(t, err)

	fs.jobs[0].Status = models.JobStatusSucceeded

	id2, err := s.ScheduleOnce(ctx, TaskRequest{Name: "sync", Uniqueness: UniquenessHook})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestDedupReturnsOldestCandidate(t *testing.T) {
	s, fs := newTestScheduler()
	ctx := context.Background()

	// two equivalent live jobs created without uniqueness
	id1, err := s.ScheduleOnce(ctx, TaskRequest{Name: "sync"})
	require.NoError(t, err)
	_, err = s.ScheduleOnce(ctx, TaskRequest{Name: "sync"})
	require.NoError(t, err)
	require.Len(t, fs.jobs, 2)

	got, err := s.ScheduleOnce(ctx, TaskRequest{Name: "sync", Uniqueness: UniquenessHook})
	require.NoError(t, err)
	assert.Equal(t, id1, got)
}

func TestStoreErrorWrapped(t *testing.T) {
	s, fs := newTestScheduler()
	fs.failQuery = true

	_, err := s.ScheduleOnce(context.Background(), TaskRequest{Name: "sync", Uniqueness: UniquenessHook})
	assert.ErrorIs(t, err, ErrStore)
}

func TestCancelDeleteStatus(t *testing.T) {
	s, _ := newTestScheduler()
	ctx := context.Background()

	id, err := s.ScheduleOnce(ctx, TaskRequest{Name: "sync"})
	require.NoError(t, err)

	status, err := s.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, status)

	require.NoError(t, s.Cancel(ctx, id))
	status, err = s.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, status)

	// cancelling a finished job fails
	assert.ErrorIs(t, s.Cancel(ctx, id), ErrCancelFailed)

	require.NoError(t, s.Delete(ctx, id))
	assert.ErrorIs(t, s.Delete(ctx, id), ErrDeleteFailed)

	_, err = s.Status(ctx, id)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestExistsAndLists(t *testing.T) {
	s, _ := newTestScheduler()
	ctx := context.Background()

	assert.False(t, s.Exists(ctx, "sync"))

	_, err := s.ScheduleOnce(ctx, TaskRequest{Name: "sync", Group: "imports", Args: models.JSONMap{"id": 1}})
	require.NoError(t, err)

	assert.True(t, s.Exists(ctx, "sync"))
	assert.True(t, s.Exists(ctx, "queue_sync")) // normalization applies here too
	assert.False(t, s.Exists(ctx, "other"))

	assert.Len(t, s.ListByName(ctx, "sync"), 1)
	assert.Len(t, s.ListByGroup(ctx, "imports"), 1)
	assert.Len(t, s.ListByArgs(ctx, "sync", models.JSONMap{"id": 1}), 1)
	assert.Empty(t, s.ListByArgs(ctx, "sync", models.JSONMap{"id": 2}))
	assert.Equal(t, int64(1), s.CountByGroup(ctx, "imports"))
}

func TestRecurringExists(t *testing.T) {
	s, _ := newTestScheduler()
	ctx := context.Background()

	_, err := s.ScheduleOnce(ctx, TaskRequest{Name: "sync"})
	require.NoError(t, err)
	assert.False(t, s.RecurringExists(ctx, "sync"))

	_, err = s.ScheduleRecurring(ctx, TaskRequest{Name: "sync", Interval: time.Minute})
	require.NoError(t, err)
	assert.True(t, s.RecurringExists(ctx, "sync"))
}

func TestSoftReadersDegrade(t *testing.T) {
	s, fs := newTestScheduler()
	ctx := context.Background()
	fs.failQuery = true
	fs.failCount = true

	assert.False(t, s.Exists(ctx, "sync"))
	assert.False(t, s.RecurringExists(ctx, "sync"))
	assert.Empty(t, s.ListByName(ctx, "sync"))
	assert.Empty(t, s.ListByGroup(ctx, "imports"))
	assert.Zero(t, s.CountByGroup(ctx, "imports"))
}

func TestReady(t *testing.T) {
	s, fs := newTestScheduler()
	require.NoError(t, s.Ready(context.Background()))

	fs.readyErr = store.ErrStorageUnreachable
	assert.ErrorIs(t, s.Ready(context.Background()), ErrStoreUnavailable)
}
