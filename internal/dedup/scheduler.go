// Package dedup implements the decision layer in front of the persistent
// job store: it normalizes scheduling requests, applies the requested
// uniqueness scope against jobs that are still outstanding, and only
// creates a new job when no equivalent live job of the same kind exists.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jobs/dedup/internal/models"
	"github.com/jobs/dedup/internal/store"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

type Scheduler struct {
	cfg    *Config
	store  store.Store
	logger *zap.Logger
}

func New(cfg *Config, st store.Store, logger *zap.Logger) *Scheduler {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Scheduler{cfg: cfg, store: st, logger: logger}
}

func (s *Scheduler) Config() *Config {
	return s.cfg
}

// NormalizeName strips every leading copy of the configured prefix from
// raw and prepends exactly one, so a name that has already been through
// here any number of times collapses to the same single-prefixed form.
// The prefix is mutable configuration, so this is re-evaluated on every
// call rather than cached. Empty raw or empty prefix pass through as-is.
func (s *Scheduler) NormalizeName(raw string) string {
	prefix := s.cfg.NamePrefix()
	if raw == "" || prefix == "" {
		return raw
	}
	for strings.HasPrefix(raw, prefix) {
		raw = strings.TrimPrefix(raw, prefix)
	}
	return prefix + raw
}

// ScheduleOnce schedules a one-shot job to run after the request's delay
// and returns its handle. With a uniqueness scope other than NONE the
// handle of an equivalent outstanding one-shot job is returned instead of
// creating a duplicate.
func (s *Scheduler) ScheduleOnce(ctx context.Context, req TaskRequest) (uint64, error) {
	if err := s.validate(req, false); err != nil {
		return 0, err
	}
	name := s.NormalizeName(sanitizeKey(req.Name))
	group := s.resolveGroup(req.Group)
	at := time.Now().Add(req.Delay)

	if req.Uniqueness == UniquenessNone || req.Uniqueness == "" {
		return s.create(ctx, false, name, group, at, req)
	}
	return s.scheduleUnique(ctx, false, name, group, at, req)
}

// ScheduleRecurring schedules an interval-repeating job. The interval is
// validated before the uniqueness path runs, and a recurring request only
// ever deduplicates against recurring jobs.
func (s *Scheduler) ScheduleRecurring(ctx context.Context, req TaskRequest) (uint64, error) {
	if err := s.validate(req, true); err != nil {
		return 0, err
	}
	name := s.NormalizeName(sanitizeKey(req.Name))
	group := s.resolveGroup(req.Group)
	at := time.Now().Add(req.Delay)

	if req.Uniqueness == UniquenessNone || req.Uniqueness == "" {
		return s.create(ctx, true, name, group, at, req)
	}
	return s.scheduleUnique(ctx, true, name, group, at, req)
}

// Ready reports whether the job store and its backing storage are up.
func (s *Scheduler) Ready(ctx context.Context) error {
	if err := s.store.Ready(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Scheduler) validate(req TaskRequest, recurring bool) error {
	if strings.TrimSpace(req.Name) == "" {
		return ErrInvalidName
	}
	if req.Delay < 0 {
		return ErrInvalidDelay
	}
	if recurring && req.Interval <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

func (s *Scheduler) resolveGroup(group string) string {
	if strings.TrimSpace(group) == "" {
		return s.cfg.DefaultGroup()
	}
	return sanitizeKey(group)
}

func (s *Scheduler) resolvePriority(p int) int {
	if p == 0 {
		return DefaultPriority
	}
	return p
}

// scheduleUnique is the check-then-act core: query outstanding jobs
// matching the dedup key, keep only those whose schedule kind matches the
// request's own kind, and return the oldest survivor instead of
// scheduling. The read and the write are separate store calls, so two
// racing callers can still both schedule; best-effort deduplication is
// the contract here.
func (s *Scheduler) scheduleUnique(ctx context.Context, recurring bool, name, group string, at time.Time, req TaskRequest) (uint64, error) {
	filter := store.Filter{
		Name:     mo.Some(name),
		Statuses: models.LiveStatuses,
	}
	switch req.Uniqueness {
	case UniquenessGroup:
		filter.Group = mo.Some(group)
	case UniquenessArgs:
		filter.Group = mo.Some(group)
		filter.Args = mo.Some(req.Args)
	}

	candidates, err := s.store.Query(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStore, err)
	}

	// Query returns oldest-first, so the first surviving candidate is the
	// deterministic winner when several match.
	for _, job := range candidates {
		if job.Schedule().Recurring() != recurring {
			continue
		}
		fields := []zap.Field{
			zap.String("label", s.cfg.DiagnosticLabel()),
			zap.String("scope", string(req.Uniqueness)),
			zap.String("name", name),
			zap.String("group", group),
			zap.Uint64("job_id", job.ID),
			zap.Bool("recurring", recurring),
		}
		if req.Uniqueness == UniquenessArgs {
			fields = append(fields, zap.Any("args", req.Args))
		}
		s.logger.Info("duplicate task suppressed", fields...)
		return job.ID, nil
	}

	return s.create(ctx, recurring, name, group, at, req)
}

func (s *Scheduler) create(ctx context.Context, recurring bool, name, group string, at time.Time, req TaskRequest) (uint64, error) {
	priority := s.resolvePriority(req.Priority)

	var id uint64
	var err error
	if recurring {
		id, err = s.store.ScheduleInterval(ctx, at, req.Interval, name, req.Args, group, req.MaxRuns, priority)
	} else {
		id, err = s.store.ScheduleOnce(ctx, at, name, req.Args, group, priority)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScheduleFailed, err)
	}
	if id == 0 {
		return 0, ErrScheduleFailed
	}

	s.logger.Debug("task scheduled",
		zap.String("label", s.cfg.DiagnosticLabel()),
		zap.String("name", name),
		zap.String("group", group),
		zap.Uint64("job_id", id),
		zap.Bool("recurring", recurring),
		zap.Time("run_at", at))
	return id, nil
}
