// Package runner is the execution side of the job store: a poll loop
// that claims due jobs and a worker pool that runs them. It sits behind
// the store and is invisible to the dedup decision layer.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jobs/dedup/internal/models"
	"github.com/jobs/dedup/internal/store"
	"github.com/jobs/dedup/pkg/config"
	"go.uber.org/zap"
)

// Handler executes one job run. The returned error decides whether the
// run is recorded as failed.
type Handler func(ctx context.Context, job *models.Job) error

type Runner struct {
	store        *store.GormStore
	logger       *zap.Logger
	pollInterval time.Duration
	maxWorkers   int
	claimBatch   int
	instanceID   string

	mu       sync.RWMutex
	handlers map[string]Handler

	jobCh  chan *models.Job
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(st *store.GormStore, cfg config.RunnerConfig, logger *zap.Logger) *Runner {
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	batch := cfg.ClaimBatch
	if batch <= 0 {
		batch = workers
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{
		store:        st,
		logger:       logger,
		pollInterval: interval,
		maxWorkers:   workers,
		claimBatch:   batch,
		instanceID:   uuid.NewString(),
		handlers:     make(map[string]Handler),
		jobCh:        make(chan *models.Job, batch),
		stopCh:       make(chan struct{}),
	}
}

// Register binds a handler to a fully-qualified job name. Jobs without a
// registered handler fail their run.
func (r *Runner) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

func (r *Runner) Start() {
	r.logger.Info("starting runner",
		zap.String("instance_id", r.instanceID),
		zap.Int("max_workers", r.maxWorkers))

	for i := 0; i < r.maxWorkers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	r.wg.Add(1)
	go r.pollLoop()
}

func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("runner stopped", zap.String("instance_id", r.instanceID))
}

func (r *Runner) pollLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.poll()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Runner) poll() {
	ctx := context.Background()
	jobs, err := r.store.ClaimDue(ctx, time.Now(), r.claimBatch, r.instanceID)
	if err != nil {
		r.logger.Error("failed to claim due jobs", zap.Error(err))
		return
	}
	for _, job := range jobs {
		select {
		case r.jobCh <- job:
		case <-r.stopCh:
			return
		}
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()

	for {
		select {
		case job := <-r.jobCh:
			r.run(job)
		case <-r.stopCh:
			return
		}
	}
}

func (r *Runner) run(job *models.Job) {
	ctx := context.Background()

	r.mu.RLock()
	handler, ok := r.handlers[job.Name]
	r.mu.RUnlock()

	var runErr error
	if !ok {
		runErr = fmt.Errorf("no handler registered for %q", job.Name)
	} else {
		runErr = handler(ctx, job)
	}

	if runErr != nil {
		r.logger.Warn("job run failed",
			zap.Uint64("job_id", job.ID),
			zap.String("name", job.Name),
			zap.Error(runErr))
	}

	if err := r.store.Finish(ctx, job, runErr); err != nil {
		r.logger.Error("failed to record job result",
			zap.Uint64("job_id", job.ID),
			zap.Error(err))
	}
}
