// Package scheduler implements the scheduler and job runner: a cron table
// mapping (source, stream) to a schedule, with per-source and global
// concurrency caps, persisted job records, and cooperative cancellation.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/lifelog/core/internal/metrics"
	"github.com/lifelog/core/lifelog"
)

// JobFunc performs the actual work for one scheduled tick: ingest the
// stream, transform the ontologies it produces, and any chained
// transforms. The scheduler only owns dispatch, concurrency, persistence,
// and cancellation — not ingestion/transform semantics.
type JobFunc func(ctx context.Context, job *Job) (recordsProcessed int, err error)

// Schedule binds a (source, stream) pair to a cron expression and the work
// to run when it fires.
type Schedule struct {
	SourceID string
	Stream   string
	CronExpr string
	Run      JobFunc
}

// Scheduler owns the cron table and dispatches jobs within the configured
// concurrency caps.
type Scheduler struct {
	cron    *cron.Cron
	jobs    JobStore
	logger  *zap.Logger
	metrics *metrics.Collector

	globalSem *semaphore.Weighted

	mu          sync.Mutex
	perSource   map[string]bool // sourceID -> job in flight
	cancelFuncs map[string]context.CancelFunc
	entries     []cron.EntryID
}

// New constructs a Scheduler. maxConcurrentGlobal bounds total in-flight
// jobs across all sources; per-source concurrency is always capped to 1.
func New(jobs JobStore, logger *zap.Logger, m *metrics.Collector, maxConcurrentGlobal int) *Scheduler {
	if maxConcurrentGlobal <= 0 {
		maxConcurrentGlobal = 16
	}
	return &Scheduler{
		cron:        cron.New(),
		jobs:        jobs,
		logger:      logger,
		metrics:     m,
		globalSem:   semaphore.NewWeighted(int64(maxConcurrentGlobal)),
		perSource:   map[string]bool{},
		cancelFuncs: map[string]context.CancelFunc{},
	}
}

// Register adds a (source, stream) schedule to the cron table. Call before
// Start; schedules added after Start take effect on the next tick the cron
// library schedules them for.
func (s *Scheduler) Register(sched Schedule) error {
	id, err := s.cron.AddFunc(sched.CronExpr, func() {
		s.dispatch(context.Background(), sched)
	})
	if err != nil {
		return lifelog.Wrap(lifelog.KindConfiguration,
			fmt.Sprintf("invalid cron expression %q for %s/%s", sched.CronExpr, sched.SourceID, sched.Stream), err)
	}
	s.mu.Lock()
	s.entries = append(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Start begins firing scheduled ticks. Non-blocking; returns immediately.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron table and waits for in-flight ticks to finish
// dispatching (not for dispatched jobs themselves to complete — callers
// wanting that should track job ids and call WaitForJobCompletion, or
// Cancel them first).
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

// Cancel cooperatively cancels a running job by id. The job's JobFunc is
// expected to check ctx at natural boundaries (between provider pages,
// between transform batches).
func (s *Scheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	cancel, ok := s.cancelFuncs[jobID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

func (s *Scheduler) dispatch(ctx context.Context, sched Schedule) {
	s.mu.Lock()
	if s.perSource[sched.SourceID] {
		s.mu.Unlock()
		s.logger.Debug("skipping tick, source already has a job in flight",
			zap.String("source_id", sched.SourceID), zap.String("stream", sched.Stream))
		return
	}
	s.perSource[sched.SourceID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.perSource, sched.SourceID)
		s.mu.Unlock()
	}()

	if err := s.globalSem.Acquire(ctx, 1); err != nil {
		s.logger.Warn("scheduler could not acquire global concurrency slot", zap.Error(err))
		return
	}
	defer s.globalSem.Release(1)

	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:        uuid.NewString(),
		SourceID:  sched.SourceID,
		Stream:    sched.Stream,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.cancelFuncs[job.ID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancelFuncs, job.ID)
		s.mu.Unlock()
		cancel()
	}()

	if err := s.jobs.Create(ctx, job); err != nil {
		s.logger.Error("failed to persist job", zap.Error(err))
		return
	}

	s.runJob(jobCtx, job, sched.Run)
}

func (s *Scheduler) runJob(ctx context.Context, job *Job, run JobFunc) {
	startedAt := time.Now()
	job.StartedAt = &startedAt
	job.Status = StatusRunning
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error("failed to mark job running", zap.String("job_id", job.ID), zap.Error(err))
	}

	records, err := run(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.RecordsProcessed = records

	status := "success"
	switch {
	case ctx.Err() != nil:
		job.Status = StatusCancelled
		status = "cancelled"
	case err != nil:
		job.Status = StatusFailed
		msg := err.Error()
		job.Error = &msg
		status = "error"
	default:
		job.Status = StatusSucceeded
	}

	if e := s.jobs.Update(ctx, job); e != nil {
		s.logger.Error("failed to persist job completion", zap.String("job_id", job.ID), zap.Error(e))
	}
	if s.metrics != nil {
		s.metrics.RecordSchedulerJob(job.SourceID, status)
	}
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("scheduled job failed",
			zap.String("job_id", job.ID), zap.String("source_id", job.SourceID),
			zap.String("stream", job.Stream), zap.Error(err))
	}
}
