// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/scheduler

// Package scheduler precomputes user timelines in the background: a
// polled job queue with priority ordering, bounded concurrency, retry
// on failure, and activity-predicted warm builds.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidefeed/tidefeed/internal/feed"
	"github.com/tidefeed/tidefeed/internal/feed/pipeline"
	"github.com/tidefeed/tidefeed/internal/logging"
	"github.com/tidefeed/tidefeed/internal/metrics"
	"github.com/tidefeed/tidefeed/internal/timelinecache"
)

// Warm job tuning.
const (
	// warmLead is how long before the predicted active time a warm job
	// is scheduled to run.
	warmLead = 60 * time.Second

	// warmConfidenceThreshold gates warm builds on prediction quality.
	warmConfidenceThreshold = 0.5

	// warmHorizon limits warm scheduling to predictions in the near
	// future.
	warmHorizon = 2 * time.Hour

	warmPriority = 0.3
)

// terminalRetention is how long finished jobs stay queryable.
const terminalRetention = 10 * time.Minute

// CandidateSource fetches the build inputs for a user. Implementations
// sit in front of the post/user repositories outside the core.
type CandidateSource interface {
	Candidates(ctx context.Context, userID string) (pipeline.Request, error)
}

// Builder produces a timeline from a build request. *pipeline.Pipeline
// is the production implementation.
type Builder interface {
	BuildTimeline(ctx context.Context, req pipeline.Request) feed.TimelineResult
}

// Config tunes the scheduler.
type Config struct {
	// MaxConcurrentJobs bounds simultaneously running builds.
	MaxConcurrentJobs int `koanf:"max_concurrent_jobs"`

	// JobTimeout bounds one build's execution and the blocking wait in
	// GetUserTimeline.
	JobTimeout time.Duration `koanf:"job_timeout"`

	// RetryAttempts is the maximum total attempts per logical build.
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryDelay postpones a retry after a failure.
	RetryDelay time.Duration `koanf:"retry_delay"`

	// PollInterval is the queue polling cadence.
	PollInterval time.Duration `koanf:"poll_interval"`

	// PredictionInterval is the activity prediction cadence.
	PredictionInterval time.Duration `koanf:"prediction_interval"`
}

// DefaultConfig returns the production scheduler tuning.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs:  5,
		JobTimeout:         30 * time.Second,
		RetryAttempts:      3,
		RetryDelay:         5 * time.Second,
		PollInterval:       time.Second,
		PredictionInterval: time.Minute,
	}
}

// Scheduler owns the precomputation job queue.
type Scheduler struct {
	cfg       Config
	source    CandidateSource
	builder   Builder
	cache     timelinecache.Cache
	predictor *ActivityPredictor

	mu      sync.Mutex
	jobs    map[string]*Job
	running int

	limiters *triggerLimiters

	logger zerolog.Logger
	now    func() time.Time
}

// New creates a scheduler. cache may be nil; results are then only
// delivered through job records.
func New(cfg Config, source CandidateSource, builder Builder, cache timelinecache.Cache) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = def.MaxConcurrentJobs
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PredictionInterval <= 0 {
		cfg.PredictionInterval = def.PredictionInterval
	}

	return &Scheduler{
		cfg:       cfg,
		source:    source,
		builder:   builder,
		cache:     cache,
		predictor: NewActivityPredictor(),
		jobs:      make(map[string]*Job),
		limiters:  newTriggerLimiters(),
		logger:    logging.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
	}
}

// Predictor exposes the activity predictor fed by callers on user
// activity.
func (s *Scheduler) Predictor() *ActivityPredictor {
	return s.predictor
}

// ScheduleTimeline enqueues a timeline build for a user at the given
// time. An already active build for the user is reused, making the
// operation idempotent per user.
func (s *Scheduler) ScheduleTimeline(userID string, priority float64, when time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.activeJobLocked(userID); existing != nil {
		return existing.ID
	}

	now := s.now()
	if when.IsZero() {
		when = now
	}

	job := newJob(userID, JobTimeline, priority, when, now)
	s.jobs[job.ID] = job

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("user_id", userID).
		Float64("priority", priority).
		Time("scheduled", when).
		Msg("timeline job enqueued")

	return job.ID
}

// GetJobStatus returns a copy of the job record, or ErrJobNotFound.
func (s *Scheduler) GetJobStatus(jobID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job.snapshot(), nil
}

// CancelJob cancels a pending job. Running and terminal jobs are left
// untouched and report an error.
func (s *Scheduler) CancelJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != StatusPending {
		return fmt.Errorf("scheduler: cannot cancel job in state %s", job.Status)
	}

	job.Status = StatusCancelled
	job.CompletedAt = s.now()
	close(job.done)
	return nil
}

// GetUserTimeline returns the user's timeline: from the result cache
// when available, otherwise by awaiting a (possibly fresh) build job up
// to the job timeout.
func (s *Scheduler) GetUserTimeline(ctx context.Context, userID string) (*feed.TimelineResult, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, userID); err == nil {
			metrics.RecordCacheAccess("timeline", true)
			return cached, nil
		} else if !errors.Is(err, timelinecache.ErrNotFound) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("timeline cache read failed")
		} else {
			metrics.RecordCacheAccess("timeline", false)
		}
	}

	s.mu.Lock()
	job := s.activeJobLocked(userID)
	if job == nil {
		now := s.now()
		job = newJob(userID, JobTimeline, 0.9, now, now)
		s.jobs[job.ID] = job
	}
	done := job.done
	jobID := job.ID
	s.mu.Unlock()

	// Nudge the queue so an idle scheduler picks the job up without
	// waiting for the next tick.
	s.pollOnce(ctx)

	select {
	case <-done:
	case <-time.After(s.cfg.JobTimeout):
		return nil, ErrJobTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	switch job.Status {
	case StatusCompleted:
		return job.Result, nil
	case StatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
	default:
		return nil, fmt.Errorf("%w: job %s", ErrJobFailed, job.Status)
	}
}

// Serve runs the polling and prediction loops until the context ends.
// It implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()

	predict := time.NewTicker(s.cfg.PredictionInterval)
	defer predict.Stop()

	s.logger.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Int("max_concurrent", s.cfg.MaxConcurrentJobs).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			s.pollOnce(ctx)
		case <-predict.C:
			s.scheduleWarmJobs()
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Scheduler) String() string {
	return "scheduler"
}

// pollOnce admits due pending jobs up to the concurrency ceiling, in
// (priority desc, scheduledTime asc) order, and prunes old terminal
// jobs.
func (s *Scheduler) pollOnce(ctx context.Context) {
	now := s.now()

	s.mu.Lock()

	due := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.Status == StatusPending && !job.ScheduledTime.After(now) {
			due = append(due, job)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})

	admitted := make([]*Job, 0, s.cfg.MaxConcurrentJobs)
	for _, job := range due {
		if s.running >= s.cfg.MaxConcurrentJobs {
			break
		}
		job.Status = StatusRunning
		job.StartedAt = now
		s.running++
		admitted = append(admitted, job)
	}

	for id, job := range s.jobs {
		if job.Status.terminal() && now.Sub(job.CompletedAt) > terminalRetention {
			delete(s.jobs, id)
		}
	}

	stats := make(map[string]int, 5)
	for _, job := range s.jobs {
		stats[string(job.Status)]++
	}

	s.mu.Unlock()

	metrics.UpdateSchedulerJobs(stats)

	// Builds are detached from the triggering context: pollOnce may be
	// nudged from a single request, and that caller giving up must not
	// abort its own or other users' builds. The job timeout alone
	// bounds execution.
	buildCtx := context.WithoutCancel(ctx)
	for _, job := range admitted {
		go s.execute(buildCtx, job)
	}
}

// execute runs one build under the job timeout.
func (s *Scheduler) execute(ctx context.Context, job *Job) {
	defer func() {
		s.mu.Lock()
		s.running--
		s.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			s.fail(job, fmt.Errorf("build panic: %v", r), false)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	req, err := s.source.Candidates(jobCtx, job.UserID)
	if err != nil {
		s.fail(job, err, errors.Is(err, context.DeadlineExceeded))
		return
	}

	result := s.builder.BuildTimeline(jobCtx, req)

	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		s.fail(job, context.DeadlineExceeded, true)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(jobCtx, job.UserID, &result); err != nil {
			s.logger.Warn().Err(err).Str("user_id", job.UserID).Msg("timeline cache write failed")
		}
	}

	s.mu.Lock()
	job.Status = StatusCompleted
	job.Result = &result
	job.CompletedAt = s.now()
	close(job.done)
	metrics.RecordJobExecution("completed", job.CompletedAt.Sub(job.StartedAt))
	s.mu.Unlock()

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Int("items", len(result.Items)).
		Msg("timeline job completed")
}

// fail marks a job failed and, unless the failure was a timeout,
// re-enqueues a fresh job after the retry delay while attempts remain.
func (s *Scheduler) fail(job *Job, err error, timedOut bool) {
	now := s.now()

	s.mu.Lock()
	job.Status = StatusFailed
	job.Error = err.Error()
	job.CompletedAt = now
	close(job.done)

	var retry *Job
	if !timedOut && job.Attempt < s.cfg.RetryAttempts {
		retry = newJob(job.UserID, job.Type, job.Priority, now.Add(s.cfg.RetryDelay), now)
		retry.Attempt = job.Attempt + 1
		s.jobs[retry.ID] = retry
		metrics.JobRetries.Inc()
	}
	metrics.RecordJobExecution("failed", now.Sub(job.StartedAt))
	s.mu.Unlock()

	event := s.logger.Warn().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Int("attempt", job.Attempt).
		Bool("timed_out", timedOut).
		Err(err)
	if retry != nil {
		event = event.Str("retry_job_id", retry.ID)
	}
	event.Msg("timeline job failed")
}

// scheduleWarmJobs enqueues warm builds for users confidently predicted
// to be active soon, scheduled warmLead before the predicted time.
func (s *Scheduler) scheduleWarmJobs() {
	now := s.now()

	for _, userID := range s.predictor.TrackedUsers() {
		pred, ok := s.predictor.PredictNextActive(userID)
		if !ok || pred.Confidence < warmConfidenceThreshold {
			continue
		}
		if pred.NextActive.Sub(now) > warmHorizon {
			continue
		}

		s.mu.Lock()
		if s.activeJobLocked(userID) == nil {
			when := pred.NextActive.Add(-warmLead)
			if when.Before(now) {
				when = now
			}
			job := newJob(userID, JobWarm, warmPriority, when, now)
			s.jobs[job.ID] = job

			s.logger.Debug().
				Str("job_id", job.ID).
				Str("user_id", userID).
				Float64("confidence", pred.Confidence).
				Time("scheduled", when).
				Msg("warm job enqueued")
		}
		s.mu.Unlock()
	}
}

// activeJobLocked finds the user's pending or running job, if any.
// Must be called with the lock held.
func (s *Scheduler) activeJobLocked(userID string) *Job {
	for _, job := range s.jobs {
		if job.UserID == userID && !job.Status.terminal() {
			return job
		}
	}
	return nil
}

// Stats reports the number of jobs per status.
func (s *Scheduler) Stats() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[Status]int, 5)
	for _, job := range s.jobs {
		stats[job.Status]++
	}
	return stats
}
