// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/scheduler

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tidefeed/tidefeed/internal/feed"
	"github.com/tidefeed/tidefeed/internal/feed/pipeline"
	"github.com/tidefeed/tidefeed/internal/timelinecache"
)

// fakeSource returns a minimal build request, or a fixed error.
type fakeSource struct {
	err error
}

func (f *fakeSource) Candidates(_ context.Context, userID string) (pipeline.Request, error) {
	if f.err != nil {
		return pipeline.Request{}, f.err
	}
	return pipeline.Request{
		User: feed.UserContext{UserID: userID},
		Candidates: []feed.ContentItem{
			{ID: "post-1", AuthorID: "a1", RelevanceScore: 0.9, CreatedAt: time.Now()},
		},
	}, nil
}

// fakeBuilder returns a one-item timeline immediately.
type fakeBuilder struct{}

func (fakeBuilder) BuildTimeline(_ context.Context, req pipeline.Request) feed.TimelineResult {
	items := make([]feed.RankedItem, len(req.Candidates))
	for i := range req.Candidates {
		items[i] = feed.RankedItem{Item: req.Candidates[i], Score: req.Candidates[i].RelevanceScore}
	}
	return feed.TimelineResult{UserID: req.User.UserID, Items: items, GeneratedAt: time.Now()}
}

// blockingBuilder blocks until released or the build context ends.
type blockingBuilder struct {
	release chan struct{}
}

func (b *blockingBuilder) BuildTimeline(ctx context.Context, req pipeline.Request) feed.TimelineResult {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return feed.TimelineResult{UserID: req.User.UserID}
}

// stuckBuilder blocks until explicitly released, ignoring the build
// context, so caller-side timeouts are observed deterministically.
type stuckBuilder struct {
	release chan struct{}
}

func (b *stuckBuilder) BuildTimeline(_ context.Context, req pipeline.Request) feed.TimelineResult {
	<-b.release
	return feed.TimelineResult{UserID: req.User.UserID}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func jobStatus(s *Scheduler, id string) Status {
	job, err := s.GetJobStatus(id)
	if err != nil {
		return ""
	}
	return job.Status
}

func TestScheduleAndPollCompletesJob(t *testing.T) {
	t.Parallel()

	cache := timelinecache.NewMemoryCache(10, time.Minute)
	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, cache)

	id := s.ScheduleTimeline("u1", 0.5, time.Now().Add(-time.Second))
	s.pollOnce(context.Background())

	waitFor(t, "job completion", func() bool { return jobStatus(s, id) == StatusCompleted })

	job, err := s.GetJobStatus(id)
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if job.Result == nil || job.Result.UserID != "u1" {
		t.Errorf("job result = %+v, want timeline for u1", job.Result)
	}

	// The result landed in the external cache.
	cached, err := cache.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("cache.Get: %v", err)
	}
	if cached.UserID != "u1" {
		t.Errorf("cached UserID = %q, want u1", cached.UserID)
	}
}

func TestScheduleTimelineIdempotentPerUser(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, nil)

	first := s.ScheduleTimeline("u1", 0.5, time.Now())
	second := s.ScheduleTimeline("u1", 0.9, time.Now())

	if first != second {
		t.Errorf("second schedule created a new job: %s vs %s", first, second)
	}
}

func TestPollRespectsPriorityOrder(t *testing.T) {
	t.Parallel()

	builder := &blockingBuilder{release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.MaxConcurrentJobs = 1
	s := New(cfg, &fakeSource{}, builder, nil)

	past := time.Now().Add(-time.Second)
	lowID := s.ScheduleTimeline("u-low", 0.2, past)
	highID := s.ScheduleTimeline("u-high", 0.9, past)

	s.pollOnce(context.Background())

	if got := jobStatus(s, highID); got != StatusRunning {
		t.Errorf("high priority job status = %s, want running", got)
	}
	if got := jobStatus(s, lowID); got != StatusPending {
		t.Errorf("low priority job status = %s, want pending", got)
	}

	close(builder.release)
	waitFor(t, "high job completion", func() bool { return jobStatus(s, highID) == StatusCompleted })

	s.pollOnce(context.Background())
	waitFor(t, "low job completion", func() bool { return jobStatus(s, lowID) == StatusCompleted })
}

func TestPollHonorsConcurrencyCeiling(t *testing.T) {
	t.Parallel()

	builder := &blockingBuilder{release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.MaxConcurrentJobs = 2
	s := New(cfg, &fakeSource{}, builder, nil)

	past := time.Now().Add(-time.Second)
	ids := []string{
		s.ScheduleTimeline("u1", 0.5, past),
		s.ScheduleTimeline("u2", 0.5, past),
		s.ScheduleTimeline("u3", 0.5, past),
	}

	s.pollOnce(context.Background())

	running, pending := 0, 0
	for _, id := range ids {
		switch jobStatus(s, id) {
		case StatusRunning:
			running++
		case StatusPending:
			pending++
		}
	}
	if running != 2 || pending != 1 {
		t.Errorf("running = %d, pending = %d; want 2 running, 1 pending", running, pending)
	}

	close(builder.release)
}

func TestPollIgnoresFutureJobs(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, nil)

	id := s.ScheduleTimeline("u1", 0.9, time.Now().Add(time.Hour))
	s.pollOnce(context.Background())

	if got := jobStatus(s, id); got != StatusPending {
		t.Errorf("future job status = %s, want pending", got)
	}
}

func TestFailedJobRetriedAsNewJob(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RetryDelay = time.Minute
	s := New(cfg, &fakeSource{err: errors.New("repository unavailable")}, fakeBuilder{}, nil)

	id := s.ScheduleTimeline("u1", 0.5, time.Now().Add(-time.Second))
	s.pollOnce(context.Background())

	waitFor(t, "job failure", func() bool { return jobStatus(s, id) == StatusFailed })

	stats := s.Stats()
	if stats[StatusPending] != 1 {
		t.Fatalf("pending jobs = %d, want 1 retry", stats[StatusPending])
	}

	s.mu.Lock()
	var retry *Job
	for _, job := range s.jobs {
		if job.Status == StatusPending {
			retry = job
		}
	}
	s.mu.Unlock()

	if retry.ID == id {
		t.Error("retry reused the failed job's id")
	}
	if retry.Attempt != 2 {
		t.Errorf("retry attempt = %d, want 2", retry.Attempt)
	}
	if !retry.ScheduledTime.After(time.Now()) {
		t.Error("retry should be delayed")
	}
}

func TestRetriesExhaustAtAttemptBound(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RetryAttempts = 2
	cfg.RetryDelay = time.Millisecond
	s := New(cfg, &fakeSource{err: errors.New("still broken")}, fakeBuilder{}, nil)

	s.ScheduleTimeline("u1", 0.5, time.Now().Add(-time.Second))

	// Attempt 1 fails and spawns attempt 2; attempt 2 fails terminally.
	s.pollOnce(context.Background())
	waitFor(t, "first failure", func() bool { return s.Stats()[StatusFailed] == 1 })

	time.Sleep(5 * time.Millisecond)
	s.pollOnce(context.Background())
	waitFor(t, "second failure", func() bool { return s.Stats()[StatusFailed] == 2 })

	if pending := s.Stats()[StatusPending]; pending != 0 {
		t.Errorf("pending = %d, want no further retries", pending)
	}
}

func TestTimeoutFailureNotRetried(t *testing.T) {
	t.Parallel()

	builder := &blockingBuilder{release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.JobTimeout = 30 * time.Millisecond
	s := New(cfg, &fakeSource{}, builder, nil)

	id := s.ScheduleTimeline("u1", 0.5, time.Now().Add(-time.Second))
	s.pollOnce(context.Background())

	waitFor(t, "timeout failure", func() bool { return jobStatus(s, id) == StatusFailed })

	if pending := s.Stats()[StatusPending]; pending != 0 {
		t.Errorf("pending = %d, want 0: timeouts must not retry", pending)
	}
}

func TestGetUserTimelineFromCache(t *testing.T) {
	t.Parallel()

	cache := timelinecache.NewMemoryCache(10, time.Minute)
	want := &feed.TimelineResult{UserID: "u1"}
	if err := cache.Set(context.Background(), "u1", want); err != nil {
		t.Fatalf("cache.Set: %v", err)
	}

	s := New(DefaultConfig(), &fakeSource{err: errors.New("must not be called")}, fakeBuilder{}, cache)

	got, err := s.GetUserTimeline(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUserTimeline: %v", err)
	}
	if got != want {
		t.Error("cached result not returned")
	}
	if len(s.Stats()) != 0 {
		t.Error("cache hit should not schedule jobs")
	}
}

func TestGetUserTimelineBuildsOnMiss(t *testing.T) {
	t.Parallel()

	cache := timelinecache.NewMemoryCache(10, time.Minute)
	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, cache)

	got, err := s.GetUserTimeline(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUserTimeline: %v", err)
	}
	if got.UserID != "u1" || len(got.Items) != 1 {
		t.Errorf("got %+v, want built timeline", got)
	}
}

func TestGetUserTimelineTimesOut(t *testing.T) {
	t.Parallel()

	builder := &stuckBuilder{release: make(chan struct{})}
	t.Cleanup(func() { close(builder.release) })

	cfg := DefaultConfig()
	cfg.JobTimeout = 30 * time.Millisecond
	s := New(cfg, &fakeSource{}, builder, nil)

	_, err := s.GetUserTimeline(context.Background(), "u1")
	if !errors.Is(err, ErrJobTimeout) {
		t.Errorf("GetUserTimeline error = %v, want ErrJobTimeout", err)
	}
}

func TestGetUserTimelineSurfacesFailure(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), &fakeSource{err: errors.New("repository unavailable")}, fakeBuilder{}, nil)

	_, err := s.GetUserTimeline(context.Background(), "u1")
	if !errors.Is(err, ErrJobFailed) {
		t.Errorf("GetUserTimeline error = %v, want ErrJobFailed", err)
	}
}

func TestCancelPendingJob(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, nil)

	id := s.ScheduleTimeline("u1", 0.5, time.Now().Add(time.Hour))
	if err := s.CancelJob(id); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}

	if got := jobStatus(s, id); got != StatusCancelled {
		t.Errorf("status = %s, want cancelled", got)
	}
	if err := s.CancelJob(id); err == nil {
		t.Error("cancelling a terminal job should fail")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, nil)
	if err := s.CancelJob("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("CancelJob = %v, want ErrJobNotFound", err)
	}
}

func TestTriggerRefreshRateLimited(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, nil)
	ctx := context.Background()

	if _, ok := s.TriggerRefresh(ctx, "u1", TriggerContentVolume, 0.9); !ok {
		t.Fatal("first trigger should be accepted")
	}
	if _, ok := s.TriggerRefresh(ctx, "u1", TriggerEngagementDelta, 0.9); !ok {
		t.Fatal("second trigger should fit the burst")
	}
	if _, ok := s.TriggerRefresh(ctx, "u1", TriggerManual, 0.9); ok {
		t.Error("third rapid trigger should be dropped")
	}

	// Independent users are not affected.
	if _, ok := s.TriggerRefresh(ctx, "u2", TriggerManual, 0.9); !ok {
		t.Error("other user's trigger should be accepted")
	}
}

func TestTriggerRefreshHighPriorityImmediate(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	id, ok := s.TriggerRefresh(context.Background(), "u1", TriggerManual, 0.95)
	if !ok {
		t.Fatal("trigger dropped")
	}
	job, err := s.GetJobStatus(id)
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if !job.ScheduledTime.Equal(fixed) {
		t.Errorf("ScheduledTime = %v, want immediate %v", job.ScheduledTime, fixed)
	}
}

func TestTriggerRefreshLowPriorityDelayed(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	id, ok := s.TriggerRefresh(context.Background(), "u1", TriggerContentVolume, 0.4)
	if !ok {
		t.Fatal("trigger dropped")
	}
	job, err := s.GetJobStatus(id)
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if !job.ScheduledTime.After(fixed) {
		t.Errorf("ScheduledTime = %v, want delayed past %v", job.ScheduledTime, fixed)
	}
}

func TestTriggerRefreshInvalidatesCache(t *testing.T) {
	t.Parallel()

	cache := timelinecache.NewMemoryCache(10, time.Minute)
	ctx := context.Background()
	if err := cache.Set(ctx, "u1", &feed.TimelineResult{UserID: "u1"}); err != nil {
		t.Fatalf("cache.Set: %v", err)
	}

	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, cache)
	if _, ok := s.TriggerRefresh(ctx, "u1", TriggerManual, 0.9); !ok {
		t.Fatal("trigger dropped")
	}

	if _, err := cache.Get(ctx, "u1"); !errors.Is(err, timelinecache.ErrNotFound) {
		t.Errorf("cache.Get = %v, want ErrNotFound after invalidation", err)
	}
}

func TestScheduleWarmJobs(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, nil)

	fixed := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.predictor.now = func() time.Time { return fixed }

	// Strong 13:00 habit.
	for i := 0; i < 6; i++ {
		s.predictor.RecordActivity("u1", time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC))
	}

	s.scheduleWarmJobs()

	stats := s.Stats()
	if stats[StatusPending] != 1 {
		t.Fatalf("pending = %d, want 1 warm job", stats[StatusPending])
	}

	s.mu.Lock()
	var warm *Job
	for _, job := range s.jobs {
		warm = job
	}
	s.mu.Unlock()

	if warm.Type != JobWarm {
		t.Errorf("job type = %s, want warm", warm.Type)
	}
	wantTime := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC).Add(-warmLead)
	if !warm.ScheduledTime.Equal(wantTime) {
		t.Errorf("ScheduledTime = %v, want %v", warm.ScheduledTime, wantTime)
	}

	// A second pass must not duplicate the warm job.
	s.scheduleWarmJobs()
	if got := s.Stats()[StatusPending]; got != 1 {
		t.Errorf("pending after second pass = %d, want 1", got)
	}
}

func TestScheduleWarmJobsSkipsLowConfidence(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), &fakeSource{}, fakeBuilder{}, nil)

	fixed := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.predictor.now = func() time.Time { return fixed }

	// Activity spread evenly: no dominant hour.
	for hour := 8; hour < 16; hour++ {
		s.predictor.RecordActivity("u1", time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC))
	}

	s.scheduleWarmJobs()

	if got := s.Stats()[StatusPending]; got != 0 {
		t.Errorf("pending = %d, want 0 for low-confidence prediction", got)
	}
}

// countStatus counts jobs in a given state.
func countStatus(s *Scheduler, status Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, job := range s.jobs {
		if job.Status == status {
			n++
		}
	}
	return n
}

func TestCallerCancellationDoesNotAbortBuilds(t *testing.T) {
	t.Parallel()

	builder := &blockingBuilder{release: make(chan struct{})}
	var once sync.Once
	releaseBuilds := func() { once.Do(func() { close(builder.release) }) }
	t.Cleanup(releaseBuilds)

	cfg := DefaultConfig()
	cfg.JobTimeout = 5 * time.Second
	s := New(cfg, &fakeSource{}, builder, timelinecache.NewMemoryCache(10, time.Minute))

	s.ScheduleTimeline("victim", 0.5, time.Now().Add(-time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.GetUserTimeline(ctx, "caller")
		errCh <- err
	}()

	waitFor(t, "both builds running", func() bool { return countStatus(s, StatusRunning) == 2 })

	// The caller gives up. Its request context must not reach the
	// builds: both keep running and finish once released.
	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("GetUserTimeline() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("caller did not observe cancellation")
	}

	releaseBuilds()
	waitFor(t, "both builds completing", func() bool { return countStatus(s, StatusCompleted) == 2 })
}
