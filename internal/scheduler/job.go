// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/scheduler

package scheduler

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tidefeed/tidefeed/internal/feed"
)

// Sentinel errors surfaced to callers.
var (
	// ErrJobTimeout indicates a blocking wait exceeded its bound. The
	// job itself keeps running.
	ErrJobTimeout = errors.New("scheduler: timeline wait timed out")

	// ErrJobFailed indicates the awaited job reached the failed state.
	ErrJobFailed = errors.New("scheduler: timeline job failed")

	// ErrJobNotFound indicates no job exists for the given id.
	ErrJobNotFound = errors.New("scheduler: job not found")
)

// Status is a job's position in its state machine.
type Status string

// Job states. Jobs move pending -> running -> completed or failed;
// pending jobs may be cancelled. Failed jobs are re-enqueued as fresh
// pending jobs when retried.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// terminal reports whether a status permits no further transitions.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// JobType distinguishes user-requested timeline builds from predictive
// warm builds.
type JobType string

// Job types.
const (
	JobTimeline JobType = "timeline"
	JobWarm     JobType = "warm"
)

// Job is one precomputation unit tracked by the scheduler.
type Job struct {
	ID            string               `json:"id"`
	UserID        string               `json:"user_id"`
	Type          JobType              `json:"type"`
	Priority      float64              `json:"priority"`
	ScheduledTime time.Time            `json:"scheduled_time"`
	Status        Status               `json:"status"`
	Attempt       int                  `json:"attempt"`
	Result        *feed.TimelineResult `json:"result,omitempty"`
	Error         string               `json:"error,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	StartedAt     time.Time            `json:"started_at,omitzero"`
	CompletedAt   time.Time            `json:"completed_at,omitzero"`

	// done is closed when the job reaches a terminal state.
	done chan struct{}
}

func newJob(userID string, jobType JobType, priority float64, scheduledTime, now time.Time) *Job {
	if priority < 0 {
		priority = 0
	}
	if priority > 1 {
		priority = 1
	}

	return &Job{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          jobType,
		Priority:      priority,
		ScheduledTime: scheduledTime,
		Status:        StatusPending,
		Attempt:       1,
		CreatedAt:     now,
		done:          make(chan struct{}),
	}
}

// snapshot returns a caller-safe copy without the completion channel.
func (j *Job) snapshot() Job {
	copied := *j
	copied.done = nil
	return copied
}
