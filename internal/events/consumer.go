// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/events

package events

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tidefeed/tidefeed/internal/feed/injection"
	"github.com/tidefeed/tidefeed/internal/feed/quality"
	"github.com/tidefeed/tidefeed/internal/logging"
	"github.com/tidefeed/tidefeed/internal/metrics"
	"github.com/tidefeed/tidefeed/internal/scheduler"
)

// Refresh priorities for event-driven timeline rebuilds. Reports go out
// immediately so reported content stops being served; ordinary
// engagement batches.
const (
	reportRefreshPriority     = 0.9
	engagementRefreshPriority = 0.5
)

// Consumer applies bus events to the personalization core: engagement
// feeds the velocity tracker and activity predictor, feedback feeds the
// quality pipeline and invalidates cached assessments.
type Consumer struct {
	quality   *quality.Pipeline
	velocity  *injection.VelocityTracker
	scheduler *scheduler.Scheduler
	logger    zerolog.Logger
}

// NewConsumer creates a consumer. Any dependency may be nil; the
// corresponding updates are then skipped.
func NewConsumer(qp *quality.Pipeline, vt *injection.VelocityTracker, sched *scheduler.Scheduler) *Consumer {
	return &Consumer{
		quality:   qp,
		velocity:  vt,
		scheduler: sched,
		logger:    logging.With().Str("component", "events_consumer").Logger(),
	}
}

// Register wires the consumer's handlers onto the router.
func (c *Consumer) Register(r *Router, subscriber message.Subscriber) {
	r.AddConsumerHandler("engagement_consumer", TopicEngagement, subscriber, c.HandleEngagement)
	r.AddConsumerHandler("feedback_consumer", TopicFeedback, subscriber, c.HandleFeedback)
}

// HandleEngagement processes one engagement message. Malformed messages
// are acked and dropped; retrying cannot fix them.
func (c *Consumer) HandleEngagement(msg *message.Message) error {
	var ev EngagementEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		metrics.EventsDropped.WithLabelValues(TopicEngagement).Inc()
		c.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("undecodable engagement event dropped")
		return nil
	}
	if err := ev.Validate(); err != nil {
		metrics.EventsDropped.WithLabelValues(TopicEngagement).Inc()
		c.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("invalid engagement event dropped")
		return nil
	}
	metrics.EventsConsumed.WithLabelValues(TopicEngagement).Inc()

	if c.velocity != nil {
		switch ev.Kind {
		case EngagementLike:
			c.velocity.RecordLike(ev.ContentID)
		case EngagementComment:
			c.velocity.RecordComment(ev.ContentID)
		case EngagementShare:
			c.velocity.RecordShare(ev.ContentID)
		}
	}

	if c.scheduler != nil {
		c.scheduler.Predictor().RecordActivity(ev.UserID, ev.Timestamp)
		c.scheduler.TriggerRefresh(msg.Context(), ev.UserID, scheduler.TriggerEngagementDelta, engagementRefreshPriority)
	}

	c.logger.Debug().
		Str("event_id", ev.EventID).
		Str("user_id", ev.UserID).
		Str("content_id", ev.ContentID).
		Str("kind", string(ev.Kind)).
		Msg("engagement applied")

	return nil
}

// HandleFeedback processes one feedback message.
func (c *Consumer) HandleFeedback(msg *message.Message) error {
	var ev FeedbackEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		metrics.EventsDropped.WithLabelValues(TopicFeedback).Inc()
		c.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("undecodable feedback event dropped")
		return nil
	}
	if err := ev.Validate(); err != nil {
		metrics.EventsDropped.WithLabelValues(TopicFeedback).Inc()
		c.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("invalid feedback event dropped")
		return nil
	}
	metrics.EventsConsumed.WithLabelValues(TopicFeedback).Inc()

	if c.quality != nil {
		c.quality.AddFeedback(ev.Feedback())
	}

	if c.scheduler != nil {
		c.scheduler.Predictor().RecordActivity(ev.UserID, ev.Timestamp)

		priority := engagementRefreshPriority
		if ev.Type == quality.FeedbackReport {
			priority = reportRefreshPriority
		}
		c.scheduler.TriggerRefresh(msg.Context(), ev.UserID, scheduler.TriggerEngagementDelta, priority)
	}

	c.logger.Debug().
		Str("event_id", ev.EventID).
		Str("user_id", ev.UserID).
		Str("content_id", ev.ContentID).
		Str("type", string(ev.Type)).
		Msg("feedback applied")

	return nil
}
