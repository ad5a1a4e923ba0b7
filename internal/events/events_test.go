// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/events

package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tidefeed/tidefeed/internal/feed/injection"
	"github.com/tidefeed/tidefeed/internal/feed/quality"
)

func TestEngagementEventValidation(t *testing.T) {
	t.Parallel()

	ev := NewEngagementEvent("u1", "post-1", EngagementLike)
	if err := ev.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ev.EventID == "" || ev.Timestamp.IsZero() {
		t.Error("constructor must assign id and timestamp")
	}

	bad := NewEngagementEvent("u1", "post-1", EngagementKind("poke"))
	if err := bad.Validate(); err == nil {
		t.Error("unrecognized kind should fail validation")
	}

	missing := NewEngagementEvent("", "post-1", EngagementLike)
	if err := missing.Validate(); err == nil {
		t.Error("missing user should fail validation")
	}
}

func TestFeedbackEventConversion(t *testing.T) {
	t.Parallel()

	ev := NewFeedbackEvent("u1", "post-1", quality.FeedbackReport)
	fb := ev.Feedback()
	if fb.ContentID != "post-1" || fb.UserID != "u1" || fb.Type != quality.FeedbackReport {
		t.Errorf("Feedback() = %+v, want event fields carried over", fb)
	}
	if !fb.CreatedAt.Equal(ev.Timestamp) {
		t.Error("feedback timestamp must match the event")
	}
}

func TestBusRejectsInvalidEvents(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	defer bus.Close()

	if err := bus.PublishEngagement(&EngagementEvent{}); err == nil {
		t.Error("empty engagement event should be rejected")
	}
	if err := bus.PublishFeedback(&FeedbackEvent{EventID: "e", UserID: "u"}); err == nil {
		t.Error("incomplete feedback event should be rejected")
	}
}

func newTestMessage(t *testing.T, payload any) *message.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return message.NewMessage("m1", data)
}

func TestHandleEngagementFeedsVelocity(t *testing.T) {
	t.Parallel()

	velocity := injection.NewVelocityTracker(100)
	c := NewConsumer(nil, velocity, nil)

	for _, kind := range []EngagementKind{EngagementLike, EngagementComment, EngagementShare} {
		msg := newTestMessage(t, NewEngagementEvent("u1", "post-1", kind))
		if err := c.HandleEngagement(msg); err != nil {
			t.Fatalf("HandleEngagement(%s): %v", kind, err)
		}
	}

	// like(1) + comment(2) + share(3)
	if got := velocity.Velocity("post-1"); got != 6 {
		t.Errorf("velocity = %d, want 6", got)
	}
}

func TestHandleEngagementDropsMalformed(t *testing.T) {
	t.Parallel()

	velocity := injection.NewVelocityTracker(100)
	c := NewConsumer(nil, velocity, nil)

	if err := c.HandleEngagement(message.NewMessage("m1", []byte("not json"))); err != nil {
		t.Errorf("malformed payload should be acked, got %v", err)
	}
	if err := c.HandleEngagement(newTestMessage(t, &EngagementEvent{EventID: "e1"})); err != nil {
		t.Errorf("invalid event should be acked, got %v", err)
	}
	if got := velocity.Velocity("post-1"); got != 0 {
		t.Errorf("velocity = %d, want 0 after dropped events", got)
	}
}

func TestHandleFeedbackReachesQualityPipeline(t *testing.T) {
	t.Parallel()

	qp := quality.NewPipeline(quality.DefaultConfig(), nil, nil)
	c := NewConsumer(qp, nil, nil)

	msg := newTestMessage(t, NewFeedbackEvent("u1", "post-1", quality.FeedbackLike))
	if err := c.HandleFeedback(msg); err != nil {
		t.Fatalf("HandleFeedback: %v", err)
	}

	if got := qp.FeedbackScore("post-1"); got <= 0.5 {
		t.Errorf("FeedbackScore = %v, want above neutral after a like", got)
	}
}

func TestRouterDeliversPublishedEvents(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	defer bus.Close()

	velocity := injection.NewVelocityTracker(100)
	c := NewConsumer(nil, velocity, nil)

	router, err := NewRouter(DefaultRouterConfig(), bus.Publisher())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	c.Register(router, bus.Subscriber())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Serve(ctx) }()
	<-router.Running()

	if err := bus.PublishEngagement(NewEngagementEvent("u1", "post-1", EngagementShare)); err != nil {
		t.Fatalf("PublishEngagement: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if velocity.Velocity("post-1") == 3 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("velocity = %d, want 3 after delivery", velocity.Velocity("post-1"))
}
