// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/events

package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/tidefeed/tidefeed/internal/feed/quality"
)

// SchemaVersion is the current event schema version. Increment on
// breaking changes to the event structs.
const SchemaVersion = 1

// Topics carried on the bus.
const (
	// TopicEngagement carries implicit engagement signals (likes,
	// comments, shares, views).
	TopicEngagement = "feed.engagement"

	// TopicFeedback carries explicit user feedback on content.
	TopicFeedback = "feed.feedback"

	// TopicPoison receives messages that failed all retries.
	TopicPoison = "feed.dlq"
)

// EngagementKind classifies an implicit engagement signal.
type EngagementKind string

// Recognized engagement kinds.
const (
	EngagementLike    EngagementKind = "like"
	EngagementComment EngagementKind = "comment"
	EngagementShare   EngagementKind = "share"
	EngagementView    EngagementKind = "view"
)

// EngagementEvent is one implicit engagement signal from a user on a
// piece of content.
type EngagementEvent struct {
	SchemaVersion int            `json:"schema_version,omitempty"`
	EventID       string         `json:"event_id"`
	UserID        string         `json:"user_id"`
	ContentID     string         `json:"content_id"`
	AuthorID      string         `json:"author_id,omitempty"`
	Kind          EngagementKind `json:"kind"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewEngagementEvent creates an engagement event with a unique ID and
// the current UTC timestamp.
func NewEngagementEvent(userID, contentID string, kind EngagementKind) *EngagementEvent {
	return &EngagementEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.NewString(),
		UserID:        userID,
		ContentID:     contentID,
		Kind:          kind,
		Timestamp:     time.Now().UTC(),
	}
}

// Validate checks required fields.
func (e *EngagementEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "required"}
	}
	if e.ContentID == "" {
		return &ValidationError{Field: "content_id", Message: "required"}
	}
	switch e.Kind {
	case EngagementLike, EngagementComment, EngagementShare, EngagementView:
		return nil
	default:
		return &ValidationError{Field: "kind", Message: "unrecognized"}
	}
}

// FeedbackEvent is one explicit user reaction to content.
type FeedbackEvent struct {
	SchemaVersion int                  `json:"schema_version,omitempty"`
	EventID       string               `json:"event_id"`
	UserID        string               `json:"user_id"`
	ContentID     string               `json:"content_id"`
	Type          quality.FeedbackType `json:"type"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewFeedbackEvent creates a feedback event with a unique ID and the
// current UTC timestamp.
func NewFeedbackEvent(userID, contentID string, typ quality.FeedbackType) *FeedbackEvent {
	return &FeedbackEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.NewString(),
		UserID:        userID,
		ContentID:     contentID,
		Type:          typ,
		Timestamp:     time.Now().UTC(),
	}
}

// Validate checks required fields.
func (e *FeedbackEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "required"}
	}
	if e.ContentID == "" {
		return &ValidationError{Field: "content_id", Message: "required"}
	}
	if e.Type == "" {
		return &ValidationError{Field: "type", Message: "required"}
	}
	return nil
}

// Feedback converts the event to the quality pipeline's feedback
// record.
func (e *FeedbackEvent) Feedback() quality.Feedback {
	return quality.Feedback{
		ContentID: e.ContentID,
		UserID:    e.UserID,
		Type:      e.Type,
		CreatedAt: e.Timestamp,
	}
}

// ValidationError reports a missing or malformed event field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
