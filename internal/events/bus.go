// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/events

// Package events carries engagement and feedback signals between the
// serving surface and the personalization core over an in-process
// message bus.
package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tidefeed/tidefeed/internal/logging"
)

// outputBuffer is the per-topic channel buffer; publishers block once a
// subscriber falls this far behind.
const outputBuffer = 256

// Bus is the in-process pub/sub transport for feed events.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger zerolog.Logger
}

// NewBus creates the event bus.
func NewBus() *Bus {
	logger := logging.With().Str("component", "events").Logger()
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: outputBuffer},
			NewLoggerAdapter(logger),
		),
		logger: logger,
	}
}

// Publisher exposes the raw publisher, used by the router's poison
// queue.
func (b *Bus) Publisher() message.Publisher {
	return b.pubsub
}

// Subscriber exposes the raw subscriber for router handler wiring.
func (b *Bus) Subscriber() message.Subscriber {
	return b.pubsub
}

// PublishEngagement validates and publishes an engagement event.
func (b *Bus) PublishEngagement(ev *EngagementEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("events: invalid engagement event: %w", err)
	}
	return b.publish(TopicEngagement, ev.EventID, ev)
}

// PublishFeedback validates and publishes a feedback event.
func (b *Bus) PublishFeedback(ev *FeedbackEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("events: invalid feedback event: %w", err)
	}
	return b.publish(TopicFeedback, ev.EventID, ev)
}

func (b *Bus) publish(topic, id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", topic, err)
	}
	if err := b.pubsub.Publish(topic, message.NewMessage(id, data)); err != nil {
		return fmt.Errorf("events: publish %s: %w", topic, err)
	}
	return nil
}

// Close shuts the bus down; pending subscribers are released.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
