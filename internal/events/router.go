// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/events

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/tidefeed/tidefeed/internal/logging"
)

// RouterConfig tunes message handling.
type RouterConfig struct {
	// CloseTimeout is how long in-flight handlers get on shutdown.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// Retry backoff for transient handler failures.
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`

	// PoisonTopic receives messages that exhaust retries. Empty
	// disables the poison queue.
	PoisonTopic string `koanf:"poison_topic"`
}

// DefaultRouterConfig returns production router tuning.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     10 * time.Second,
		RetryMultiplier:      2.0,
		PoisonTopic:          TopicPoison,
	}
}

// Router wraps a watermill router with panic recovery, retry with
// exponential backoff, and poison queue routing.
type Router struct {
	router *message.Router
	logger zerolog.Logger
}

// NewRouter creates the router. poisonPublisher may be nil; failed
// messages are then dropped after retries.
func NewRouter(cfg RouterConfig, poisonPublisher message.Publisher) (*Router, error) {
	def := DefaultRouterConfig()
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = def.CloseTimeout
	}
	if cfg.RetryMaxRetries <= 0 {
		cfg.RetryMaxRetries = def.RetryMaxRetries
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = def.RetryInitialInterval
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = def.RetryMaxInterval
	}
	if cfg.RetryMultiplier <= 1 {
		cfg.RetryMultiplier = def.RetryMultiplier
	}

	logger := logging.With().Str("component", "events_router").Logger()
	adapter := NewLoggerAdapter(logger)

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, adapter)
	if err != nil {
		return nil, fmt.Errorf("events: create router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          adapter,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if poisonPublisher != nil && cfg.PoisonTopic != "" {
		poison, err := middleware.PoisonQueue(poisonPublisher, cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("events: create poison queue: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	return &Router{router: wmRouter, logger: logger}, nil
}

// AddConsumerHandler registers a handler that consumes a topic without
// producing output messages.
func (r *Router) AddConsumerHandler(name, topic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) {
	r.router.AddConsumerHandler(name, topic, subscriber, handler)
}

// Serve runs the router until the context ends. It implements
// suture.Service.
func (r *Router) Serve(ctx context.Context) error {
	return r.router.Run(ctx)
}

// String implements fmt.Stringer for supervisor logs.
func (r *Router) String() string {
	return "event-router"
}

// Running returns a channel that closes once handlers are consuming.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight
// messages.
func (r *Router) Close() error {
	return r.router.Close()
}
