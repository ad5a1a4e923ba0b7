// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/events

package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// loggerAdapter bridges watermill's logging interface onto zerolog.
type loggerAdapter struct {
	logger zerolog.Logger
}

// NewLoggerAdapter wraps a zerolog logger for use by watermill.
func NewLoggerAdapter(logger zerolog.Logger) watermill.LoggerAdapter {
	return &loggerAdapter{logger: logger}
}

func (l *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.logger.Error().Err(err), fields).Msg(msg)
}

func (l *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.event(l.logger.Info(), fields).Msg(msg)
}

func (l *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), fields).Msg(msg)
}

func (l *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.event(l.logger.Trace(), fields).Msg(msg)
}

func (l *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}
	return &loggerAdapter{logger: ctx.Logger()}
}

func (l *loggerAdapter) event(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for key, value := range fields {
		ev = ev.Interface(key, value)
	}
	return ev
}
