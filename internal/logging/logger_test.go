// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: false, Output: &buf})

	Info().Str("component", "test").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	t.Parallel()

	id1 := GenerateCorrelationID()
	id2 := GenerateCorrelationID()

	if len(id1) != 8 {
		t.Errorf("expected 8-character correlation ID, got %d", len(id1))
	}
	if id1 == id2 {
		t.Error("expected unique correlation IDs")
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := ContextWithCorrelationID(context.Background(), "abc12345")
	if got := CorrelationIDFromContext(ctx); got != "abc12345" {
		t.Errorf("expected abc12345, got %q", got)
	}

	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty ID from bare context, got %q", got)
	}
}

func TestCtxEnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: false, Output: &buf})

	ctx := ContextWithCorrelationID(context.Background(), "feed1234")
	ctx = ContextWithRequestID(ctx, "req-42")

	logger := Ctx(ctx)
	logger.Info().Msg("ranked")

	out := buf.String()
	if !strings.Contains(out, `"correlation_id":"feed1234"`) {
		t.Errorf("expected correlation_id in output, got %q", out)
	}
	if !strings.Contains(out, `"request_id":"req-42"`) {
		t.Errorf("expected request_id in output, got %q", out)
	}
}

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	slogger := NewSlogHandlerWithLogger(logger)
	handler := slogger.WithAttrs(nil)

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "supervisor event", 0)
	rec.AddAttrs(slog.String("service", "scheduler"))
	if err := handler.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if !strings.Contains(buf.String(), "supervisor event") {
		t.Errorf("expected message in output, got %q", buf.String())
	}
}
