// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/middleware

package middleware

import (
	"net/http"
	"time"

	"github.com/tidefeed/tidefeed/internal/logging"
)

// slowRequestThreshold is the latency above which a request is logged
// at warn level instead of debug.
const slowRequestThreshold = time.Second

// RequestLogger emits one structured log line per request with method,
// path, status, and duration. Correlation and request IDs come from
// the context populated by RequestID, so this should be mounted after
// it.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		logger := logging.Ctx(r.Context())

		event := logger.Debug()
		if duration > slowRequestThreshold {
			event = logger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("request handled")
	})
}
