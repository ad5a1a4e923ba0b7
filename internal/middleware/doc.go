// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/middleware

// Package middleware provides chi-compatible HTTP middleware for the
// operational endpoints: request ID propagation, structured request
// logging, and Prometheus instrumentation.
package middleware
