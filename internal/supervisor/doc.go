// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/supervisor

// Package supervisor builds the suture supervision tree that runs the
// feed service: maintenance loops, the precomputation scheduler, the
// event router, and the HTTP server, each restarted independently on
// failure.
package supervisor
