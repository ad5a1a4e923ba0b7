// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/supervisor/services

// Package services adapts component lifecycles to suture.Service so the
// supervisor tree can run them.
package services
