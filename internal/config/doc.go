// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/config

// Package config loads the application configuration with layered
// precedence: environment variables override an optional YAML file,
// which overrides built-in defaults.
package config
