// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/metrics

/*
Package metrics provides Prometheus metrics collection and export.

The package instruments timeline builds, ranking, signal injection,
quality assessment, the embedding store, the precomputation scheduler,
the event bus, and the HTTP API. Collectors are registered with the
default registry via promauto and exported through the /metrics
endpoint.

Recording helpers keep call sites to one line:

	metrics.RecordTimelineBuild(elapsed, false, len(items), diversity)
	metrics.RecordCacheAccess("timeline", true)
*/
package metrics
