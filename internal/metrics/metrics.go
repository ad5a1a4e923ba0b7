// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/metrics

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Timeline build metrics
	TimelineBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timeline_build_duration_seconds",
			Help:    "Duration of timeline builds in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"outcome"}, // "ok", "fallback"
	)

	TimelineBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timeline_builds_total",
			Help: "Total number of timeline builds",
		},
		[]string{"outcome"},
	)

	TimelineDiversityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "timeline_diversity_score",
			Help:    "Diversity score of built timelines",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	TimelineItemCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "timeline_item_count",
			Help:    "Number of items returned per timeline",
			Buckets: []float64{1, 5, 10, 20, 50, 100},
		},
	)

	// Ranking metrics
	RankingTruncations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranking_truncations_total",
			Help: "Total number of rankings truncated by the performance budget",
		},
	)

	// Injection metrics
	InjectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "injections_total",
			Help: "Total number of injected items by signal",
		},
		[]string{"signal"},
	)

	// Quality metrics
	QualityAssessments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quality_assessments_total",
			Help: "Total number of quality assessments by verdict",
		},
		[]string{"verdict"}, // "passed", "filtered"
	)

	QualityFlagsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quality_flags_total",
			Help: "Total number of quality flags raised",
		},
		[]string{"flag"},
	)

	// Cache metrics, shared across the assessment, similarity, and
	// timeline caches.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "timeline", "assessment", "similarity"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Embedding store metrics
	EmbeddingStoreEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "embedding_store_entries",
			Help: "Current number of live embedding entries",
		},
		[]string{"entity_type"},
	)

	EmbeddingStoreDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embedding_store_drops_total",
			Help: "Total number of entries dropped by insertion eviction",
		},
	)

	EmbeddingStoreCleanups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_store_cleanups_total",
			Help: "Total number of entries removed by cleanup",
		},
		[]string{"mode"}, // "expired", "aggressive"
	)

	// Scheduler metrics
	SchedulerJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_jobs",
			Help: "Current number of jobs by status",
		},
		[]string{"status"},
	)

	JobExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Duration of job executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"}, // "completed", "failed"
	)

	JobRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_job_retries_total",
			Help: "Total number of job retries scheduled",
		},
	)

	RefreshTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_triggers_total",
			Help: "Total number of refresh triggers by kind and admission",
		},
		[]string{"kind", "accepted"},
	)

	// Event bus metrics
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of events consumed by topic",
		},
		[]string{"topic"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of malformed events dropped by topic",
		},
		[]string{"topic"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// System metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordTimelineBuild records one timeline build.
func RecordTimelineBuild(duration time.Duration, fallback bool, items int, diversity float64) {
	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	TimelineBuildDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	TimelineBuildsTotal.WithLabelValues(outcome).Inc()
	TimelineItemCount.Observe(float64(items))
	if !fallback {
		TimelineDiversityScore.Observe(diversity)
	}
}

// RecordInjections records injected item counts per signal.
func RecordInjections(counts map[string]int) {
	for signal, n := range counts {
		InjectionsTotal.WithLabelValues(signal).Add(float64(n))
	}
}

// RecordAssessment records a quality verdict and its flags.
func RecordAssessment(passed bool, flags []string) {
	verdict := "passed"
	if !passed {
		verdict = "filtered"
	}
	QualityAssessments.WithLabelValues(verdict).Inc()
	for _, flag := range flags {
		QualityFlagsTotal.WithLabelValues(flag).Inc()
	}
}

// RecordCacheAccess records a hit or miss for a named cache.
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cacheType).Inc()
	} else {
		CacheMisses.WithLabelValues(cacheType).Inc()
	}
}

// RecordJobExecution records one finished job.
func RecordJobExecution(result string, duration time.Duration) {
	JobExecutionDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordRefreshTrigger records a refresh trigger and whether it passed
// rate limiting.
func RecordRefreshTrigger(kind string, accepted bool) {
	acceptedStr := "true"
	if !accepted {
		acceptedStr = "false"
	}
	RefreshTriggers.WithLabelValues(kind, acceptedStr).Inc()
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// UpdateSchedulerJobs replaces the per-status job gauges.
func UpdateSchedulerJobs(stats map[string]int) {
	for status, count := range stats {
		SchedulerJobs.WithLabelValues(status).Set(float64(count))
	}
}

// UpdateEmbeddingEntries sets the live entry gauge for an entity type.
func UpdateEmbeddingEntries(entityType string, count int) {
	EmbeddingStoreEntries.WithLabelValues(entityType).Set(float64(count))
}

// UpdateBreakerState sets a circuit breaker's state gauge.
func UpdateBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
