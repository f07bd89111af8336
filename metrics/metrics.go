// Package metrics defines the Prometheus instrumentation for browserd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StartupSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browserd_startup_steps_total",
			Help: "Startup steps issued, by step name",
		},
		[]string{"step"},
	)

	SessionSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browserd_session_saves_total",
			Help: "Session snapshots persisted, by trigger",
		},
		[]string{"trigger"},
	)

	SessionRestores = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "browserd_session_restores_total",
			Help: "Session restores performed",
		},
	)

	TabOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browserd_tab_operations_total",
			Help: "Tab operations, by kind (add, remove, select)",
		},
		[]string{"kind"},
	)

	PushMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browserd_push_messages_total",
			Help: "Push messages processed, by outcome",
		},
		[]string{"outcome"},
	)

	IconCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "browserd_icon_cache_hits_total",
			Help: "Icon cache hits",
		},
	)

	IconCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browserd_icon_cache_evictions_total",
			Help: "Icon cache evictions, by cause (lru, trim)",
		},
		[]string{"cause"},
	)

	CrashReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browserd_crash_reports_total",
			Help: "Crash reports submitted, by outcome",
		},
		[]string{"outcome"},
	)

	UploadArtifactsCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "browserd_upload_artifacts_cleaned_total",
			Help: "Stale pending-upload artifacts removed",
		},
	)

	SaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "browserd_session_save_duration_seconds",
			Help:    "Time taken to persist a session snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)
)
