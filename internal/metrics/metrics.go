// Package metrics provides Prometheus metrics for the publish service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PublishesTotal tracks publish runs by outcome (published, skipped, failed)
	PublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vfxpublish",
			Subsystem: "publish",
			Name:      "runs_total",
			Help:      "Total number of publish runs by status",
		},
		[]string{"project", "status"},
	)

	// PublishDuration tracks publish run duration in seconds
	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vfxpublish",
			Subsystem: "publish",
			Name:      "duration_seconds",
			Help:      "Duration of publish runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"project"},
	)

	// EntityOperationsTotal tracks queued creates and updates that were committed
	EntityOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vfxpublish",
			Subsystem: "store",
			Name:      "entity_operations_total",
			Help:      "Total number of committed entity operations",
		},
		[]string{"kind", "operation"},
	)

	// StoreErrorsTotal tracks store failures by reconcile phase
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vfxpublish",
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Total number of store failures by phase",
		},
		[]string{"phase"},
	)

	// LatestVersion tracks the last version number published per project
	LatestVersion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vfxpublish",
			Subsystem: "publish",
			Name:      "latest_version",
			Help:      "Last published version number",
		},
		[]string{"project"},
	)

	// MirrorUploadsTotal tracks root layer uploads to object storage
	MirrorUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vfxpublish",
			Subsystem: "mirror",
			Name:      "uploads_total",
			Help:      "Total number of root layer uploads by status",
		},
		[]string{"status"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vfxpublish",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)
