// Package metrics holds the Prometheus collectors for build activity. They
// are registered with the default registry and served by the app's
// /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// transformDuration measures single plugin invocations.
	// Labels: kind (file, dir, observe), status (ok, error, aborted)
	transformDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gobble",
		Subsystem: "node",
		Name:      "transform_duration_seconds",
		Help:      "Time spent inside transformation plugins",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"kind", "status"})

	// filesSkipped counts per-file transforms answered from the cache.
	filesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gobble",
		Subsystem: "node",
		Name:      "cached_files_total",
		Help:      "Files whose transform output was reused from cache",
	})

	// buildDuration measures full builds of the output node.
	// Labels: task (build, watch), status (ok, error)
	buildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gobble",
		Subsystem: "task",
		Name:      "build_duration_seconds",
		Help:      "Wall time of complete builds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"task", "status"})

	// invalidations counts invalidation events reaching a watch controller.
	invalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gobble",
		Subsystem: "watch",
		Name:      "invalidations_total",
		Help:      "Invalidations that scheduled a rebuild",
	})

	// gateQueueDepth tracks units waiting for the execution gate.
	gateQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gobble",
		Subsystem: "gate",
		Name:      "queue_depth",
		Help:      "Units of work waiting to run",
	})
)

// ObserveTransform records one plugin invocation.
func ObserveTransform(kind, status string, d time.Duration) {
	transformDuration.WithLabelValues(kind, status).Observe(d.Seconds())
}

// FileSkipped records a per-file cache hit.
func FileSkipped() {
	filesSkipped.Inc()
}

// ObserveBuild records a finished build.
func ObserveBuild(task, status string, d time.Duration) {
	buildDuration.WithLabelValues(task, status).Observe(d.Seconds())
}

// Invalidated records an invalidation that scheduled a rebuild.
func Invalidated() {
	invalidations.Inc()
}

// SetQueueDepth publishes the current gate queue length.
func SetQueueDepth(n int) {
	gateQueueDepth.Set(float64(n))
}

// Status maps an error to the status label used by the collectors.
func Status(err error, aborted bool) string {
	switch {
	case err == nil:
		return "ok"
	case aborted:
		return "aborted"
	default:
		return "error"
	}
}
