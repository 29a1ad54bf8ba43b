// Package metrics provides Prometheus metrics for iconctl.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	goicon "github.com/VantageDataChat/GoIcon"
)

var (
	// ExportsTotal counts finished export calls by outcome.
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "goicon",
			Name:      "exports_total",
			Help:      "Total number of icon export calls",
		},
		[]string{"shape", "status"},
	)

	// ExportDuration measures export duration, including image loading.
	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "goicon",
			Name:      "export_duration_seconds",
			Help:      "Duration of icon exports in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"shape"},
	)

	// ExportErrorsTotal counts failed exports by error kind.
	ExportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "goicon",
			Name:      "export_errors_total",
			Help:      "Total number of failed icon exports",
		},
		[]string{"kind"},
	)

	// ExportsInFlight tracks exports currently loading or compositing.
	ExportsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "goicon",
			Name:      "exports_in_flight",
			Help:      "Number of icon exports in progress",
		},
	)

	// InstancesMounted tracks mounted widget instances.
	InstancesMounted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "goicon",
			Name:      "instances_mounted",
			Help:      "Number of mounted icon widget instances",
		},
	)
)

// Observer records exporter events. It implements goicon.ExportObserver.
type Observer struct{}

// ExportStarted records the start of an export.
func (Observer) ExportStarted(goicon.Shape) {
	ExportsInFlight.Inc()
}

// ExportFinished records an export outcome. Rejected calls never started,
// so they only count towards ExportsTotal.
func (Observer) ExportFinished(status goicon.ExportStatus, shape goicon.Shape, kind goicon.ErrorKind, d time.Duration) {
	ExportsTotal.WithLabelValues(shape.String(), status.String()).Inc()
	if status == goicon.StatusRejected {
		return
	}
	ExportsInFlight.Dec()
	ExportDuration.WithLabelValues(shape.String()).Observe(d.Seconds())
	if status == goicon.StatusFailed {
		ExportErrorsTotal.WithLabelValues(kind.String()).Inc()
	}
}

// SetInstancesMounted sets the mounted instance gauge.
func SetInstancesMounted(n int) {
	InstancesMounted.Set(float64(n))
}
