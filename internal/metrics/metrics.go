// Package metrics exposes Prometheus instrumentation for update checks,
// downloads and apply decisions.
package metrics

import (
	"context"
	stdErrors "errors"
	"net"
	"net/http"
	"time"

	apperrors "assetsync/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assetsync"

// Check results.
const (
	ResultAvailable = "available"
	ResultUpToDate  = "up_to_date"
	ResultFailed    = "failed"
	ResultSkipped   = "in_progress"
)

// Download statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	checks        *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	pending       *prometheus.GaugeVec
	downloads     *prometheus.CounterVec
	bytes         *prometheus.CounterVec
	applies       *prometheus.CounterVec
	pendingReload prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: class, result (available, up_to_date, failed, in_progress)
		checks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "total",
			Help:      "Update checks by class and result",
		}, []string{"class", "result"}),

		checkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "duration_seconds",
			Help:      "Time spent fetching and reconciling a manifest",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"class"}),

		pending: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "pending_transfers",
			Help:      "Transfers found pending by the last check",
		}, []string{"class"}),

		// Labels: class, status (succeeded, failed)
		downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "files_total",
			Help:      "Downloaded files by class and status",
		}, []string{"class", "status"}),

		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "bytes_total",
			Help:      "Payload bytes stored by successful downloads",
		}, []string{"class"}),

		// Labels: kind, strategy (hot-apply, reload-required, merge)
		applies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apply",
			Name:      "total",
			Help:      "Applied assets by kind and strategy",
		}, []string{"kind", "strategy"}),

		pendingReload: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "apply",
			Name:      "pending_reload",
			Help:      "1 when downloaded code waits for a restart",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveCheck(class, result string, pending int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(class, result).Inc()
	if result == ResultSkipped {
		return
	}
	m.checkDuration.WithLabelValues(class).Observe(elapsed.Seconds())
	if result != ResultFailed {
		m.pending.WithLabelValues(class).Set(float64(pending))
	}
}

func (m *Metrics) ObserveDownload(class, status string, size int64) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(class, status).Inc()
	if status == StatusSucceeded && size > 0 {
		m.bytes.WithLabelValues(class).Add(float64(size))
	}
}

func (m *Metrics) ObserveApply(kind, strategy string) {
	if m == nil {
		return
	}
	m.applies.WithLabelValues(kind, strategy).Inc()
}

func (m *Metrics) SetPendingReload(pending bool) {
	if m == nil {
		return
	}
	if pending {
		m.pendingReload.Set(1)
	} else {
		m.pendingReload.Set(0)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return apperrors.SystemError(apperrors.CodeSystemGeneric, "failed to listen for metrics", err).
			WithModule("metrics").
			WithOperation("Serve").
			WithField("addr", addr)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(listener); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
		return apperrors.SystemError(apperrors.CodeSystemGeneric, "metrics server failed", err).
			WithModule("metrics").
			WithOperation("Serve")
	}
	return nil
}
