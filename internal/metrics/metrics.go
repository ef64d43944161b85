// Package metrics exposes Prometheus counters for update sweeps and
// installs. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aetherment"

// Check outcomes.
const (
	CheckUpToDate  = "up_to_date"
	CheckUpdated   = "updated"
	CheckAvailable = "available"
	CheckMissing   = "missing"
	CheckFailed    = "failed"
)

// Metrics holds the collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	checksTotal   *prometheus.CounterVec
	installsTotal *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	installedMods prometheus.Gauge
}

// New registers the collectors with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWith(reg, reg)
}

// NewWith registers the collectors with reg and serves them from gatherer.
func NewWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		checksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_checks_total",
			Help:      "Auto-update checks by outcome.",
		}, []string{"outcome"}),
		installsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installs_total",
			Help:      "Mod installs by status.",
		}, []string{"status"}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_sweep_duration_seconds",
			Help:      "Duration of auto-update sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		installedMods: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "installed_mods",
			Help:      "Mods currently in the registry.",
		}),
	}
}

// Check records the outcome of one update check.
func (m *Metrics) Check(outcome string) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(outcome).Inc()
}

// Install records an install attempt.
func (m *Metrics) Install(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.installsTotal.WithLabelValues(status).Inc()
}

// SweepDone records how long a sweep took.
func (m *Metrics) SweepDone(seconds float64) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(seconds)
}

// SetInstalled records the registry size.
func (m *Metrics) SetInstalled(n int) {
	if m == nil {
		return
	}
	m.installedMods.Set(float64(n))
}

// Handler serves the collected metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
