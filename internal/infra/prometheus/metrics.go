package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the render and export collectors.
type Metrics struct {
	renderDuration *prometheus.HistogramVec
	exports        *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. live reports the number of
// rendering instances currently held.
func NewMetrics(reg prometheus.Registerer, live func() float64) *Metrics {
	m := &Metrics{
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "powerqr",
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering a QR code, by kind (preview, export).",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powerqr",
			Name:      "exports_total",
			Help:      "Export requests by format and result.",
		}, []string{"format", "result"}),
	}

	reg.MustRegister(m.renderDuration, m.exports)
	if live != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "powerqr",
			Name:      "live_render_instances",
			Help:      "Rendering instances created and not yet released.",
		}, live))
	}
	return m
}

// ObserveRender records how long one render took.
func (m *Metrics) ObserveRender(kind string, d time.Duration) {
	m.renderDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// CountExport counts one export attempt.
func (m *Metrics) CountExport(format, result string) {
	m.exports.WithLabelValues(format, result).Inc()
}
