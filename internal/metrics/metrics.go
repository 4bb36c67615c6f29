// Package metrics exposes coordinator measurements in Prometheus format.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rewired-gh/zonewatch/internal/models"
	"github.com/rewired-gh/zonewatch/internal/monitor"
)

var sessionStates = []string{"idle", "starting", "running", "stopping", "finished", "errored"}

// Metrics holds all coordinator metrics
type Metrics struct {
	// Aggregate counters
	CurrentCount atomic.Int64
	PeakCount    atomic.Int64

	framesTotal   *prometheus.CounterVec
	alertsTotal   *prometheus.CounterVec
	sessionState  *prometheus.GaugeVec
	zoneOccupants *prometheus.GaugeVec
	pollFailures  *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonewatch_frames_total",
			Help: "Analysis updates applied, by session mode",
		}, []string{"mode"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonewatch_alerts_total",
			Help: "Capacity alerts fired, by zone",
		}, []string{"zone"}),
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zonewatch_session_state",
			Help: "1 for the current state of each session, 0 otherwise",
		}, []string{"mode", "state"}),
		zoneOccupants: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zonewatch_zone_count",
			Help: "People counted in each zone by the latest update",
		}, []string{"zone"}),
		pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonewatch_session_errors_total",
			Help: "Sessions that ended because a poll failed",
		}, []string{"mode"}),
	}

	m.registry.MustRegister(m.framesTotal, m.alertsTotal, m.sessionState, m.zoneOccupants, m.pollFailures)
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "zonewatch_current_count",
			Help: "Total people counted by the latest update",
		},
		func() float64 { return float64(m.CurrentCount.Load()) },
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "zonewatch_peak_count",
			Help: "Highest total count since the last reset",
		},
		func() float64 { return float64(m.PeakCount.Load()) },
	))

	return m
}

// ObserveState records a session state transition.
func (m *Metrics) ObserveState(mode string, state string) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.sessionState.WithLabelValues(mode, s).Set(v)
	}
	if state == "errored" {
		m.pollFailures.WithLabelValues(mode).Inc()
	}
}

// ObserveReset clears the count gauges after the shared statistics were reset.
func (m *Metrics) ObserveReset() {
	m.zoneOccupants.Reset()
	m.CurrentCount.Store(0)
	m.PeakCount.Store(0)
}

// ObserveFrame records the statistics after an applied update.
func (m *Metrics) ObserveFrame(mode string, snap monitor.Snapshot) {
	m.framesTotal.WithLabelValues(mode).Inc()
	m.CurrentCount.Store(int64(snap.CurrentCount))
	m.PeakCount.Store(int64(snap.PeakCount))

	m.zoneOccupants.Reset()
	for zone, count := range snap.ZoneData {
		m.zoneOccupants.WithLabelValues(zone).Set(float64(count))
	}
}

// ObserveAlerts counts fired alerts.
func (m *Metrics) ObserveAlerts(alerts []models.Alert) {
	for _, a := range alerts {
		m.alertsTotal.WithLabelValues(a.Zone).Inc()
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
