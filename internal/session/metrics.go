package session

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muurk/tigerscale/internal/command"
	"github.com/muurk/tigerscale/internal/state"
)

const metricsNamespace = "tigerscale"

// Metrics exposes the session's view of the scale in Prometheus format.
// Each Metrics has its own registry so several sessions (and tests) never
// collide.
type Metrics struct {
	Registry *prometheus.Registry

	Polls         *prometheus.CounterVec
	PushFrames    prometheus.Counter
	PushConnected prometheus.Gauge
	Commands      *prometheus.CounterVec

	Weight            prometheus.Gauge
	CalibrationFactor prometheus.Gauge
	Uptime            prometheus.Gauge
	CloudUp           prometheus.Gauge
	APIKeyValid       prometheus.Gauge
}

// NewMetrics creates and registers the session metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "polls_total",
			Help:      "Status polls by result.",
		}, []string{"result"}),
		PushFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "push_frames_total",
			Help:      "Frames received on the live weight channel.",
		}),
		PushConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "push_connected",
			Help:      "1 while the live weight channel is open.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Commands by name and outcome.",
		}, []string{"command", "outcome"}),
		Weight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "weight_grams",
			Help:      "Last weight reported by the scale.",
		}),
		CalibrationFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "calibration_factor",
			Help:      "Calibration factor stored on the scale.",
		}),
		Uptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "uptime_seconds",
			Help:      "Scale uptime.",
		}),
		CloudUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "cloud_up",
			Help:      "1 when the scale reports a working cloud link.",
		}),
		APIKeyValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "api_key_valid",
			Help:      "1 when the stored API key was accepted by the cloud.",
		}),
	}

	m.Registry.MustRegister(
		m.Polls, m.PushFrames, m.PushConnected, m.Commands,
		m.Weight, m.CalibrationFactor, m.Uptime, m.CloudUp, m.APIKeyValid,
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeChange(c state.Change) {
	st := c.State
	switch c.Field {
	case state.FieldWeight:
		m.Weight.Set(st.Weight)
	case state.FieldCalibrationFactor:
		m.CalibrationFactor.Set(st.CalibrationFactor)
	case state.FieldUptime:
		m.Uptime.Set(st.UptimeSeconds)
	case state.FieldCloudStatus:
		m.CloudUp.Set(boolGauge(st.CloudStatus == state.CloudUp))
	case state.FieldAPIKey:
		m.APIKeyValid.Set(boolGauge(st.APIKeyStatus == state.APIKeyValid))
	}
}

func (m *Metrics) observeOutcome(o command.Outcome) {
	m.Commands.WithLabelValues(string(o.Command), o.Kind.String()).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
