// Package metrics exposes Prometheus collectors for runs, turns, permission requests
// and the event pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

const namespace = "rightsdesk"

// Drop reasons for EventsDropped.
const (
	DropSubscriber = "subscriber"
	DropRecorder   = "recorder"
)

// Metrics holds every collector. A nil *Metrics is a valid no-op.
type Metrics struct {
	RunsStarted        prometheus.Counter
	RunsCompleted      *prometheus.CounterVec
	RunsCancelled      prometheus.Counter
	RunsFailed         prometheus.Counter
	TurnsAppended      *prometheus.CounterVec
	PermissionRequests prometheus.Counter
	EventsDropped      *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "runs_started_total",
			Help: "Analysis runs started.",
		}),
		RunsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "runs_completed_total",
			Help: "Analysis runs completed, by resulting rights status.",
		}, []string{"rights_status"}),
		RunsCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "runs_cancelled_total",
			Help: "Analysis runs cancelled before completion.",
		}),
		RunsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "runs_failed_total",
			Help: "Analysis runs whose result could not be stored.",
		}),
		TurnsAppended: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chat", Name: "turns_appended_total",
			Help: "Conversation turns appended, by role.",
		}, []string{"role"}),
		PermissionRequests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "chat", Name: "permission_requests_total",
			Help: "Permission-grant notifications requested.",
		}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "events", Name: "dropped_total",
			Help: "Events dropped, by reason.",
		}, []string{"reason"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_sessions",
			Help: "Sessions currently open.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
	}
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Record updates counters from a session event. It implements events.Sink.
func (m *Metrics) Record(ev models.Event) {
	if m == nil {
		return
	}
	switch ev.Type {
	case models.EventRunStarted:
		m.RunsStarted.Inc()
	case models.EventRunCompleted:
		status := string(models.RightsUnknown)
		if ev.Run != nil && ev.Run.Classification != nil {
			status = string(ev.Run.Classification.RightsStatus)
		}
		m.RunsCompleted.WithLabelValues(status).Inc()
	case models.EventRunCancelled:
		m.RunsCancelled.Inc()
	case models.EventRunFailed:
		m.RunsFailed.Inc()
	case models.EventTurnAppended:
		if ev.Turn != nil {
			m.TurnsAppended.WithLabelValues(string(ev.Turn.Role)).Inc()
		}
	case models.EventPermissionRequested:
		m.PermissionRequests.Inc()
	case models.EventSessionCreated:
		m.ActiveSessions.Inc()
	case models.EventSessionClosed:
		m.ActiveSessions.Dec()
	}
}

// Dropped counts one event lost for reason.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}

// ObserveHTTP counts one served request.
func (m *Metrics) ObserveHTTP(method, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, code).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
