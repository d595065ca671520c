package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Checkins                *prometheus.CounterVec
	SessionsCreated         prometheus.Counter
	SessionsCompleted       prometheus.Counter
	ProfessionalsRegistered prometheus.Counter
	Reports                 *prometheus.CounterVec
	WorkerEvents            *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Checkins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_checkins_total",
			Help: "Check-in attempts by outcome.",
		}, []string{"outcome"}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_sessions_created_total",
			Help: "Attendance sessions opened.",
		}),
		SessionsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_sessions_completed_total",
			Help: "Attendance sessions completed.",
		}),
		ProfessionalsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_professionals_registered_total",
			Help: "Professionals registered.",
		}),
		Reports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_reports_total",
			Help: "Attendance sheets served or produced, by source (cache, render, worker).",
		}, []string{"source"}),
		WorkerEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_worker_events_total",
			Help: "Queue events handled by the worker, by type and result.",
		}, []string{"type", "result"}),
	}
}

func (m *Metrics) Checkin(outcome string) {
	if m == nil {
		return
	}
	m.Checkins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

func (m *Metrics) SessionCompleted() {
	if m == nil {
		return
	}
	m.SessionsCompleted.Inc()
}

func (m *Metrics) ProfessionalRegistered() {
	if m == nil {
		return
	}
	m.ProfessionalsRegistered.Inc()
}

func (m *Metrics) Report(source string) {
	if m == nil {
		return
	}
	m.Reports.WithLabelValues(source).Inc()
}

func (m *Metrics) WorkerEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.WorkerEvents.WithLabelValues(eventType, result).Inc()
}
