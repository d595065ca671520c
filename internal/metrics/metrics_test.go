package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Checkin("recorded")
	m.Checkin("recorded")
	m.Checkin("conflict")
	m.SessionCompleted()
	m.Report("cache")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkins.WithLabelValues("recorded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkins.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reports.WithLabelValues("cache")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Checkin("recorded")
		m.SessionCreated()
		m.SessionCompleted()
		m.ProfessionalRegistered()
		m.Report("render")
		m.WorkerEvent("session.completed", "ok")
	})
}
