package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveFlow(FlowRegister, "success", time.Now().Add(-time.Second))
	m.ObserveFlow(FlowRegister, "error", time.Now())
	m.SessionOpened()
	m.SessionFailed()
	m.SessionFailed()
	m.PersistenceFailed("save_email")
	m.RemoteCallFailed("verify_phone")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowsTotal.WithLabelValues(FlowRegister, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowsTotal.WithLabelValues(FlowRegister, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsOpened))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistenceErrors.WithLabelValues("save_email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteCallFailures.WithLabelValues("verify_phone")))

	count, err := testutil.GatherAndCount(reg, "enroll_flow_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFlow(FlowVerifyOTP, "success", time.Now())
		m.SessionOpened()
		m.SessionFailed()
		m.PersistenceFailed("save_phone")
		m.RemoteCallFailed("update_profile")
	})
}
