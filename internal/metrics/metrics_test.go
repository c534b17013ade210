package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Collect(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.AuthOp("login", "ok")
	m.AuthOp("login", "ok")
	m.AuthOp("login", "incorrect_password")
	m.Revoked()
	m.Purged(3, 7)
	m.ObserveHTTP("POST", "/auth/login", 200, 15*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.authOps.WithLabelValues("login", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.authOps.WithLabelValues("login", "incorrect_password")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.revocations))
	require.Equal(t, 3.0, testutil.ToFloat64(m.purged))
	require.Equal(t, 7.0, testutil.ToFloat64(m.registrySize))
	require.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.AuthOp("login", "ok")
		m.Revoked()
		m.Purged(1, 1)
		m.ObserveHTTP("GET", "/", 200, time.Second)
	})
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = New(reg)

	require.Panics(t, func() { _ = New(reg) })
}
