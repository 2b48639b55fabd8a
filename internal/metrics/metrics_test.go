package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Registration()
	m.Login(ResultSuccess)
	m.Login(ResultFailure)
	m.Login(ResultFailure)
	m.Lockout()
	m.TwoFactor(ResultFailure)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.twoFactor.WithLabelValues(ResultFailure)))

	n, err := testutil.GatherAndCount(reg, "credcore_logins_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)

	second.Registration()
	assert.Equal(t, 1.0, testutil.ToFloat64(first.registrations))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.Registration()
	m.Login(ResultSuccess)
	m.Lockout()
	m.TwoFactor(ResultSuccess)
}
