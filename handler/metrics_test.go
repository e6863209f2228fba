package handler

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	m.iterations.Inc()
	m.watchdogKills.inc("request")

	assert.InDelta(t, 1, testutil.ToFloat64(m.iterations), 0.0001)
}

func TestNewMetricsNilRegistererSkipsRegistration(t *testing.T) {
	assert.NotPanics(t, func() {
		m := newMetrics(nil)
		m.processed.Inc()
	})
}
