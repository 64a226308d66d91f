package metric_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gissleh/tally/metric"
)

func TestRegister(t *testing.T) {
	metrics := metric.New()

	registry := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(registry))

	metrics.LinesSent.Inc()
	metrics.Connected.Set(1)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRegisterTwice(t *testing.T) {
	metrics := metric.New()

	registry := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(registry))
	assert.Error(t, metrics.Register(registry))
}
