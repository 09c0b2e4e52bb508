package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountsByLabel(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementDecision("accepted", false)
	m.IncrementDecision("accepted", false)
	m.IncrementDecision("record_locked", true)
	m.IncrementRefresh("ok")
	m.SetEventClients(3)
	m.ObserveBackend("kyc.update_status", 200, 20*time.Millisecond)
	m.ObserveBackend("kyc.update_status", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransitionDecisions.WithLabelValues("accepted", "regular")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionDecisions.WithLabelValues("record_locked", "privileged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenRefreshes.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventClients))
	assert.Equal(t, 2, testutil.CollectAndCount(m.BackendLatency))
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementDecision("accepted", true)
		m.ObserveBackend("auth.login", 500, time.Millisecond)
		m.IncrementRefresh("failed")
		m.SetEventClients(1)
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "error", statusClass(0))
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "4xx", statusClass(401))
	assert.Equal(t, "5xx", statusClass(502))
}
