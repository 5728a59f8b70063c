package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCall("charityCount", time.Now(), nil)
		m.ObserveDonation("USDC", errors.New("boom"))
		m.ObserveScan("complete", 1, 0)
		m.ObserveWalletState(true)
		m.StreamClientOpened()
		m.StreamClientClosed()
	})
}

func TestObserveCallCountsByOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCall("getDonation", time.Now(), nil)
	m.ObserveCall("getDonation", time.Now(), errors.New("reverted"))
	m.ObserveCall("getDonation", time.Now(), errors.New("reverted"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.contractCalls.WithLabelValues("getDonation", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.contractCalls.WithLabelValues("getDonation", "error")))
}

func TestObserveScan(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveScan("circuit_breaker", 0, 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scanStops.WithLabelValues("circuit_breaker")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.scanRecords.WithLabelValues("error")))
}
