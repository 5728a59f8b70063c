// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of the donation client. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	contractCalls    *prometheus.CounterVec
	contractDuration *prometheus.HistogramVec
	donations        *prometheus.CounterVec
	scanRecords      *prometheus.CounterVec
	scanStops        *prometheus.CounterVec
	walletStates     *prometheus.CounterVec
	streamClients    prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		contractCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "donation_contract_calls_total",
				Help: "Total number of contract calls by method and outcome",
			},
			[]string{"method", "status"},
		),
		contractDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "donation_contract_call_duration_seconds",
				Help:    "Duration of contract calls",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5, 10},
			},
			[]string{"method"},
		),
		donations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "donation_submissions_total",
				Help: "Donation writes by asset and outcome",
			},
			[]string{"asset", "status"},
		),
		scanRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "donation_history_records_total",
				Help: "Donation records read during history scans by outcome",
			},
			[]string{"status"},
		),
		scanStops: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "donation_history_scans_total",
				Help: "History scans by stop reason",
			},
			[]string{"reason"},
		),
		walletStates: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_state_changes_total",
				Help: "Wallet state snapshots published by connection status",
			},
			[]string{"connected"},
		),
		streamClients: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "wallet_stream_clients",
				Help: "Open wallet state WebSocket connections",
			},
		),
	}
}

// ObserveCall records one contract call.
func (m *Metrics) ObserveCall(method string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.contractDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
	m.contractCalls.WithLabelValues(method, status(err)).Inc()
}

// ObserveDonation records a donation write.
func (m *Metrics) ObserveDonation(asset string, err error) {
	if m == nil {
		return
	}
	m.donations.WithLabelValues(asset, status(err)).Inc()
}

// ObserveScan records the outcome of a history scan.
func (m *Metrics) ObserveScan(reason string, succeeded, failed int) {
	if m == nil {
		return
	}
	m.scanStops.WithLabelValues(reason).Inc()
	m.scanRecords.WithLabelValues("success").Add(float64(succeeded))
	m.scanRecords.WithLabelValues("error").Add(float64(failed))
}

// ObserveWalletState counts a published wallet snapshot.
func (m *Metrics) ObserveWalletState(connected bool) {
	if m == nil {
		return
	}
	label := "false"
	if connected {
		label = "true"
	}
	m.walletStates.WithLabelValues(label).Inc()
}

// StreamClientOpened / StreamClientClosed track WebSocket subscribers.
func (m *Metrics) StreamClientOpened() {
	if m == nil {
		return
	}
	m.streamClients.Inc()
}

func (m *Metrics) StreamClientClosed() {
	if m == nil {
		return
	}
	m.streamClients.Dec()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
