// Package metrics records sync run outcomes and exports them for the node-exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for invoices_total.
const (
	OutcomeAlreadySynced = "already_synced"
	OutcomeSucceeded     = "succeeded"
	OutcomeFailed        = "failed"
)

// SyncMetrics holds the counters of one process. Every sync run adds to them.
type SyncMetrics struct {
	invoices       *prometheus.CounterVec
	uploadDuration prometheus.Histogram
	ledgerSize     prometheus.Gauge
	lastRun        prometheus.Gauge
}

// NewSyncMetrics creates the collectors and registers them on reg.
func NewSyncMetrics(reg prometheus.Registerer) (*SyncMetrics, error) {
	m := &SyncMetrics{
		invoices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicesync_invoices_total",
				Help: "Invoices seen by sync runs, by outcome.",
			},
			[]string{"outcome"},
		),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoicesync_upload_duration_seconds",
			Help:    "Time spent uploading one invoice, voucher and attachment.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		ledgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "invoicesync_ledger_entries",
			Help: "Number of invoices recorded as synced after the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "invoicesync_last_run_timestamp_seconds",
			Help: "Unix time the last sync run finished.",
		}),
	}

	for _, c := range []prometheus.Collector{m.invoices, m.uploadDuration, m.ledgerSize, m.lastRun} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register sync metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveUpload records one upload attempt.
func (m *SyncMetrics) ObserveUpload(seconds float64, err error) {
	m.uploadDuration.Observe(seconds)
	if err != nil {
		m.invoices.WithLabelValues(OutcomeFailed).Inc()
		return
	}
	m.invoices.WithLabelValues(OutcomeSucceeded).Inc()
}

// ObserveRun records the totals known once the run finished.
func (m *SyncMetrics) ObserveRun(alreadySynced, ledgerEntries int, finishedUnix float64) {
	m.invoices.WithLabelValues(OutcomeAlreadySynced).Add(float64(alreadySynced))
	m.ledgerSize.Set(float64(ledgerEntries))
	m.lastRun.Set(finishedUnix)
}

// WriteTextfile writes everything gathered by g to path in the text exposition format.
// The file is written atomically so the collector never reads a partial file.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
