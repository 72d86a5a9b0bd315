// Package metrics exposes audit counters in the Prometheus format. Audits
// are batch jobs, so the registry is written to a node-exporter textfile
// after each run instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prophylaxis-audit/internal/domain"
	"github.com/prophylaxis-audit/internal/service"
)

const namespace = "prophylaxis_audit"

// Recorder implements service.ResultObserver on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	records        *prometheus.CounterVec
	criteria       *prometheus.CounterVec
	matches        *prometheus.CounterVec
	recordDuration prometheus.Histogram

	batches         prometheus.Counter
	batchRecords    prometheus.Gauge
	batchDuration   prometheus.Gauge
	conformityRate  prometheus.Gauge
	strictRate      prometheus.Gauge
	lastBatchUnixTs prometheus.Gauge
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Audited surgery records by final conformity status.",
		}, []string{"status"}),
		criteria: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "criterion_results_total",
			Help:      "Criterion verdicts by criterion, status and reason.",
		}, []string{"criterion", "status", "reason"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "procedure_matches_total",
			Help:      "Procedure match outcomes by method.",
		}, []string{"method"}),
		recordDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_duration_seconds",
			Help:      "Time spent auditing one record.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Completed audit batches.",
		}),
		batchRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_records",
			Help:      "Records in the last completed batch.",
		}),
		batchDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_duration_seconds",
			Help:      "Wall time of the last completed batch.",
		}),
		conformityRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_conformity_rate_percent",
			Help:      "CONFORME and ALERTA share of the last batch.",
		}),
		strictRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_strict_conformity_rate_percent",
			Help:      "CONFORME share of the last batch.",
		}),
		lastBatchUnixTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_timestamp_seconds",
			Help:      "Unix time the last batch completed.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.records, r.criteria, r.matches, r.recordDuration,
		r.batches, r.batchRecords, r.batchDuration, r.conformityRate, r.strictRate, r.lastBatchUnixTs,
	} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return r, nil
}

// Registry returns the registry holding the audit collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveResult counts one audited record.
func (r *Recorder) ObserveResult(result *domain.AuditResult, elapsed time.Duration) {
	r.records.WithLabelValues(result.FinalStatus.String()).Inc()
	r.matches.WithLabelValues(string(result.MatchMethod)).Inc()
	r.recordDuration.Observe(elapsed.Seconds())

	for _, c := range []struct {
		name   string
		status domain.ConformityStatus
		reason domain.ReasonCode
	}{
		{"escolha", result.ChoiceStatus, result.ChoiceReason},
		{"dose", result.DoseStatus, result.DoseReason},
		{"timing", result.TimingStatus, result.TimingReason},
		{"repique", result.RedoseStatus, result.RedoseReason},
	} {
		r.criteria.WithLabelValues(c.name, c.status.String(), c.reason.String()).Inc()
	}
}

// ObserveBatch records the summary gauges of a completed batch.
func (r *Recorder) ObserveBatch(batch *service.BatchResult) {
	r.batches.Inc()
	r.batchRecords.Set(float64(batch.Statistics.Total))
	r.batchDuration.Set(batch.Duration.Seconds())
	r.conformityRate.Set(batch.Statistics.ConformityRate)
	r.strictRate.Set(batch.Statistics.StrictConformityRate)
	r.lastBatchUnixTs.Set(float64(batch.StartedAt.Add(batch.Duration).Unix()))
}

// WriteTextfile writes the registry atomically to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
