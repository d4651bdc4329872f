package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Indexer Metrics
	indexerRequestsTotal   *prometheus.CounterVec
	indexerRequestDuration *prometheus.HistogramVec
	indexerPagesTotal      *prometheus.CounterVec
	indexerRecordsPerPage  *prometheus.HistogramVec

	// Ledger Metrics
	recordsClassifiedTotal *prometheus.CounterVec
	negativeBalancesTotal  *prometheus.CounterVec
	issuerResidualBalance  *prometheus.GaugeVec
	holdersEligible        *prometheus.GaugeVec
	slotsAllocatedTotal    *prometheus.CounterVec

	// Pipeline Metrics
	assetRunDuration    *prometheus.HistogramVec
	assetRunsTotal      *prometheus.CounterVec
	activityDuration    *prometheus.HistogramVec
	reportsWrittenTotal *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		indexerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_requests_total",
				Help: "Total number of indexer requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		indexerRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexer_request_duration_seconds",
				Help:    "Duration of indexer requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint"},
		),
		indexerPagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_pages_total",
				Help: "Total number of transaction history pages fetched",
			},
			[]string{"asset_id"},
		),
		indexerRecordsPerPage: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexer_records_per_page",
				Help:    "Number of transaction records returned per history page",
				Buckets: []float64{0, 10, 50, 100, 250, 500, 1000},
			},
			[]string{"asset_id"},
		),

		recordsClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_classified_total",
				Help: "Total number of transaction records classified, by result",
			},
			[]string{"asset_id", "result"},
		),
		negativeBalancesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_negative_balances_total",
				Help: "Total number of ledger entries found negative after replay",
			},
			[]string{"asset_id", "policy"},
		),
		issuerResidualBalance: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledger_issuer_residual_balance",
				Help: "Balance still held by the issuer after replay",
			},
			[]string{"asset_id"},
		),
		holdersEligible: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "holders_eligible",
				Help: "Number of holders left after filtering",
			},
			[]string{"asset_id"},
		),
		slotsAllocatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slots_allocated_total",
				Help: "Total number of slots allocated, by allocation kind",
			},
			[]string{"asset_id", "kind"},
		),

		assetRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asset_run_duration_seconds",
				Help:    "Duration of a full asset pipeline run in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"asset_id", "result"},
		),
		assetRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asset_runs_total",
				Help: "Total number of asset pipeline runs by result",
			},
			[]string{"asset_id", "result"},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snapshot_activity_duration_seconds",
				Help:    "Duration of snapshot workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"activity"},
		),
		reportsWrittenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_written_total",
				Help: "Total number of report files written",
			},
			[]string{"report"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Indexer metric helpers

// RecordIndexerRequest records one indexer request with duration.
func (m *Metrics) RecordIndexerRequest(endpoint, status string, duration float64) {
	m.indexerRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.indexerRequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordIndexerPage records one transaction history page and its size.
func (m *Metrics) RecordIndexerPage(assetID string, records int) {
	m.indexerPagesTotal.WithLabelValues(assetID).Inc()
	m.indexerRecordsPerPage.WithLabelValues(assetID).Observe(float64(records))
}

// Ledger metric helpers

// RecordRecordsClassified records classification outcomes ("transfer", "skipped", "multi_inner").
func (m *Metrics) RecordRecordsClassified(assetID, result string, count int) {
	m.recordsClassifiedTotal.WithLabelValues(assetID, result).Add(float64(count))
}

// RecordNegativeBalances records invariant violations found after replay.
// policy is "abort" or "drop".
func (m *Metrics) RecordNegativeBalances(assetID, policy string, count int) {
	m.negativeBalancesTotal.WithLabelValues(assetID, policy).Add(float64(count))
}

// RecordIssuerResidual records the balance left with the issuer.
func (m *Metrics) RecordIssuerResidual(assetID string, balance int64) {
	m.issuerResidualBalance.WithLabelValues(assetID).Set(float64(balance))
}

// RecordHolders records the number of eligible holders.
func (m *Metrics) RecordHolders(assetID string, count int) {
	m.holdersEligible.WithLabelValues(assetID).Set(float64(count))
}

// RecordSlotsAllocated records allocated slots ("sequential" or "shuffled").
func (m *Metrics) RecordSlotsAllocated(assetID, kind string, count int) {
	m.slotsAllocatedTotal.WithLabelValues(assetID, kind).Add(float64(count))
}

// Pipeline metric helpers

// RecordAssetRun records an asset pipeline run with duration.
func (m *Metrics) RecordAssetRun(assetID, result string, duration float64) {
	m.assetRunDuration.WithLabelValues(assetID, result).Observe(duration)
	m.assetRunsTotal.WithLabelValues(assetID, result).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64) {
	m.activityDuration.WithLabelValues(activity).Observe(duration)
}

// RecordReportWritten records a written report file.
func (m *Metrics) RecordReportWritten(report string) {
	m.reportsWrittenTotal.WithLabelValues(report).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Push sends everything gathered by g to a Prometheus Pushgateway.
// Snapshot runs are one-shot processes, so there is nothing to scrape.
func Push(ctx context.Context, gatewayURL, job string, g prometheus.Gatherer) error {
	if err := push.New(gatewayURL, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
