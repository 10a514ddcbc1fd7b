package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCSignaturesPerCall *prometheus.HistogramVec

	// History Fetch Metrics
	historyFetchesTotal      *prometheus.CounterVec
	historyFetchDuration     *prometheus.HistogramVec
	historyBatchDuration     *prometheus.HistogramVec
	historyBatchSize         *prometheus.HistogramVec
	transactionsFetchedTotal *prometheus.CounterVec
	transactionsDroppedTotal *prometheus.CounterVec

	// Lookup View Metrics
	lookupsTotal           *prometheus.CounterVec
	lookupsSupersededTotal prometheus.Counter
	lookupSessionsActive   prometheus.Gauge

	// Ranking Metrics
	rankingQueriesTotal   *prometheus.CounterVec
	rankingQueryDuration  *prometheus.HistogramVec
	rankingResultsPerPage prometheus.Histogram

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

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
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures fetched per GetSignaturesForAddress call",
				Buckets: []float64{0, 1, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"endpoint"},
		),

		// History Fetch Metrics
		historyFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "history_fetches_total",
				Help: "Total number of wallet history fetches by outcome",
			},
			[]string{"status"},
		),
		historyFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "history_fetch_duration_seconds",
				Help:    "Duration of wallet history fetches in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		historyBatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "history_batch_duration_seconds",
				Help:    "Duration of one transaction-body batch round in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"endpoint"},
		),
		historyBatchSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "history_batch_size",
				Help:    "Number of transaction bodies requested per batch round",
				Buckets: []float64{1, 5, 10, 25, 50, 100},
			},
			[]string{"endpoint"},
		),
		transactionsFetchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_fetched_total",
				Help: "Total number of transaction bodies fetched and classified",
			},
			[]string{"endpoint"},
		),
		transactionsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_dropped_total",
				Help: "Total number of transactions dropped because their body could not be fetched",
			},
			[]string{"endpoint"},
		),

		// Lookup View Metrics
		lookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lookups_total",
				Help: "Total number of committed wallet lookups by outcome",
			},
			[]string{"status"},
		),
		lookupsSupersededTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lookups_superseded_total",
				Help: "Total number of lookup results discarded because a newer lookup started",
			},
		),
		lookupSessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lookup_sessions_active",
				Help: "Number of lookup sessions held in memory",
			},
		),

		// Ranking Metrics
		rankingQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_queries_total",
				Help: "Total number of ranking queries by sort metric and status",
			},
			[]string{"sort_metric", "status"},
		),
		rankingQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ranking_query_duration_seconds",
				Help:    "Duration of ranking queries in seconds, including data source reads",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"source"},
		),
		rankingResultsPerPage: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranking_results_per_page",
				Help:    "Number of users remaining after filtering",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),

		// Database Metrics
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

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"wallet_address"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"wallet_address", "event_type"},
		),

		// NATS Metrics
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

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRPCSignaturesPerCall records the number of signatures fetched.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	m.solanaRPCSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// History fetch metric helpers

// RecordHistoryFetch records the outcome and duration of a whole history fetch.
func (m *Metrics) RecordHistoryFetch(status string, duration float64) {
	m.historyFetchesTotal.WithLabelValues(status).Inc()
	m.historyFetchDuration.WithLabelValues(status).Observe(duration)
}

// RecordBatch records one batch round.
func (m *Metrics) RecordBatch(endpoint string, size int, duration float64) {
	m.historyBatchSize.WithLabelValues(endpoint).Observe(float64(size))
	m.historyBatchDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordTransactionsFetched records transactions fetched from Solana.
func (m *Metrics) RecordTransactionsFetched(endpoint string, count int) {
	m.transactionsFetchedTotal.WithLabelValues(endpoint).Add(float64(count))
}

// RecordTransactionDropped records a transaction dropped from a result.
func (m *Metrics) RecordTransactionDropped(endpoint string) {
	m.transactionsDroppedTotal.WithLabelValues(endpoint).Inc()
}

// Lookup metric helpers

// RecordLookup records a committed lookup.
func (m *Metrics) RecordLookup(status string) {
	m.lookupsTotal.WithLabelValues(status).Inc()
}

// RecordLookupSuperseded records a lookup result that lost to a newer one.
func (m *Metrics) RecordLookupSuperseded() {
	m.lookupsSupersededTotal.Inc()
}

// SetLookupSessions records the number of live lookup sessions.
func (m *Metrics) SetLookupSessions(n int) {
	m.lookupSessionsActive.Set(float64(n))
}

// Ranking metric helpers

// RecordRankingQuery records a ranking query.
func (m *Metrics) RecordRankingQuery(sortMetric, status, source string, results int, duration float64) {
	m.rankingQueriesTotal.WithLabelValues(sortMetric, status).Inc()
	m.rankingQueryDuration.WithLabelValues(source).Observe(duration)
	if status == "success" {
		m.rankingResultsPerPage.Observe(float64(results))
	}
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

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(walletAddress string, delta float64) {
	m.sseActiveConnections.WithLabelValues(walletAddress).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(walletAddress, eventType string) {
	m.sseEventsSent.WithLabelValues(walletAddress, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
