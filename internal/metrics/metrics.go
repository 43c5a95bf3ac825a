package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Smoke Run Metrics
// =============================================================================

var (
	// SmokeRoutinesTotal counts finished smoke routines by outcome
	SmokeRoutinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longbow_smoke_routines_total",
			Help: "Total number of smoke routines run, by routine and status",
		},
		[]string{"routine", "status"},
	)

	// SmokeRoutineDurationSeconds measures the wall time of each routine
	SmokeRoutineDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "longbow_smoke_routine_duration_seconds",
			Help:    "Duration of smoke routines",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"routine"},
	)

	// GeneratedVectorsTotal counts synthetic vectors by kind (float, binary)
	GeneratedVectorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longbow_smoke_generated_vectors_total",
			Help: "Total number of synthetic vectors generated",
		},
		[]string{"kind"},
	)
)

// =============================================================================
// Client Metrics
// =============================================================================

var (
	// ClientOperationsTotal counts collection SDK calls
	ClientOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longbow_smoke_client_operations_total",
			Help: "Total number of client operations, by method and status",
		},
		[]string{"method", "status"},
	)

	// ClientOperationDurationSeconds measures client call latency
	ClientOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "longbow_smoke_client_operation_duration_seconds",
			Help:    "Duration of client operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ClientRowsSentTotal counts entity rows shipped with DoPut
	ClientRowsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "longbow_smoke_client_rows_sent_total",
			Help: "Total number of entity rows sent to the service",
		},
	)
)

// =============================================================================
// Embedded Store Metrics
// =============================================================================

var (
	// StoreCollections tracks live collections in the embedded store
	StoreCollections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "longbow_smoke_store_collections",
			Help: "Number of collections held by the embedded store",
		},
	)

	// StoreRowsInsertedTotal counts rows accepted by DoPut
	StoreRowsInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "longbow_smoke_store_rows_inserted_total",
			Help: "Total number of rows inserted into the embedded store",
		},
	)

	// StoreIndexBuildsTotal counts index builds by index type
	StoreIndexBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longbow_smoke_store_index_builds_total",
			Help: "Total number of index builds, by index type",
		},
		[]string{"index_type"},
	)

	// StoreGraphRecall records the share of exact top-k rows a graph index
	// also returned for a query
	StoreGraphRecall = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "longbow_smoke_store_graph_recall",
			Help:    "Fraction of exact search hits found by the graph index",
			Buckets: []float64{0.5, 0.7, 0.8, 0.9, 0.95, 0.99, 1},
		},
		[]string{"index_type"},
	)

	// StoreActionsTotal counts Flight actions by type and status
	StoreActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longbow_smoke_store_actions_total",
			Help: "Total number of Flight actions handled, by type and status",
		},
		[]string{"action", "status"},
	)
)

// Status returns the status label for an operation outcome.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// =============================================================================
// Storage Metrics
// =============================================================================

var (
	// DumpWriteDurationSeconds measures parquet dump writes
	DumpWriteDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "longbow_smoke_dump_write_duration_seconds",
			Help:    "Duration of parquet entity dump writes",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DumpSizeBytes records the size of written parquet dumps
	DumpSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "longbow_smoke_dump_size_bytes",
			Help:    "Size of parquet entity dumps",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	// DataFrameRowsLoadedTotal counts rows read from dataframe files
	DataFrameRowsLoadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "longbow_smoke_dataframe_rows_loaded_total",
			Help: "Total number of rows loaded from dataframe files",
		},
	)
)
