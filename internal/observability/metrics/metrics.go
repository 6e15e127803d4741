package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "oee_"

	// Result label values shared by the observe helpers.
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	resolutionTotal   *prometheus.CounterVec
	resolutionLatency *prometheus.HistogramVec

	lossCalcTotal   *prometheus.CounterVec
	lossCalcLatency *prometheus.HistogramVec

	lossExportTotal   *prometheus.CounterVec
	lossExportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total reading ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total reading ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Reading ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		resolutionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "resolution_total",
				Help: "Total event resolutions by resolver type and result",
			},
			[]string{"type", "result"},
		)
		resolutionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "resolution_latency_seconds",
				Help:    "Event resolution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type", "result"},
		)

		lossCalcTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "loss_calculation_total",
				Help: "Total equipment loss calculations by result",
			},
			[]string{"result"},
		)
		lossCalcLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "loss_calculation_latency_seconds",
				Help:    "Equipment loss calculation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		lossExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "loss_export_total",
				Help: "Total loss report exports by format and result",
			},
			[]string{"format", "result"},
		)
		lossExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "loss_export_latency_seconds",
				Help:    "Loss report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			resolutionTotal,
			resolutionLatency,
			lossCalcTotal,
			lossCalcLatency,
			lossExportTotal,
			lossExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveResolution records one script resolution by resolver type.
func ObserveResolution(resolverType, result string, duration time.Duration) {
	if resolverType == "" {
		resolverType = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if resolutionTotal != nil {
		resolutionTotal.WithLabelValues(resolverType, result).Inc()
	}
	if resolutionLatency != nil {
		resolutionLatency.WithLabelValues(resolverType, result).Observe(duration.Seconds())
	}
}

// ObserveLossCalculation records loss calculation latency and result.
func ObserveLossCalculation(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if lossCalcTotal != nil {
		lossCalcTotal.WithLabelValues(result).Inc()
	}
	if lossCalcLatency != nil {
		lossCalcLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveLossExport records export latency by format and result.
func ObserveLossExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if lossExportTotal != nil {
		lossExportTotal.WithLabelValues(format, result).Inc()
	}
	if lossExportLatency != nil {
		lossExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "open_downtime_spans",
			Help: "Availability records with no end time",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM oee_availability WHERE end_time IS NULL")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "resolver_configs",
			Help: "Configured data source resolvers",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM oee_resolvers")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
