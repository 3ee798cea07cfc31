package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "fede_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	claimSubmitTotal   *prometheus.CounterVec
	claimSubmitLatency *prometheus.HistogramVec

	claimTransitionTotal *prometheus.CounterVec

	calculationTotal   *prometheus.CounterVec
	calculationLatency *prometheus.HistogramVec

	duplicateDetectedTotal prometheus.Counter

	ibanRejectedTotal *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	rateRowsCreatedTotal *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		claimSubmitTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "claim_submit_total",
				Help: "Total claim submissions by result",
			},
			[]string{"result"},
		)
		claimSubmitLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "claim_submit_latency_seconds",
				Help:    "Claim submission latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		claimTransitionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "claim_transition_total",
				Help: "Total claim status transitions by target status and result",
			},
			[]string{"status", "result"},
		)

		calculationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "calculation_total",
				Help: "Total reimbursement calculations by category",
			},
			[]string{"category"},
		)
		calculationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "calculation_latency_seconds",
				Help:    "Reimbursement calculation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category"},
		)

		duplicateDetectedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "duplicate_detected_total",
				Help: "Total submissions that matched at least one duplicate",
			},
		)

		ibanRejectedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "iban_rejected_total",
				Help: "Total rejected IBANs by reason",
			},
			[]string{"reason"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total claim exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Claim export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		rateRowsCreatedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_rows_created_total",
				Help: "Total rate rows created by table",
			},
			[]string{"table"},
		)

		prometheus.MustRegister(
			claimSubmitTotal,
			claimSubmitLatency,
			claimTransitionTotal,
			calculationTotal,
			calculationLatency,
			duplicateDetectedTotal,
			ibanRejectedTotal,
			exportTotal,
			exportLatency,
			rateRowsCreatedTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveClaimSubmit records submission latency and result.
func ObserveClaimSubmit(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if claimSubmitTotal != nil {
		claimSubmitTotal.WithLabelValues(result).Inc()
	}
	if claimSubmitLatency != nil {
		claimSubmitLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncClaimTransition increments the transition counter.
func IncClaimTransition(status, result string) {
	if status == "" {
		status = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if claimTransitionTotal != nil {
		claimTransitionTotal.WithLabelValues(status, result).Inc()
	}
}

// ObserveCalculation records calculation latency by category.
func ObserveCalculation(category string, duration time.Duration) {
	if category == "" {
		category = "unknown"
	}
	if calculationTotal != nil {
		calculationTotal.WithLabelValues(category).Inc()
	}
	if calculationLatency != nil {
		calculationLatency.WithLabelValues(category).Observe(duration.Seconds())
	}
}

// IncDuplicateDetected increments the duplicate counter.
func IncDuplicateDetected() {
	if duplicateDetectedTotal != nil {
		duplicateDetectedTotal.Inc()
	}
}

// IncIBANRejected increments the rejected IBAN counter.
func IncIBANRejected(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ibanRejectedTotal != nil {
		ibanRejectedTotal.WithLabelValues(reason).Inc()
	}
}

// ObserveExport records export latency by format and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncRateRowCreated increments the rate-row counter for a table.
func IncRateRowCreated(table string) {
	if table == "" {
		table = "unknown"
	}
	if rateRowsCreatedTotal != nil {
		rateRowsCreatedTotal.WithLabelValues(table).Inc()
	}
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "claims_pending_validation",
			Help: "Claims waiting for first validation",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM claims WHERE status = 'submitted'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "claims_pending_second_validation",
			Help: "Claims waiting for national-board approval",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM claims c JOIN claim_calculations cc ON cc.claim_id = c.id WHERE c.status = 'validated' AND cc.requires_second_validation")
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

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
