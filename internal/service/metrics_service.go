package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the loan engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	paymentsTotal     prometheus.Counter
	duplicatePayments prometheus.Counter
	amountAllocated   prometheus.Counter
	amountUnallocated prometheus.Counter
	deductionRecords  prometheus.Counter
	ledgerDivergence  prometheus.Counter
	sweepRuns         prometheus.Counter
	loansMarkedOver   prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	paymentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_processed_total",
		Help: "Total payment events processed by the allocator",
	})

	duplicatePayments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_duplicate_total",
		Help: "Payment events short-circuited by the idempotency check",
	})

	amountAllocated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_amount_allocated_total",
		Help: "Total amount deducted from loans, in minor units",
	})

	amountUnallocated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_amount_unallocated_total",
		Help: "Total payment remainder left unallocated, in minor units",
	})

	deductionRecords := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deduction_records_total",
		Help: "Automated deduction ledger entries written",
	})

	ledgerDivergence := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_divergence_total",
		Help: "Deduction record writes that failed after the balance update",
	})

	sweepRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overdue_sweep_runs_total",
		Help: "Overdue sweep executions",
	})

	loansMarkedOver := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loans_marked_overdue_total",
		Help: "Loans newly flipped to overdue by the sweep",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, paymentsTotal, duplicatePayments, amountAllocated, amountUnallocated, deductionRecords, ledgerDivergence, sweepRuns, loansMarkedOver, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		paymentsTotal:     paymentsTotal,
		duplicatePayments: duplicatePayments,
		amountAllocated:   amountAllocated,
		amountUnallocated: amountUnallocated,
		deductionRecords:  deductionRecords,
		ledgerDivergence:  ledgerDivergence,
		sweepRuns:         sweepRuns,
		loansMarkedOver:   loansMarkedOver,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordAllocation captures the outcome of one payment allocation.
func (m *MetricsService) RecordAllocation(totalDeducted, unallocated int64, recordsWritten int) {
	if m == nil {
		return
	}
	m.paymentsTotal.Inc()
	m.amountAllocated.Add(float64(totalDeducted))
	m.amountUnallocated.Add(float64(unallocated))
	m.deductionRecords.Add(float64(recordsWritten))
}

// RecordDuplicatePayment counts an idempotent replay of a payment reference.
func (m *MetricsService) RecordDuplicatePayment() {
	if m == nil {
		return
	}
	m.duplicatePayments.Inc()
}

// RecordLedgerDivergence counts a deduction record write that failed after
// the balance was already updated.
func (m *MetricsService) RecordLedgerDivergence() {
	if m == nil {
		return
	}
	m.ledgerDivergence.Inc()
}

// RecordSweep captures the outcome of one overdue sweep.
func (m *MetricsService) RecordSweep(marked int) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
	m.loansMarkedOver.Add(float64(marked))
}
