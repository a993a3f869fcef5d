package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	ApplicationsCreatedTotal prometheus.Counter
	StatusTransitionsTotal   *prometheus.CounterVec
	SchedulesGeneratedTotal  prometheus.Counter
	PaymentsRecordedTotal    *prometheus.CounterVec
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_system_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		ApplicationsCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "loan_system_applications_created_total",
				Help: "Total number of loan applications created.",
			},
		),
		StatusTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_system_status_transitions_total",
				Help: "Total number of loan application status transitions applied.",
			},
			[]string{"from", "to"},
		),
		SchedulesGeneratedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "loan_system_schedules_generated_total",
				Help: "Total number of repayment schedules generated or regenerated.",
			},
		),
		PaymentsRecordedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_system_payments_recorded_total",
				Help: "Total number of payment transactions recorded, by outcome.",
			},
			[]string{"status"},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordApplicationCreated() {
	Business.ApplicationsCreatedTotal.Inc()
}

func RecordStatusTransition(from, to string) {
	Business.StatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

func RecordScheduleGenerated() {
	Business.SchedulesGeneratedTotal.Inc()
}

func RecordPayment(status string) {
	Business.PaymentsRecordedTotal.WithLabelValues(status).Inc()
}
