package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsReadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_rows_read_total",
		Help: "Total number of raw rows read per entity",
	}, []string{"entity"})

	RowsLoadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_rows_loaded_total",
		Help: "Total number of rows inserted into the normalized store per entity",
	}, []string{"entity"})

	RowsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_rows_rejected_total",
		Help: "Total number of rows rejected per entity and reason",
	}, []string{"entity", "reason"})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etl_orders_created_total",
		Help: "Total number of orders reconstructed from sales",
	})

	FactRowsInsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etl_fact_rows_inserted_total",
		Help: "Total number of fact_sales rows inserted",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "etl_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_runs_total",
		Help: "Total number of pipeline runs",
	}, []string{"pipeline", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
