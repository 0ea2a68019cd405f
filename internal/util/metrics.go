package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersImportedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_imported_total",
		Help: "Total number of storefront orders newly imported",
	})

	OrdersUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_updated_total",
		Help: "Total number of existing orders refreshed on import",
	})

	OrdersMatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_matched_total",
		Help: "Total number of orders matched to a carrier lead",
	})

	OrdersMatchSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_match_skipped_total",
		Help: "Total number of unmatched orders left for a later pass",
	})

	OrdersStatusRefreshedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_status_refreshed_total",
		Help: "Total number of matched orders advanced by the status projection pass",
	})

	StatusRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "status_refresh_failures_total",
		Help: "Total number of per-order carrier status refresh failures",
	})

	ImportRecordFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_record_failures_total",
		Help: "Total number of per-record import failures",
	}, []string{"reason"})

	SyncCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_cycles_total",
		Help: "Total number of sync cycles",
	}, []string{"domain", "result"})

	SyncCyclesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_cycles_discarded_total",
		Help: "Total number of cycle requests discarded by the reentrancy guard",
	}, []string{"domain"})

	StorefrontFetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_fetch_latency_seconds",
		Help:    "Latency of storefront order-page fetches",
		Buckets: prometheus.DefBuckets,
	})

	CarrierFetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "carrier_fetch_latency_seconds",
		Help:    "Latency of carrier lead-list fetches",
		Buckets: prometheus.DefBuckets,
	})

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
