package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SuppliersRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "suppliers_registered_total",
		Help: "Total number of suppliers registered",
	})

	SuppliersRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "suppliers_removed_total",
		Help: "Total number of suppliers removed",
	})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_placed_total",
		Help: "Total number of purchase orders placed",
	})

	DeliveriesConfirmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deliveries_confirmed_total",
		Help: "Total number of confirmed deliveries by resulting status",
	}, []string{"status", "source"})

	LedgerOperationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_failed_total",
		Help: "Total number of rejected ledger operations",
	}, []string{"operation", "reason"})

	SupplierScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "supplier_score",
		Help:    "Distribution of performance scores after recomputation",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	SupplierLockContentionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supplier_lock_contention_total",
		Help: "Total number of writes rejected because the supplier was locked",
	})

	ScorecardCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scorecard_cache_total",
		Help: "Scorecard cache lookups by result",
	}, []string{"result"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Total number of supplier events published",
	}, []string{"type"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Total number of supplier events that failed to publish",
	}, []string{"type"})

	LiveClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_clients_connected",
		Help: "Number of connected dashboard websocket clients",
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
