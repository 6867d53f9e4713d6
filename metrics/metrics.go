// Package metrics 定义服务的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 接口
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shoprec_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Catalog 上游调用
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_catalog_requests_total",
			Help: "Total number of catalog service calls by operation and outcome",
		},
		[]string{"operation", "outcome"}, // outcome: success / failure / rejected
	)

	// 传输层已计为 success 的调用，响应体解析失败时单独计数
	CatalogDecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_catalog_decode_errors_total",
			Help: "Total number of catalog responses whose body could not be decoded",
		},
		[]string{"operation"},
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shoprec_catalog_request_duration_seconds",
			Help:    "Catalog service call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shoprec_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// 推荐链路
	RecallItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shoprec_recall_items",
			Help:    "Number of items returned per recall source",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"source"},
	)

	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_fallbacks_total",
			Help: "Total number of popularity fallbacks by reason",
		},
		[]string{"reason"}, // no_purchases / empty_merge / pipeline_error / panic
	)

	ContentIndexBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_content_index_builds_total",
			Help: "Total number of content similarity index builds by outcome",
		},
		[]string{"outcome"},
	)

	ContentIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shoprec_content_index_products",
			Help: "Number of products in the current content similarity index",
		},
	)
)

// RecordAPIRequest 记录一次 HTTP 请求。
func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordCatalogRequest 记录一次 Catalog 调用。
func RecordCatalogRequest(operation, outcome string, d time.Duration) {
	CatalogRequestsTotal.WithLabelValues(operation, outcome).Inc()
	CatalogRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}
