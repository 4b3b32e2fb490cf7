package services

import "github.com/prometheus/client_golang/prometheus"

// Gateway pipeline metrics. Registered once at package init; handler-level
// HTTP metrics live in the middleware package.
var (
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigw_gateway_requests_total",
			Help: "Gateway invocations by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
	gatewayCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigw_gateway_cache_hits_total",
			Help: "Cache hits by action.",
		},
		[]string{"action"},
	)
	gatewayCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigw_gateway_cache_misses_total",
			Help: "Cache misses by action.",
		},
		[]string{"action"},
	)
	gatewayCoalesced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigw_gateway_coalesced_total",
			Help: "Invocations that joined another in-flight model call.",
		},
		[]string{"action"},
	)
	gatewayModelDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aigw_gateway_model_call_seconds",
			Help:    "Upstream model call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		gatewayRequests,
		gatewayCacheHits,
		gatewayCacheMisses,
		gatewayCoalesced,
		gatewayModelDuration,
	)
}

// Outcome labels for gatewayRequests.
const (
	outcomeSuccess       = "success"
	outcomeCacheHit      = "cache_hit"
	outcomeFeatureDenied = "feature_denied"
	outcomeQuotaExceeded = "quota_exceeded"
	outcomeModelError    = "model_error"
	outcomeStoreError    = "store_error"
)
