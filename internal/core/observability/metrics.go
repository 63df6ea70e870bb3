package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	upstreamLatencySeconds     *prometheus.HistogramVec
	fetchTotal                 *prometheus.CounterVec
	fetchBytes                 prometheus.Histogram
	registryTotal              *prometheus.CounterVec
	imageCacheTotal            *prometheus.CounterVec
	cacheOpSeconds             *prometheus.HistogramVec
	renderLayersTotal          *prometheus.CounterVec
	featureInfoFeatures        prometheus.Histogram
	ogcExceptionsTotal         *prometheus.CounterVec
	invalidationLagSeconds     prometheus.Gauge
	invalidationErrorsTotal    *prometheus.CounterVec
}

var (
	current    atomic.Pointer[collectors]
	defaultSet *collectors
)

func init() {
	defaultSet = newCollectors()
	defaultSet.register(prometheus.DefaultRegisterer)
	current.Store(defaultSet)
}

// Init swaps the collectors for a fresh set registered on reg. With enabled
// false the collectors still work but are not exported anywhere.
func Init(reg prometheus.Registerer, enabled bool) {
	c := newCollectors()
	if enabled && reg != nil {
		c.register(reg)
	}
	current.Store(c)
}

func get() *collectors { return current.Load() }

func newCollectors() *collectors {
	return &collectors{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"method", "route", "status"},
		),
		upstreamLatencySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_latency_seconds",
				Help:    "Latency of upstream calls in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"upstream"},
		),
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wms_fetch_total",
				Help: "WMS map fetches by terminal state.",
			},
			[]string{"state"},
		),
		fetchBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wms_fetch_bytes",
				Help:    "Size of assembled WMS response bodies.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		registryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capabilities_registry_total",
				Help: "Capabilities registry lookups by result.",
			},
			[]string{"result"},
		),
		imageCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_cache_results_total",
				Help: "Map image cache results by outcome.",
			},
			[]string{"outcome"},
		),
		cacheOpSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cache_op_duration_seconds",
				Help:    "Redis operation latency.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"op", "result"},
		),
		renderLayersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "render_layers_total",
				Help: "Layer renders by outcome.",
			},
			[]string{"outcome"},
		),
		featureInfoFeatures: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "featureinfo_features",
				Help:    "Features returned per feature info request.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		ogcExceptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ogc_exceptions_total",
				Help: "OGC service exceptions written, by code.",
			},
			[]string{"code"},
		),
		invalidationLagSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "invalidation_lag_seconds",
				Help: "Age of the last applied capabilities invalidation event.",
			},
		),
		invalidationErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invalidation_consumer_errors_total",
				Help: "Invalidation consumer errors by kind.",
			},
			[]string{"kind"},
		),
	}
}

func (c *collectors) register(reg prometheus.Registerer) {
	reg.MustRegister(
		c.httpRequestsTotal,
		c.httpRequestDurationSeconds,
		c.upstreamLatencySeconds,
		c.fetchTotal,
		c.fetchBytes,
		c.registryTotal,
		c.imageCacheTotal,
		c.cacheOpSeconds,
		c.renderLayersTotal,
		c.featureInfoFeatures,
		c.ogcExceptionsTotal,
		c.invalidationLagSeconds,
		c.invalidationErrorsTotal,
	)
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	c := get()
	st := strconv.Itoa(status)
	c.httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	c.httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	get().upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// ObserveFetch records the terminal state of one map fetch.
func ObserveFetch(state string, bytes int) {
	c := get()
	c.fetchTotal.WithLabelValues(state).Inc()
	if bytes > 0 {
		c.fetchBytes.Observe(float64(bytes))
	}
}

func IncRegistry(result string) {
	get().registryTotal.WithLabelValues(result).Inc()
}

func IncImageCache(outcome string) {
	get().imageCacheTotal.WithLabelValues(outcome).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	get().cacheOpSeconds.WithLabelValues(op, result).Observe(durationSeconds)
}

func IncRenderLayer(outcome string) {
	get().renderLayersTotal.WithLabelValues(outcome).Inc()
}

func ObserveFeatureInfo(features int) {
	get().featureInfoFeatures.Observe(float64(features))
}

func IncOGCException(code string) {
	if code == "" {
		code = "generic"
	}
	get().ogcExceptionsTotal.WithLabelValues(code).Inc()
}

func SetInvalidationLagSeconds(v float64) {
	get().invalidationLagSeconds.Set(v)
}

func IncInvalidationError(kind string) {
	get().invalidationErrorsTotal.WithLabelValues(kind).Inc()
}
