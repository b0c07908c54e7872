package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusConfig defines the configuration for Prometheus metrics.
type PrometheusConfig struct {
	Registry  *prometheus.Registry // Registry to register collectors with; a new one is created when nil
	Namespace string               // Namespace for metrics
	Subsystem string               // Subsystem for metrics
	Buckets   []float64            // Latency histogram buckets; prometheus.DefBuckets when empty
}

// PrometheusRecorder implements Recorder using Prometheus collectors
type PrometheusRecorder struct {
	registry         *prometheus.Registry
	dispatches       *prometheus.CounterVec
	dispatchLatency  *prometheus.HistogramVec
	handlersInvoked  *prometheus.CounterVec
	requests         *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	responseBytes    *prometheus.CounterVec
	unhandledRequest prometheus.Counter
}

// NewPrometheusRecorder creates the collectors and registers them.
// Registration fails if collectors with the same names already exist in the registry.
func NewPrometheusRecorder(config PrometheusConfig) (*PrometheusRecorder, error) {
	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	buckets := config.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := &PrometheusRecorder{
		registry: registry,
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "dispatches_total",
			Help:      "Handle calls by request method and outcome.",
		}, []string{"method", "outcome"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent matching and running handler chains.",
			Buckets:   buckets,
		}, []string{"outcome"}),
		handlersInvoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "handlers_invoked_total",
			Help:      "Handlers invoked by route pattern.",
		}, []string{"pattern"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_total",
			Help:      "Served requests by method and status code.",
		}, []string{"method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Request latency in seconds.",
			Buckets:   buckets,
		}, []string{"method"}),
		responseBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "response_bytes_total",
			Help:      "Response body bytes written.",
		}, []string{"method"}),
		unhandledRequest: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "unhandled_requests_total",
			Help:      "Matched routes whose handlers produced no response.",
		}),
	}

	collectors := []prometheus.Collector{
		r.dispatches,
		r.dispatchLatency,
		r.handlersInvoked,
		r.requests,
		r.requestLatency,
		r.responseBytes,
		r.unhandledRequest,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// ObserveDispatch records one Handle call
func (r *PrometheusRecorder) ObserveDispatch(d Dispatch) {
	r.dispatches.WithLabelValues(methodLabel(d.Method), d.Outcome).Inc()
	r.dispatchLatency.WithLabelValues(d.Outcome).Observe(d.Duration.Seconds())
	if d.Handlers > 0 {
		r.handlersInvoked.WithLabelValues(patternLabel(d.Pattern)).Add(float64(d.Handlers))
	}
	if d.Outcome == "matched" {
		r.unhandledRequest.Inc()
	}
}

// ObserveExchange records one served request
func (r *PrometheusRecorder) ObserveExchange(e Exchange) {
	method := methodLabel(e.Method)
	r.requests.WithLabelValues(method, strconv.Itoa(e.Status)).Inc()
	r.requestLatency.WithLabelValues(method).Observe(e.Duration.Seconds())
	if e.Bytes > 0 {
		r.responseBytes.WithLabelValues(method).Add(float64(e.Bytes))
	}
}

// Registry returns the registry the collectors are registered with
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler exposing the recorder's registry
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// patternLabel keeps the catch-all pattern readable in label values.
func patternLabel(pattern string) string {
	if pattern == "" {
		return "*"
	}
	return pattern
}

// methodLabel bounds the method label to the methods monty routes; anything
// else a client sends is counted as "OTHER".
func methodLabel(method string) string {
	switch method {
	case http.MethodHead, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, "PURGE", http.MethodOptions, http.MethodTrace, http.MethodConnect:
		return method
	}
	return "OTHER"
}
