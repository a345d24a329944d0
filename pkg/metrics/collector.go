package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/getmockd/mockresolver/pkg/engine"
	"github.com/getmockd/mockresolver/pkg/pushback"
)

// Pushback outcome label values.
const (
	PushbackDelivered = "delivered"
	PushbackFailed    = "failed"
	PushbackDropped   = "dropped"
)

// Collector records resolver activity. It implements engine.Hooks and
// engine.HTTPObserver.
type Collector struct {
	registry *Registry
	runtime  *RuntimeCollector

	Resolutions        *Counter
	ResolutionDuration *Histogram
	Pushbacks          *Counter
	PushbackAttempts   *Counter
	PushbackDuration   *Histogram
	HTTPRequests       *Counter
	HTTPDuration       *Histogram
	Endpoints          *Gauge
}

var (
	_ engine.Hooks        = (*Collector)(nil)
	_ engine.HTTPObserver = (*Collector)(nil)
)

// NewCollector creates a Collector on a fresh registry.
func NewCollector() *Collector {
	r := NewRegistry()
	return &Collector{
		registry: r,
		runtime:  NewRuntimeCollector(r),

		Resolutions: r.NewCounter(
			"mockresolver_resolutions_total",
			"Resolutions by endpoint and outcome",
			"endpoint", "status",
		),
		ResolutionDuration: r.NewHistogram(
			"mockresolver_resolution_duration_seconds",
			"Time spent selecting and rendering a response",
			DefaultBuckets,
			"endpoint",
		),
		Pushbacks: r.NewCounter(
			"mockresolver_pushbacks_total",
			"Pushback deliveries by endpoint and outcome",
			"endpoint", "outcome",
		),
		PushbackAttempts: r.NewCounter(
			"mockresolver_pushback_attempts_total",
			"HTTP attempts made for pushback deliveries, including retries",
			"endpoint",
		),
		PushbackDuration: r.NewHistogram(
			"mockresolver_pushback_duration_seconds",
			"Time from first attempt to final pushback outcome",
			DefaultBuckets,
			"endpoint",
		),
		HTTPRequests: r.NewCounter(
			"mockresolver_http_requests_total",
			"HTTP requests served",
			"method", "status",
		),
		HTTPDuration: r.NewHistogram(
			"mockresolver_http_request_duration_seconds",
			"Duration of HTTP requests in seconds",
			DefaultBuckets,
			"method",
		),
		Endpoints: r.NewGauge(
			"mockresolver_endpoints",
			"Number of endpoints currently served",
		),
	}
}

// Registry returns the underlying registry for custom metrics.
func (c *Collector) Registry() *Registry {
	return c.registry
}

// Handler serves the metrics, refreshing runtime gauges first.
func (c *Collector) Handler() http.Handler {
	inner := c.registry.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.runtime.Collect()
		inner.ServeHTTP(w, r)
	})
}

// OnResolved implements engine.Hooks.
func (c *Collector) OnResolved(o engine.ResolutionOutcome) {
	_ = c.Resolutions.Inc(o.EndpointID, string(o.Status))
	_ = c.ResolutionDuration.Observe(o.Duration.Seconds(), o.EndpointID)
}

// OnPushback implements engine.Hooks.
func (c *Collector) OnPushback(r pushback.Result) {
	_ = c.Pushbacks.Inc(r.EndpointID, pushbackOutcome(r))
	if r.Attempts > 0 {
		_ = c.PushbackAttempts.Add(float64(r.Attempts), r.EndpointID)
		_ = c.PushbackDuration.Observe(r.Duration.Seconds(), r.EndpointID)
	}
}

// ObserveHTTP implements engine.HTTPObserver.
func (c *Collector) ObserveHTTP(method string, status int, d time.Duration) {
	_ = c.HTTPRequests.Inc(method, strconv.Itoa(status))
	_ = c.HTTPDuration.Observe(d.Seconds(), method)
}

// SetEndpoints records the number of loaded endpoints.
func (c *Collector) SetEndpoints(n int) {
	_ = c.Endpoints.Set(float64(n))
}

func pushbackOutcome(r pushback.Result) string {
	switch {
	case r.Dropped:
		return PushbackDropped
	case r.OK():
		return PushbackDelivered
	default:
		return PushbackFailed
	}
}
