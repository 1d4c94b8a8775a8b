package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// GeocodeRequests counts external geocoder calls by outcome (hit, miss, error)
	GeocodeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geocode_requests_total", Help: "External geocoder requests by result."},
		[]string{"result"},
	)
	// GeocodeCacheHits counts lookups served from the shared geo cache
	GeocodeCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "geocode_cache_hits_total", Help: "Geocode lookups served from cache."},
	)
	// RoutingRequests counts external routing calls by outcome (ok, empty, error)
	RoutingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routing_requests_total", Help: "External routing requests by result."},
		[]string{"result"},
	)
	// TripsBuilt counts trips produced by plan runs
	TripsBuilt = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "trips_built_total", Help: "Trips produced by the planner."},
	)
	// BacklogOrders counts orders pushed to backlog by reason
	BacklogOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backlog_orders_total", Help: "Orders sent to backlog by reason."},
		[]string{"reason"},
	)
	// PlanDuration records full plan-run durations in seconds
	PlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "plan_duration_seconds", Help: "Plan run duration in seconds.", Buckets: prometheus.DefBuckets},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(GeocodeRequests)
		Registry.MustRegister(GeocodeCacheHits)
		Registry.MustRegister(RoutingRequests)
		Registry.MustRegister(TripsBuilt)
		Registry.MustRegister(BacklogOrders)
		Registry.MustRegister(PlanDuration)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
