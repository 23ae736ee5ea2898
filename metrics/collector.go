package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "imagestream"

// Collector owns the Prometheus metrics for the pipeline and the HTTP
// surface. Each Collector has its own registry so several can coexist in tests.
type Collector struct {
	registry *prometheus.Registry
	store    *Store

	generationsTotal   *prometheus.CounterVec
	generationDuration prometheus.Histogram
	imagesReceived     prometheus.Counter
	backfillRequests   *prometheus.CounterVec
	deliveredItems     *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector registers all metrics on a fresh registry. store may be nil.
func NewCollector(store *Store) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{registry: reg, store: store}

	c.generationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "generations_total",
			Help:      "Total number of generation runs by outcome",
		},
		[]string{"outcome"},
	)

	c.generationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end generation duration including delivery",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	c.imagesReceived = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "images_received_total",
			Help:      "Images normalized from upstream responses, primary and backfill",
		},
	)

	c.backfillRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "backfill_requests_total",
			Help:      "Supplementary single-image requests by result",
		},
		[]string{"result"}, // success, empty, error
	)

	c.deliveredItems = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "delivered_items_total",
			Help:      "Items handed to the presentation sink by result",
		},
		[]string{"result"}, // success, error
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// ObserveGeneration records a finished generation.
func (c *Collector) ObserveGeneration(id, outcome string, requested, delivered int, d time.Duration) {
	c.generationsTotal.WithLabelValues(outcome).Inc()
	c.generationDuration.Observe(d.Seconds())

	if c.store != nil {
		c.store.Record(GenerationRecord{
			ID:        id,
			Outcome:   outcome,
			Requested: requested,
			Delivered: delivered,
			Duration:  d,
			EndTime:   time.Now(),
		})
	}
}

// ObserveImagesReceived adds n normalized images.
func (c *Collector) ObserveImagesReceived(n int) {
	if n > 0 {
		c.imagesReceived.Add(float64(n))
	}
}

// ObserveBackfillRequest counts one supplementary request.
func (c *Collector) ObserveBackfillRequest(result string) {
	c.backfillRequests.WithLabelValues(result).Inc()
}

// ObserveDelivery counts one delivered item.
func (c *Collector) ObserveDelivery(result string) {
	c.deliveredItems.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Store returns the history store, which may be nil.
func (c *Collector) Store() *Store {
	return c.store
}

// Registry exposes the registry for tests and custom gatherers.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
