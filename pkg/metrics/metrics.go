// Package metrics exposes Prometheus collectors for the cache, the request
// queues, the retrying fetcher and the HTTP surface.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"portfolio-gateway/pkg/retry"
)

const namespace = "portfolio_gateway"

type Collectors struct {
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	cacheExpired *prometheus.CounterVec

	queueDepth      *prometheus.GaugeVec
	queueDispatched *prometheus.CounterVec
	queueWait       *prometheus.HistogramVec

	retries *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Cache lookups answered from a live entry.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Cache lookups that found no live entry.",
		}, []string{"cache"}),
		cacheExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "expired_total",
			Help: "Entries removed because their TTL elapsed.",
		}, []string{"cache"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "queue", Name: "pending",
			Help: "Tasks waiting for dispatch.",
		}, []string{"queue"}),
		queueDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "dispatched_total",
			Help: "Tasks handed to the upstream.",
		}, []string{"queue"}),
		queueWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "queue", Name: "wait_seconds",
			Help:    "Time between enqueue and dispatch.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"queue"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upstream", Name: "retries_total",
			Help: "Upstream attempts that were retried, by reason.",
		}, []string{"upstream", "reason"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Served API requests.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	for _, col := range []prometheus.Collector{
		c.cacheHits, c.cacheMisses, c.cacheExpired,
		c.queueDepth, c.queueDispatched, c.queueWait,
		c.retries,
		c.httpRequests, c.httpDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) Hit(cache string)  { c.cacheHits.WithLabelValues(cache).Inc() }
func (c *Collectors) Miss(cache string) { c.cacheMisses.WithLabelValues(cache).Inc() }

func (c *Collectors) Expire(cache string, n int) {
	c.cacheExpired.WithLabelValues(cache).Add(float64(n))
}

func (c *Collectors) Enqueued(queue string, depth int) {
	c.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (c *Collectors) Dispatched(queue string, waited time.Duration, depth int) {
	c.queueDepth.WithLabelValues(queue).Set(float64(depth))
	c.queueDispatched.WithLabelValues(queue).Inc()
	c.queueWait.WithLabelValues(queue).Observe(waited.Seconds())
}

// RetryNotifier counts retries for one upstream.
func (c *Collectors) RetryNotifier(upstream string) retry.NotifyFunc {
	return func(err error, _ time.Duration) {
		reason := "transport"
		if errors.Is(err, retry.ErrRateLimitExceeded) {
			reason = "rate_limited"
		}
		c.retries.WithLabelValues(upstream, reason).Inc()
	}
}

// ObserveHTTP records one served request.
func (c *Collectors) ObserveHTTP(route string, status int, took time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(took.Seconds())
}
