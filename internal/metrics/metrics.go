// Package metrics provides Prometheus instrumentation for FraudGuard.
package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

const namespace = "fraudguard"

// Collector owns a private registry so tests and multiple servers in one
// process never collide on registration.
type Collector struct {
	registry *prometheus.Registry

	scoresTotal   *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	probability   prometheus.Histogram
	scoreDuration prometheus.Histogram
	rulesMatched  *prometheus.CounterVec
	asyncQueued   prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	modelInfo     *prometheus.GaugeVec
	dbOpenConns   prometheus.Gauge
	dbInUseConns  prometheus.Gauge
	goroutines    prometheus.Gauge
	cacheHitRatio prometheus.Gauge
}

// New creates a collector with Go runtime and process collectors attached.
func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(registry)

	return &Collector{
		registry: registry,
		scoresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_total",
			Help:      "Scored transactions by verdict and source.",
		}, []string{"verdict", "source"}),
		failuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_failures_total",
			Help:      "Failed scoring requests by stage reached.",
		}, []string{"stage"}),
		probability: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fraud_probability",
			Help:      "Distribution of classifier fraud probabilities.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.7, 0.9, 1},
		}),
		scoreDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_duration_seconds",
			Help:      "Time spent in the scoring pipeline.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		rulesMatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rationale_reasons_total",
			Help:      "Reasons emitted in rationales.",
		}, []string{"reason"}),
		asyncQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_submissions_total",
			Help:      "Transactions queued for asynchronous scoring.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status class.",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		modelInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_info",
			Help:      "Loaded classifier artifact; value is always 1.",
		}, []string{"version", "capability", "source"}),
		dbOpenConns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_open_connections",
			Help:      "Number of open database connections.",
		}),
		dbInUseConns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_in_use_connections",
			Help:      "Number of in-use database connections.",
		}),
		goroutines: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines.",
		}),
		cacheHitRatio: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_hit_ratio",
			Help:      "Local cache hit ratio since start.",
		}),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveScore records a successful pipeline run.
func (c *Collector) ObserveScore(outcome domain.ScoringOutcome, source string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.scoresTotal.WithLabelValues(string(outcome.Verdict), source).Inc()
	c.probability.Observe(outcome.Probability)
	c.scoreDuration.Observe(elapsed.Seconds())
	for _, reason := range outcome.Rationale {
		c.rulesMatched.WithLabelValues(reasonLabel(reason)).Inc()
	}
}

// ObserveFailure records a failed pipeline run at the given stage.
func (c *Collector) ObserveFailure(stage string) {
	if c == nil {
		return
	}
	c.failuresTotal.WithLabelValues(stage).Inc()
}

// ObserveAsyncQueued counts a transaction handed to the event bus.
func (c *Collector) ObserveAsyncQueued() {
	if c == nil {
		return
	}
	c.asyncQueued.Inc()
}

// ObserveHTTP records a finished HTTP request. path must be a route pattern.
func (c *Collector) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, path, statusBucket(status)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// SetModel publishes the loaded artifact.
func (c *Collector) SetModel(version, capability, source string) {
	if c == nil {
		return
	}
	c.modelInfo.Reset()
	c.modelInfo.WithLabelValues(version, capability, source).Set(1)
}

// SetCacheHitRatio publishes the local cache hit ratio.
func (c *Collector) SetCacheHitRatio(ratio float64) {
	if c == nil {
		return
	}
	c.cacheHitRatio.Set(ratio)
}

// Handler returns the /metrics handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartDBStatsCollector periodically samples sql.DBStats and the goroutine
// count into gauges. Call in a goroutine; exits when ctx is done.
func (c *Collector) StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	if c == nil || db == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			c.dbOpenConns.Set(float64(stats.OpenConnections))
			c.dbInUseConns.Set(float64(stats.InUse))
			c.goroutines.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// reasonLabel keeps the label set bounded: the amount in the large-outflow
// message varies per transaction.
func reasonLabel(reason string) string {
	if strings.HasPrefix(reason, "Large ") {
		return "Large outflow"
	}
	return reason
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	if code < 100 || code > 599 {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code/100) + "xx"
}
