// Package metrics provides Prometheus metrics collection for restschema.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artpar/restschema/ports"
)

// Collector holds all Prometheus metrics for restschema.
type Collector struct {
	// Client-side exchange metrics
	ExchangesTotal   *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec
	ExchangeErrors   *prometheus.CounterVec
	RetriesTotal     *prometheus.CounterVec

	// Pagination metrics
	PagesTotal *prometheus.CounterVec
	PageItems  *prometheus.HistogramVec

	// Mock platform metrics
	ServedTotal    *prometheus.CounterVec
	ServedDuration *prometheus.HistogramVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		ExchangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restschema",
				Name:      "exchanges_total",
				Help:      "Total number of platform exchanges by resource, method and status",
			},
			[]string{"resource", "method", "status"},
		),
		ExchangeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "restschema",
				Name:      "exchange_duration_seconds",
				Help:      "Platform exchange duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"resource", "method"},
		),
		ExchangeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restschema",
				Name:      "exchange_errors_total",
				Help:      "Total number of exchanges that failed before a response arrived",
			},
			[]string{"resource", "method"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restschema",
				Name:      "retries_total",
				Help:      "Total number of retried exchanges",
			},
			[]string{"resource", "method"},
		),
		PagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restschema",
				Name:      "pages_total",
				Help:      "Total number of list pages fetched",
			},
			[]string{"resource"},
		),
		PageItems: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "restschema",
				Name:      "page_items",
				Help:      "Records per fetched list page",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"resource"},
		),
		ServedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restschema",
				Name:      "mock_requests_total",
				Help:      "Total number of requests served by the mock platform",
			},
			[]string{"method", "resource", "status"},
		),
		ServedDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "restschema",
				Name:      "mock_request_duration_seconds",
				Help:      "Mock platform request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "resource"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "restschema",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "restschema",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "restschema",
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	} else {
		c.gatherer = prometheus.DefaultGatherer
	}
	return c
}

// ObserveExchange implements ports.Observer.
func (c *Collector) ObserveExchange(resource, method string, status int, d time.Duration) {
	if status == 0 {
		c.ExchangeErrors.WithLabelValues(resource, method).Inc()
	}
	c.ExchangesTotal.WithLabelValues(resource, method, StatusClass(status)).Inc()
	c.ExchangeDuration.WithLabelValues(resource, method).Observe(d.Seconds())
}

// ObserveRetry implements ports.Observer.
func (c *Collector) ObserveRetry(resource, method string) {
	c.RetriesTotal.WithLabelValues(resource, method).Inc()
}

// ObservePage implements ports.Observer.
func (c *Collector) ObservePage(resource string, items int) {
	c.PagesTotal.WithLabelValues(resource).Inc()
	c.PageItems.WithLabelValues(resource).Observe(float64(items))
}

// ObserveServed records one request handled by the mock platform.
func (c *Collector) ObserveServed(method, resource string, status int, d time.Duration) {
	c.ServedTotal.WithLabelValues(method, resource, strconv.Itoa(status)).Inc()
	c.ServedDuration.WithLabelValues(method, resource).Observe(d.Seconds())
}

// ObserveReload records a config reload outcome.
func (c *Collector) ObserveReload(err error, at time.Time) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(at.Unix()))
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// StatusClass reduces a status code to 2xx, 4xx and so on. 0 becomes "error".
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

var _ ports.Observer = (*Collector)(nil)
