// Package metrics provides Prometheus metrics collection for recordgate.
package metrics

import (
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/recordgate/core/binder"
	"github.com/artpar/recordgate/core/events"
	"github.com/artpar/recordgate/core/rule"
)

const namespace = "recordgate"

// Collector holds all Prometheus metrics for recordgate.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Module metrics
	ModuleResolutions *prometheus.CounterVec
	ModuleLoadSeconds prometheus.Histogram
	ModulesLoaded     prometheus.Gauge

	// Record metrics
	RecordsConstructed *prometheus.CounterVec
	RuleViolations     *prometheus.CounterVec

	// Document store metrics
	DocumentsStored prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered with the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		ModuleResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_resolutions_total",
				Help:      "Module materializations by outcome",
			},
			[]string{"result"},
		),
		ModuleLoadSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "module_load_duration_seconds",
				Help:      "Time to locate, parse and build a module",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		ModulesLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "modules_loaded",
				Help:      "Number of modules materialized by this process",
			},
		),

		RecordsConstructed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_constructed_total",
				Help:      "Record construction attempts by outcome",
			},
			[]string{"module", "record", "result"},
		),
		RuleViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_violations_total",
				Help:      "Rejected field values by failing check",
			},
			[]string{"module", "record", "field", "check"},
		),

		DocumentsStored: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_stored_total",
				Help:      "Schema documents written to the document store",
			},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// Construction outcomes.
const (
	ResultOK        = "ok"
	ResultArity     = "arity"
	ResultViolation = "violation"
	ResultError     = "error"
)

// ObserveConstruction records the outcome of building one record instance.
func (c *Collector) ObserveConstruction(module, record string, err error) {
	var v *rule.Violation
	switch {
	case err == nil:
		c.RecordsConstructed.WithLabelValues(module, record, ResultOK).Inc()
	case errors.As(err, &v):
		c.RecordsConstructed.WithLabelValues(module, record, ResultViolation).Inc()
		c.RuleViolations.WithLabelValues(module, record, v.Field, string(v.Check)).Inc()
	case errors.Is(err, binder.ErrArity), errors.Is(err, binder.ErrUnknownField):
		c.RecordsConstructed.WithLabelValues(module, record, ResultArity).Inc()
	default:
		c.RecordsConstructed.WithLabelValues(module, record, ResultError).Inc()
	}
}

// Subscribe feeds module lifecycle events into the collector.
func (c *Collector) Subscribe(bus *events.Bus) {
	bus.Subscribe("module.*", func(ctx context.Context, e events.Event) error {
		switch e.Name {
		case events.ModuleLoaded:
			c.ModuleResolutions.WithLabelValues("loaded").Inc()
			c.ModulesLoaded.Inc()
			c.ModuleLoadSeconds.Observe(e.Duration.Seconds())
		case events.ModuleFailed:
			c.ModuleResolutions.WithLabelValues("failed").Inc()
		case events.ModuleNotFound:
			c.ModuleResolutions.WithLabelValues("not_found").Inc()
		}
		return nil
	})
}

// StatusClass buckets an HTTP status code, e.g. 404 -> "4xx".
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code/100) + "xx"
}
