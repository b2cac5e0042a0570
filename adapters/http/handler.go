// Package http serves record modules over a JSON:API interface.
package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/recordgate/adapters/clock"
	"github.com/artpar/recordgate/adapters/idgen"
	"github.com/artpar/recordgate/adapters/metrics"
	"github.com/artpar/recordgate/adapters/sqlite"
	"github.com/artpar/recordgate/core/resolver"
)

// Resource types used in responses.
const (
	TypeModule   = "modules"
	TypeRecord   = "records"
	TypeInstance = "instances"
	TypeDocument = "documents"
)

// RouterConfig wires the handler to its collaborators. Only Resolver is
// required; routes backed by a nil store answer 503.
type RouterConfig struct {
	Resolver  *resolver.Resolver
	Documents *sqlite.DocumentStore
	Instances *sqlite.InstanceStore

	Metrics     *metrics.Collector
	Gatherer    prometheus.Gatherer
	MetricsPath string

	// IDs and Clock stamp stored instances. They default to random UUIDs
	// and the system clock.
	IDs   idgen.Generator
	Clock clock.Clock

	Logger    zerolog.Logger
	LogAccess bool
	Timeout   time.Duration
}

// Handler holds the state shared by the record routes.
type Handler struct {
	resolver  *resolver.Resolver
	documents *sqlite.DocumentStore
	instances *sqlite.InstanceStore
	metrics   *metrics.Collector
	logger    zerolog.Logger
	logAccess atomic.Bool
	ids       idgen.Generator
	clock     clock.Clock
}

// NewHandler creates a handler from cfg.
func NewHandler(cfg RouterConfig) *Handler {
	h := &Handler{
		resolver:  cfg.Resolver,
		documents: cfg.Documents,
		instances: cfg.Instances,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		ids:       cfg.IDs,
		clock:     cfg.Clock,
	}
	if h.ids == nil {
		h.ids = idgen.UUID{}
	}
	if h.clock == nil {
		h.clock = clock.Real{}
	}
	h.logAccess.Store(cfg.LogAccess)
	return h
}

// SetLogAccess toggles construction and field access logging.
func (h *Handler) SetLogAccess(on bool) {
	h.logAccess.Store(on)
}

// NewRouter creates the main HTTP router.
func NewRouter(h *Handler, cfg RouterConfig) chi.Router {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(cfg.Logger, metricsPath))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, metricsPath))
	}

	r.NotFound(notFound)
	r.Get("/health", Liveness)

	if cfg.Metrics != nil {
		gatherer := cfg.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/modules", func(r chi.Router) {
		r.Get("/", h.ListModules)
		r.Get("/{module}", h.GetModule)
		r.Get("/{module}/records/{record}", h.ListInstances)
		r.Post("/{module}/records/{record}", h.CreateInstance)
	})
	r.Get("/instances/{id}", h.GetInstance)

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.ListDocuments)
		r.Get("/{module}", h.GetDocument)
		r.Put("/{module}", h.PutDocument)
		r.Delete("/{module}", h.DeleteDocument)
	})

	return r
}

// Liveness reports that the process is serving.
func Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// NewMetricsMiddleware creates middleware that records request metrics.
// Requests are labelled by chi route pattern so module names do not
// create new series.
func NewMetricsMiddleware(m *metrics.Collector, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == metricsPath {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(r.Method, route, metrics.StatusClass(ww.Status())).Inc()
		})
	}
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == metricsPath {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
