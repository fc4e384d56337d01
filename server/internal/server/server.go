package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opendmp/python-script-processor/server/internal/api"
	"github.com/opendmp/python-script-processor/server/internal/config"
	"github.com/opendmp/python-script-processor/server/internal/metrics"
	"github.com/opendmp/python-script-processor/server/internal/plugin"
	"github.com/opendmp/python-script-processor/server/internal/serverstate"
)

// Options carries the dependencies of the HTTP handler.
type Options struct {
	Config   config.ServerConfig
	Registry *plugin.Registry
	State    *serverstate.Tracker
	Version  string
	// Metrics receives the collectors. A fresh registry is used when nil.
	Metrics *prometheus.Registry
}

// New constructs the HTTP handler for the descriptor server.
func New(opts Options) http.Handler {
	cfg := opts.Config
	r := chi.NewRouter()
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}
	for _, m := range api.MiddlewareChain() {
		r.Use(m)
	}

	reg := opts.Registry
	if reg == nil {
		reg = plugin.Default()
	}
	state := opts.State
	if state == nil {
		state = serverstate.NewTracker()
	}
	preg := opts.Metrics
	if preg == nil {
		preg = prometheus.NewRegistry()
	}
	metrics.Register(preg)
	metrics.SetDescriptorsRegistered(reg.Len())

	impl := &api.API{Registry: reg, State: state}

	r.Get("/healthz", impl.GetHealthz)
	r.Route("/api", func(ar chi.Router) {
		ar.Get("/openapi.json", api.OpenAPIHandler(opts.Version))
		ar.Group(func(g chi.Router) {
			if cfg.APIKey != "" {
				g.Use(api.APIKeyMiddleware(cfg.APIKey))
			}
			g.Get("/plugins", impl.ListPlugins)
			g.Get("/plugins/{serviceName}", impl.GetPlugin)
			g.Get("/plugins/{serviceName}/fields/{field}", impl.GetPluginField)
		})
	})

	if cfg.MetricsOnAPIPort() {
		r.Handle("/metrics", promhttp.HandlerFor(preg, promhttp.HandlerOpts{}))
	}

	return r
}

// MetricsHandler serves /metrics for a dedicated metrics listener.
func MetricsHandler(preg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(preg, promhttp.HandlerOpts{}))
	return mux
}
