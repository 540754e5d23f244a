package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/skycms/skycms/internal/tenant"
)

// buildEditorRouter assembles the authoring app: the article and layout
// API, queue endpoints, and the contact API for previews. Health and
// status stay outside the tenant middleware so probes need no Host
// header gymnastics.
func (s *Server) buildEditorRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.chain("editor"))

	r.Get("/health", s.monitoringHandlers.HandleHealthCheck)
	r.Get("/healthz", s.monitoringHandlers.HandleHealthCheck)
	r.Get("/api/status", s.monitoringHandlers.HandleStatus)

	r.Group(func(r chi.Router) {
		r.Use(tenant.Middleware(s.registry, s.logger))

		r.Route("/api", func(r chi.Router) {
			r.Get("/articles", s.articleHandlers.HandleList)
			r.Post("/articles", s.articleHandlers.HandleCreate)
			r.Post("/articles/preview", s.articleHandlers.HandlePreview)
			r.Route("/articles/{number}", func(r chi.Router) {
				r.Get("/", s.articleHandlers.HandleGet)
				r.Put("/", s.articleHandlers.HandleSave)
				r.Delete("/", s.articleHandlers.HandleDelete)
				r.Get("/versions", s.articleHandlers.HandleVersions)
				r.Get("/versions/{version}", s.articleHandlers.HandleGetVersion)
				r.Put("/versions/{version}", s.articleHandlers.HandleUpdateVersion)
				r.Post("/publish", s.articleHandlers.HandlePublish)
				r.Post("/unpublish", s.articleHandlers.HandleUnpublish)
			})

			r.Get("/layouts", s.layoutHandlers.HandleList)
			r.Route("/layouts/{name}", func(r chi.Router) {
				r.Get("/", s.layoutHandlers.HandleGet)
				r.Put("/", s.layoutHandlers.HandleSave)
				r.Delete("/", s.layoutHandlers.HandleDelete)
			})

			r.Post("/rebuild", s.jobHandlers.HandleRebuild)
			r.Post("/toc", s.jobHandlers.HandleTocRebuild)
			r.Get("/jobs", s.jobHandlers.HandleJobs)
			r.Get("/jobs/{id}", s.jobHandlers.HandleGetJob)

			r.Get("/contacts", s.contactHandlers.HandleListMessages)
		})

		s.registerContactRoutes(r)
	})

	return r
}

// buildPublisherRouter assembles the public site: static artifacts with
// dynamic fallback, plus the contact API the embedded form posts to.
func (s *Server) buildPublisherRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.chain("publisher"))

	r.Get("/health", s.monitoringHandlers.HandleHealthCheck)
	r.Get("/healthz", s.monitoringHandlers.HandleHealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(tenant.Middleware(s.registry, s.logger))

		s.registerContactRoutes(r)

		r.Get("/*", s.siteHandlers.HandleSite)
		r.Head("/*", s.siteHandlers.HandleSite)
	})

	return r
}

// registerContactRoutes mounts the contact form API when it is enabled.
func (s *Server) registerContactRoutes(r chi.Router) {
	if !s.cfg.Contact.Enabled {
		return
	}
	r.Get("/_api/contact/skycms-contact.js", s.contactHandlers.HandleSnippet)
	r.Post("/_api/contact/submit", s.contactHandlers.HandleSubmit)
}

// buildMetricsMux assembles the metrics port: the Prometheus scrape
// endpoint plus a plain health probe.
func (s *Server) buildMetricsMux() http.Handler {
	mux := http.NewServeMux()
	metricsPath := "/metrics"
	healthPath := "/health"
	if s.cfg.Monitoring != nil {
		if s.cfg.Monitoring.Metrics.Path != "" {
			metricsPath = s.cfg.Monitoring.Metrics.Path
		}
		if s.cfg.Monitoring.Health.Path != "" {
			healthPath = s.cfg.Monitoring.Health.Path
		}
	}
	if s.opts.MetricsHandler != nil {
		mux.Handle(metricsPath, s.opts.MetricsHandler)
	}
	mux.HandleFunc(healthPath, s.monitoringHandlers.HandleHealthCheck)
	return mux
}
