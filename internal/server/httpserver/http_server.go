// Package httpserver wires the editor API, the publisher app, and the
// metrics endpoint into managed HTTP servers.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/contact"
	derrors "github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/metrics"
	"github.com/skycms/skycms/internal/publish"
	"github.com/skycms/skycms/internal/server/handlers"
	smw "github.com/skycms/skycms/internal/server/middleware"
	"github.com/skycms/skycms/internal/storage"
	"github.com/skycms/skycms/internal/tenant"
)

// Server manages the HTTP surfaces: the editor app, the publisher app,
// and optionally a metrics port.
type Server struct {
	editorServer    *http.Server
	publisherServer *http.Server
	metricsServer   *http.Server

	cfg          *config.Config
	registry     *tenant.Registry
	queue        *publish.Queue
	opts         Options
	logger       *slog.Logger
	errorAdapter *derrors.HTTPErrorAdapter
	startTime    time.Time

	// Handler modules
	monitoringHandlers *handlers.MonitoringHandlers
	articleHandlers    *handlers.ArticleHandlers
	layoutHandlers     *handlers.LayoutHandlers
	jobHandlers        *handlers.JobHandlers
	contactHandlers    *handlers.ContactHandlers
	siteHandlers       *handlers.SiteHandlers
}

// New constructs the HTTP server wiring.
func New(cfg *config.Config, registry *tenant.Registry, manager *tenant.Manager, store storage.ArtifactStore,
	publisher *publish.Publisher, queue *publish.Queue, contactSvc *contact.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}

	s := &Server{
		cfg:          cfg,
		registry:     registry,
		queue:        queue,
		opts:         opts,
		logger:       opts.Logger,
		errorAdapter: derrors.NewHTTPErrorAdapter(opts.Logger),
		startTime:    time.Now().UTC(),
	}

	s.monitoringHandlers = handlers.NewMonitoringHandlers(s, registry)
	s.articleHandlers = handlers.NewArticleHandlers(manager, queue, publisher)
	s.layoutHandlers = handlers.NewLayoutHandlers(manager, publisher, opts.Bus)
	s.jobHandlers = handlers.NewJobHandlers(queue)
	s.contactHandlers = handlers.NewContactHandlers(cfg.Contact, contactSvc, manager)
	s.siteHandlers = handlers.NewSiteHandlers(manager, store, publisher, opts.Logger)

	return s
}

// StartTime reports when the server was constructed.
func (s *Server) StartTime() time.Time { return s.startTime }

// QueueLength reports the number of queued publish jobs.
func (s *Server) QueueLength() int {
	if s.queue == nil {
		return 0
	}
	return s.queue.Length()
}

// ActiveJobs reports the number of running publish jobs.
func (s *Server) ActiveJobs() int {
	if s.queue == nil {
		return 0
	}
	return len(s.queue.Active())
}

func (s *Server) metricsEnabled() bool {
	return s.cfg.Monitoring != nil && s.cfg.Monitoring.Metrics.Enabled && s.cfg.Server.MetricsPort > 0
}

// Start binds and launches all configured servers. Ports are pre-bound
// so startup surfaces one aggregate error instead of partial
// initialization.
func (s *Server) Start(ctx context.Context) error {
	type preBind struct {
		name string
		port int
		ln   net.Listener
	}
	binds := []preBind{
		{name: "editor", port: s.cfg.Server.EditorPort},
		{name: "publisher", port: s.cfg.Server.PublisherPort},
	}
	if s.metricsEnabled() {
		binds = append(binds, preBind{name: "metrics", port: s.cfg.Server.MetricsPort})
	}

	var bindErrs []error
	lc := net.ListenConfig{}
	for i := range binds {
		addr := fmt.Sprintf(":%d", binds[i].port)
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			bindErrs = append(bindErrs, fmt.Errorf("%s port %d: %w", binds[i].name, binds[i].port, err))
			continue
		}
		binds[i].ln = ln
	}
	if len(bindErrs) > 0 {
		for _, b := range binds {
			if b.ln != nil {
				_ = b.ln.Close()
			}
		}
		return fmt.Errorf("http startup failed: %w", errors.Join(bindErrs...))
	}

	s.editorServer = s.newHTTPServer(s.buildEditorRouter())
	s.startServerWithListener("editor", s.editorServer, binds[0].ln)

	s.publisherServer = s.newHTTPServer(s.buildPublisherRouter())
	s.startServerWithListener("publisher", s.publisherServer, binds[1].ln)

	attrs := []any{
		slog.Int("editor_port", s.cfg.Server.EditorPort),
		slog.Int("publisher_port", s.cfg.Server.PublisherPort),
	}
	if s.metricsEnabled() {
		s.metricsServer = s.newHTTPServer(s.buildMetricsMux())
		s.startServerWithListener("metrics", s.metricsServer, binds[2].ln)
		attrs = append(attrs, slog.Int("metrics_port", s.cfg.Server.MetricsPort))
	}
	s.logger.Info("HTTP servers started", attrs...)
	return nil
}

// Stop gracefully shuts down all servers, metrics first so scrapes stop
// before the apps drain.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if s.publisherServer != nil {
		if err := s.publisherServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("publisher server shutdown: %w", err))
		}
	}
	if s.editorServer != nil {
		if err := s.editorServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("editor server shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Info("HTTP servers stopped")
	return nil
}

func (s *Server) newHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeoutDuration(),
		WriteTimeout:      s.cfg.Server.WriteTimeoutDuration(),
		IdleTimeout:       120 * time.Second,
	}
}

// startServerWithListener launches an http.Server on a pre-bound
// listener, standardizing goroutine startup and error logging.
func (s *Server) startServerWithListener(kind string, srv *http.Server, ln net.Listener) {
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(kind+" server error", slog.Any("error", err))
		}
	}()
}

// chain builds the shared middleware stack for one app surface.
func (s *Server) chain(app string) func(http.Handler) http.Handler {
	return smw.Chain(s.logger, s.errorAdapter, s.opts.Recorder, app)
}
