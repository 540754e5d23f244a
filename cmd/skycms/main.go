package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/contact"
	"github.com/skycms/skycms/internal/deploy"
	"github.com/skycms/skycms/internal/events"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/logfields"
	"github.com/skycms/skycms/internal/metrics"
	"github.com/skycms/skycms/internal/publish"
	"github.com/skycms/skycms/internal/scheduler"
	"github.com/skycms/skycms/internal/server/httpserver"
	"github.com/skycms/skycms/internal/storage"
	"github.com/skycms/skycms/internal/tenant"
	"github.com/skycms/skycms/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"skycms.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
		NoWatch bool `help:"Disable configuration file watching"`
	} `cmd:"" help:"Run the editor and publisher servers"`

	Publish struct {
		Tenant  string `arg:"" help:"Tenant ID"`
		Number  int64  `arg:"" help:"Article number"`
		Version int    `help:"Article version (defaults to the latest)"`
	} `cmd:"" help:"Publish one article immediately"`

	Unpublish struct {
		Tenant string `arg:"" help:"Tenant ID"`
		Number int64  `arg:"" help:"Article number"`
	} `cmd:"" help:"Take a published article down"`

	Rebuild struct {
		Tenant string `arg:"" help:"Tenant ID"`
	} `cmd:"" help:"Re-render every live page of a tenant"`

	Sweep struct {
		Tenant string `arg:"" help:"Tenant ID"`
	} `cmd:"" help:"Run one scheduled publish and expiry sweep"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write an example configuration file"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Bootstrap logging; commands that load a configuration file rebuild
	// the logger from its monitoring section.
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	adapter := errors.NewCLIErrorAdapter(CLI.Verbose, logger)

	switch ctx.Command() {
	case "serve":
		adapter.HandleError(runServe())
	case "publish <tenant> <number>":
		adapter.HandleError(runPublish())
	case "unpublish <tenant> <number>":
		adapter.HandleError(runUnpublish())
	case "rebuild <tenant>":
		adapter.HandleError(runRebuild())
	case "sweep <tenant>":
		adapter.HandleError(runSweep())
	case "init":
		adapter.HandleError(runInit())
	case "version":
		fmt.Println(version.String())
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", ctx.Command())
		os.Exit(1)
	}
}

// configureLogging rebuilds the default logger from the monitoring
// section of the loaded configuration. -v forces debug regardless of
// the configured level.
func configureLogging(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	format := config.LogFormatText
	if cfg.Monitoring != nil {
		level = slogLevel(config.NormalizeLogLevel(string(cfg.Monitoring.Logging.Level)))
		format = config.NormalizeLogFormat(string(cfg.Monitoring.Logging.Format))
	}
	if CLI.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServe() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	logger := configureLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := tenant.NewRegistry(cfg)
	manager := tenant.NewManager(logger)
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warn("failed to close tenant databases", logfields.Error(err))
		}
	}()

	store, err := storage.NewFSStore(cfg.Storage.Root)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()

	if cfg.Events.NATSURL != "" {
		bridge, err := events.NewBridge(cfg.Events, logger)
		if err != nil {
			return err
		}
		defer bridge.Close()
		go bridge.Run(ctx, bus)
	}

	opts := httpserver.Options{Logger: logger, Bus: bus}
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Monitoring != nil && cfg.Monitoring.Metrics.Enabled {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		opts.MetricsHandler = metrics.HTTPHandler(reg)
	}
	opts.Recorder = recorder

	publisher := publish.NewPublisher(registry, manager, store,
		publish.WithBus(bus),
		publish.WithRecorder(recorder),
		publish.WithLogger(logger),
		publish.WithRetryPolicy(cfg.Storage.Retry.Policy()),
		publish.WithConcurrency(cfg.Publish.Concurrency),
	)

	queue := publish.NewQueue(publisher, cfg.Publish.QueueSize, cfg.Publish.Workers)
	queue.Start(ctx)
	defer queue.Stop()

	if cfg.Scheduler.Enabled {
		var schedOpts []scheduler.Option
		if cfg.Scheduler.NightlyRebuild {
			schedOpts = append(schedOpts, scheduler.WithNightlyRebuild(cfg.Scheduler.RebuildAt))
		}
		sweeper, err := scheduler.New(registry, queue, cfg.Scheduler.Interval(), logger, schedOpts...)
		if err != nil {
			return err
		}
		sweeper.Start()
		defer func() {
			if err := sweeper.Stop(); err != nil {
				logger.Warn("failed to stop sweep scheduler", logfields.Error(err))
			}
		}()
	}

	if cfg.Deploy.Enabled {
		mirror, err := deploy.NewMirror(cfg.Deploy, store, logger)
		if err != nil {
			return err
		}
		tenants := registry.All()
		ids := make([]string, 0, len(tenants))
		for _, t := range tenants {
			ids = append(ids, t.ID)
		}
		// Catch up on anything published while the daemon was down,
		// then follow the event bus.
		if err := mirror.SyncAll(ctx, ids); err != nil {
			logger.Warn("initial deploy sync failed", logfields.Error(err))
		}
		go mirror.Run(ctx, bus)
	}

	contactSvc, err := contact.NewService(cfg.Contact, manager,
		contact.WithBus(bus),
		contact.WithRecorder(recorder),
		contact.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg, registry, manager, store, publisher, queue, contactSvc, opts)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	if !CLI.Serve.NoWatch {
		// Only the tenant set applies live; port and pipeline changes
		// need a restart.
		watcher, err := config.NewWatcher(CLI.Config, func(_ context.Context, next *config.Config) error {
			registry.Reload(next)
			logger.Info("configuration reloaded", slog.Int("tenants", len(next.Tenants)))
			return nil
		})
		if err != nil {
			logger.Warn("config watching unavailable", logfields.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watching unavailable", logfields.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	logger.Info("skycms running, waiting for shutdown signal")
	<-ctx.Done()
	logger.Info("shutdown signal received, stopping")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
	defer stopCancel()
	return srv.Stop(stopCtx)
}

// oneShot is the minimal pipeline wiring for a single CLI operation:
// no queue, no servers, publisher driven synchronously.
type oneShot struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *tenant.Registry
	manager   *tenant.Manager
	publisher *publish.Publisher
	mirror    *deploy.Mirror
}

func newOneShot() (*oneShot, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	logger := configureLogging(cfg)

	store, err := storage.NewFSStore(cfg.Storage.Root)
	if err != nil {
		return nil, err
	}

	registry := tenant.NewRegistry(cfg)
	manager := tenant.NewManager(logger)
	o := &oneShot{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		manager:  manager,
		publisher: publish.NewPublisher(registry, manager, store,
			publish.WithLogger(logger),
			publish.WithRetryPolicy(cfg.Storage.Retry.Policy()),
			publish.WithConcurrency(cfg.Publish.Concurrency),
		),
	}
	if cfg.Deploy.Enabled {
		o.mirror, err = deploy.NewMirror(cfg.Deploy, store, logger)
		if err != nil {
			o.close()
			return nil, err
		}
	}
	return o, nil
}

func (o *oneShot) close() {
	if err := o.manager.Close(); err != nil {
		o.logger.Warn("failed to close tenant databases", logfields.Error(err))
	}
}

func (o *oneShot) tenant(id string) (*tenant.Tenant, error) {
	t := o.registry.ByID(id)
	if t == nil {
		return nil, errors.TenantError("unknown tenant").
			WithContext("tenant", id).
			Build()
	}
	return t, nil
}

// syncMirror lands the result of a CLI mutation in the deploy mirror so
// command-line publishes match what the running server would produce.
func (o *oneShot) syncMirror(ctx context.Context, tenantID string) {
	if o.mirror == nil {
		return
	}
	if _, err := o.mirror.Sync(ctx, tenantID); err != nil {
		o.logger.Warn("deploy mirror sync failed", logfields.Tenant(tenantID), logfields.Error(err))
	}
}

func runPublish() error {
	o, err := newOneShot()
	if err != nil {
		return err
	}
	defer o.close()

	t, err := o.tenant(CLI.Publish.Tenant)
	if err != nil {
		return err
	}

	ctx := context.Background()
	version := CLI.Publish.Version
	if version == 0 {
		db, err := o.manager.DB(t)
		if err != nil {
			return err
		}
		latest, err := db.GetArticle(ctx, CLI.Publish.Number)
		if err != nil {
			return err
		}
		version = latest.Version
	}

	page, err := o.publisher.PublishArticle(ctx, t, CLI.Publish.Number, version, time.Time{})
	if err != nil {
		return err
	}
	o.syncMirror(ctx, t.ID)

	fmt.Printf("published article %d version %d at /%s\n", page.ArticleNumber, page.Version, page.URLPath)
	return nil
}

func runUnpublish() error {
	o, err := newOneShot()
	if err != nil {
		return err
	}
	defer o.close()

	t, err := o.tenant(CLI.Unpublish.Tenant)
	if err != nil {
		return err
	}

	ctx := context.Background()
	page, err := o.publisher.UnpublishArticle(ctx, t, CLI.Unpublish.Number)
	if err != nil {
		return err
	}
	if page == nil {
		fmt.Printf("article %d has no published page\n", CLI.Unpublish.Number)
		return nil
	}
	o.syncMirror(ctx, t.ID)

	fmt.Printf("unpublished article %d (/%s)\n", page.ArticleNumber, page.URLPath)
	return nil
}

func runRebuild() error {
	o, err := newOneShot()
	if err != nil {
		return err
	}
	defer o.close()

	t, err := o.tenant(CLI.Rebuild.Tenant)
	if err != nil {
		return err
	}

	ctx := context.Background()
	report, err := o.publisher.RebuildSite(ctx, t)
	if err != nil {
		return err
	}
	o.syncMirror(ctx, t.ID)

	fmt.Printf("rebuilt %d pages (%d failed) in %s\n", report.Pages, report.Failed, report.Duration.Round(time.Millisecond))
	return nil
}

func runSweep() error {
	o, err := newOneShot()
	if err != nil {
		return err
	}
	defer o.close()

	t, err := o.tenant(CLI.Sweep.Tenant)
	if err != nil {
		return err
	}

	ctx := context.Background()
	report, err := o.publisher.Sweep(ctx, t, time.Now().UTC())
	if err != nil {
		return err
	}
	o.syncMirror(ctx, t.ID)

	fmt.Printf("sweep published %d, unpublished %d\n", report.Published, report.Unpublished)
	return nil
}

func runInit() error {
	if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
		return err
	}
	fmt.Printf("configuration written to %s\n", CLI.Config)
	return nil
}
