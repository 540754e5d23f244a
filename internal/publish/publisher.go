// Package publish orchestrates the publishing pipeline: rendering
// article bodies, running the publish state transition, writing static
// artifacts, refreshing the table of contents and purging the CDN.
package publish

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skycms/skycms/internal/cdn"
	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/database"
	"github.com/skycms/skycms/internal/events"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/logfields"
	"github.com/skycms/skycms/internal/metrics"
	"github.com/skycms/skycms/internal/model"
	"github.com/skycms/skycms/internal/pathrule"
	"github.com/skycms/skycms/internal/render"
	"github.com/skycms/skycms/internal/retry"
	"github.com/skycms/skycms/internal/storage"
	"github.com/skycms/skycms/internal/tenant"
	"github.com/skycms/skycms/internal/toc"
)

// Publisher runs the pipeline for all tenants. Safe for concurrent use.
type Publisher struct {
	registry    *tenant.Registry
	manager     *tenant.Manager
	store       storage.ArtifactStore
	layouts     *render.LayoutCache
	bus         *events.Bus
	recorder    metrics.Recorder
	logger      *slog.Logger
	policy      retry.Policy
	concurrency int

	mu        sync.Mutex
	purgers   map[string]cdn.Provider
	newPurger func(*config.CDNConfig) (cdn.Provider, error)

	now func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithBus attaches the event bus; publish lifecycle events are emitted on it.
func WithBus(bus *events.Bus) Option { return func(p *Publisher) { p.bus = bus } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(p *Publisher) { p.recorder = r } }

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option { return func(p *Publisher) { p.logger = l } }

// WithRetryPolicy overrides the artifact-write retry policy.
func WithRetryPolicy(policy retry.Policy) Option { return func(p *Publisher) { p.policy = policy } }

// WithConcurrency bounds the rebuild fan-out.
func WithConcurrency(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewPublisher wires the pipeline against a tenant registry, the shared
// connection manager and an artifact store.
func NewPublisher(registry *tenant.Registry, manager *tenant.Manager, store storage.ArtifactStore, opts ...Option) *Publisher {
	p := &Publisher{
		registry:    registry,
		manager:     manager,
		store:       store,
		recorder:    metrics.NoopRecorder{},
		logger:      slog.Default(),
		policy:      retry.DefaultPolicy(),
		concurrency: 4,
		purgers:     make(map[string]cdn.Provider),
		newPurger:   cdn.New,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.layouts = render.NewLayoutCache(func(ctx context.Context, tenantID string) (*model.Layout, error) {
		t := registry.ByID(tenantID)
		if t == nil {
			return nil, errors.TenantError("unknown tenant " + tenantID).Build()
		}
		db, err := manager.DB(t)
		if err != nil {
			return nil, err
		}
		return db.DefaultLayout(ctx)
	})
	return p
}

// InvalidateLayout drops the cached layout for a tenant so the next
// render reloads it. Editors call this after saving a layout.
func (p *Publisher) InvalidateLayout(tenantID string) {
	p.layouts.Invalidate(tenantID)
}

// Layout returns the tenant's cached default layout, loading it on
// first use. The publisher app uses it to render pages dynamically
// when no static artifact exists.
func (p *Publisher) Layout(ctx context.Context, tenantID string) (*model.Layout, error) {
	return p.layouts.Get(ctx, tenantID)
}

// PublishArticle publishes one article version. A zero publishAt means
// immediately. When the publish time lies in the future the state
// transition still commits, but the artifact write is left to the
// scheduler sweep.
func (p *Publisher) PublishArticle(ctx context.Context, t *tenant.Tenant, number int64, version int, publishAt time.Time) (*model.PublishedPage, error) {
	start := p.now()
	if publishAt.IsZero() {
		publishAt = start
	}

	db, err := p.manager.DB(t)
	if err != nil {
		return nil, err
	}
	a, err := db.GetArticleVersion(ctx, number, version)
	if err != nil {
		return nil, err
	}

	// Remember the currently live page so a changed URL path leaves no
	// orphaned artifact behind.
	prev, err := db.GetPageByNumber(ctx, number)
	if err != nil && !errors.HasCategory(err, errors.CategoryNotFound) {
		return nil, err
	}

	// Republishing the live version with an unchanged fingerprint and an
	// intact artifact changes nothing; short it out before the state
	// transition. A stale stored fingerprint disables the skip.
	if prev != nil && prev.Version == version && prev.IsLive(start.UTC()) && !render.FingerprintChanged(a) {
		if ok, existsErr := p.store.Exists(ctx, t.ID, pathrule.ArtifactPath(prev.URLPath)); existsErr == nil && ok {
			p.logger.Info("publish skipped, content unchanged",
				logfields.Tenant(t.ID), logfields.Article(number), logfields.Version(version))
			return prev, nil
		}
	}

	renderStart := p.now()
	body, err := render.Body(a.ContentFormat, a.Content)
	if err != nil {
		p.recorder.IncPublishOutcome(t.ID, metrics.OutcomeFailed)
		return nil, err
	}
	p.recorder.ObserveStageDuration("render", p.now().Sub(renderStart))

	page, err := db.PublishVersion(ctx, number, version, body, publishAt)
	if err != nil {
		p.recorder.IncPublishOutcome(t.ID, metrics.OutcomeFailed)
		return nil, err
	}

	now := p.now().UTC()
	if page.IsLive(now) {
		if err := p.materialize(ctx, t, db, page, prev, now); err != nil {
			p.recorder.IncPublishOutcome(t.ID, metrics.OutcomeFailed)
			return nil, err
		}
		p.publishEvent(ctx, events.ArticlePublished{
			Tenant:        t.ID,
			ArticleNumber: page.ArticleNumber,
			Version:       page.Version,
			URLPath:       page.URLPath,
			Published:     page.Published,
			Timestamp:     now,
		})
	} else {
		p.logger.Info("publish scheduled, artifact deferred to sweep",
			logfields.Tenant(t.ID), logfields.Article(number), slog.Time("publish_at", page.Published))
	}

	p.recorder.ObservePublishDuration(t.ID, p.now().Sub(start))
	p.recorder.IncPublishOutcome(t.ID, metrics.OutcomeSuccess)
	p.logger.Info("article published",
		logfields.Tenant(t.ID), logfields.Article(number), logfields.Version(version), logfields.URLPath(page.URLPath))
	return page, nil
}

// materialize runs the artifact pipeline for one live page: compose the
// document, write it, record the render, refresh the TOC and purge.
func (p *Publisher) materialize(ctx context.Context, t *tenant.Tenant, db *database.DB, page, prev *model.PublishedPage, now time.Time) error {
	layout, err := p.layouts.Get(ctx, t.ID)
	if err != nil {
		return err
	}
	if err := p.writeArtifact(ctx, t, layout, page); err != nil {
		return err
	}
	if err := db.MarkRendered(ctx, page.ArticleNumber, now); err != nil {
		return err
	}

	targets := []*model.PublishedPage{page}
	if prev != nil && pathrule.ArtifactPath(prev.URLPath) != pathrule.ArtifactPath(page.URLPath) {
		if err := p.store.Delete(ctx, t.ID, pathrule.ArtifactPath(prev.URLPath)); err != nil {
			p.logger.Warn("stale artifact removal failed",
				logfields.Tenant(t.ID), logfields.URLPath(prev.URLPath), logfields.Error(err))
		}
		targets = append(targets, prev)
	}

	if err := p.refreshTOC(ctx, t, db, now); err != nil {
		return err
	}
	p.purge(ctx, t, purgeList(t, targets...))
	return nil
}

// UnpublishArticle takes an article off the public site: publish
// timestamps are cleared, the page row removed, the artifact deleted and
// the CDN purged. Returns the removed page, or nil when the article had
// no live page.
func (p *Publisher) UnpublishArticle(ctx context.Context, t *tenant.Tenant, number int64) (*model.PublishedPage, error) {
	db, err := p.manager.DB(t)
	if err != nil {
		return nil, err
	}
	page, err := db.UnpublishArticle(ctx, number)
	if err != nil {
		return nil, err
	}
	if page == nil {
		p.logger.Debug("unpublish without live page", logfields.Tenant(t.ID), logfields.Article(number))
		return nil, nil
	}

	now := p.now().UTC()
	err = retry.Do(ctx, p.policy, p.logger, "delete artifact", func(ctx context.Context) error {
		return p.store.Delete(ctx, t.ID, pathrule.ArtifactPath(page.URLPath))
	})
	if err != nil {
		return nil, err
	}
	if err := p.refreshTOC(ctx, t, db, now); err != nil {
		return nil, err
	}
	p.purge(ctx, t, purgeList(t, page))
	p.publishEvent(ctx, events.ArticleUnpublished{
		Tenant:        t.ID,
		ArticleNumber: number,
		URLPath:       page.URLPath,
		Timestamp:     now,
	})
	p.logger.Info("article unpublished",
		logfields.Tenant(t.ID), logfields.Article(number), logfields.URLPath(page.URLPath))
	return page, nil
}

// RebuildReport summarizes a full-site rebuild.
type RebuildReport struct {
	Pages    int           `json:"pages"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// RebuildSite re-renders every live page against the current default
// layout and rewrites all artifacts, followed by a whole-site CDN purge.
// Individual page failures are counted in the report, not fatal.
func (p *Publisher) RebuildSite(ctx context.Context, t *tenant.Tenant) (*RebuildReport, error) {
	start := p.now()
	db, err := p.manager.DB(t)
	if err != nil {
		return nil, err
	}

	// A rebuild usually follows a layout edit; always reload it.
	p.layouts.Invalidate(t.ID)
	layout, err := p.layouts.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	pages, err := db.ListPages(ctx)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	rebuilt := 0
	for i := range pages {
		page := pages[i]
		if !page.IsLive(now) {
			continue
		}
		rebuilt++
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err := p.rebuildPage(gctx, t, db, layout, &page, now); err != nil {
				failed.Add(1)
				p.logger.Warn("page rebuild failed",
					logfields.Tenant(t.ID), logfields.Article(page.ArticleNumber),
					logfields.URLPath(page.URLPath), logfields.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := p.refreshTOC(ctx, t, db, now); err != nil {
		return nil, err
	}
	p.purge(ctx, t, []string{"/"})

	report := &RebuildReport{Pages: rebuilt, Failed: int(failed.Load()), Duration: p.now().Sub(start)}
	p.recorder.ObserveRebuildDuration(t.ID, report.Duration)
	p.publishEvent(ctx, events.SiteRebuilt{
		Tenant:    t.ID,
		Pages:     report.Pages,
		Failed:    report.Failed,
		Duration:  report.Duration,
		Timestamp: now,
	})
	p.logger.Info("site rebuilt", logfields.Tenant(t.ID),
		slog.Int("pages", report.Pages), slog.Int("failed", report.Failed),
		logfields.DurationMS(float64(report.Duration.Milliseconds())))
	return report, nil
}

func (p *Publisher) rebuildPage(ctx context.Context, t *tenant.Tenant, db *database.DB, layout *model.Layout, page *model.PublishedPage, now time.Time) error {
	a, err := db.GetArticleVersion(ctx, page.ArticleNumber, page.Version)
	if err != nil {
		return err
	}
	body, err := render.Body(a.ContentFormat, a.Content)
	if err != nil {
		return err
	}
	page.Content = body
	if err := p.writeArtifact(ctx, t, layout, page); err != nil {
		return err
	}
	if err := db.UpdatePageContent(ctx, page.ArticleNumber, body, now); err != nil {
		return err
	}
	return db.MarkRendered(ctx, page.ArticleNumber, now)
}

// SweepReport summarizes one scheduler sweep.
type SweepReport struct {
	Published   int `json:"published"`
	Unpublished int `json:"unpublished"`
}

// Sweep materializes pages whose publish time has arrived and takes
// down pages past their expiry. Per-page failures are logged and
// skipped so one bad page cannot stall the sweep.
func (p *Publisher) Sweep(ctx context.Context, t *tenant.Tenant, now time.Time) (*SweepReport, error) {
	db, err := p.manager.DB(t)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{}
	var touched []*model.PublishedPage

	due, err := db.ListDuePages(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(due) > 0 {
		layout, err := p.layouts.Get(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		for i := range due {
			page := &due[i]
			if !page.IsLive(now) {
				// Due but already expired; the expiry pass removes it.
				continue
			}
			if err := p.writeArtifact(ctx, t, layout, page); err != nil {
				p.logger.Warn("due page materialization failed",
					logfields.Tenant(t.ID), logfields.Article(page.ArticleNumber), logfields.Error(err))
				continue
			}
			if err := db.MarkRendered(ctx, page.ArticleNumber, now); err != nil {
				p.logger.Warn("render bookkeeping failed",
					logfields.Tenant(t.ID), logfields.Article(page.ArticleNumber), logfields.Error(err))
				continue
			}
			report.Published++
			touched = append(touched, page)
			p.publishEvent(ctx, events.ArticlePublished{
				Tenant:        t.ID,
				ArticleNumber: page.ArticleNumber,
				Version:       page.Version,
				URLPath:       page.URLPath,
				Published:     page.Published,
				Timestamp:     now,
			})
		}
	}

	expired, err := db.ListExpiredPages(ctx, now)
	if err != nil {
		return nil, err
	}
	for i := range expired {
		page := &expired[i]
		if _, err := db.UnpublishArticle(ctx, page.ArticleNumber); err != nil {
			p.logger.Warn("expired page takedown failed",
				logfields.Tenant(t.ID), logfields.Article(page.ArticleNumber), logfields.Error(err))
			continue
		}
		if err := p.store.Delete(ctx, t.ID, pathrule.ArtifactPath(page.URLPath)); err != nil {
			p.logger.Warn("expired artifact removal failed",
				logfields.Tenant(t.ID), logfields.URLPath(page.URLPath), logfields.Error(err))
		}
		report.Unpublished++
		touched = append(touched, page)
		p.publishEvent(ctx, events.ArticleUnpublished{
			Tenant:        t.ID,
			ArticleNumber: page.ArticleNumber,
			URLPath:       page.URLPath,
			Timestamp:     now,
		})
	}

	if report.Published+report.Unpublished > 0 {
		if err := p.refreshTOC(ctx, t, db, now); err != nil {
			return report, err
		}
		p.purge(ctx, t, purgeList(t, touched...))
		p.logger.Info("sweep completed", logfields.Tenant(t.ID),
			slog.Int("published", report.Published), slog.Int("unpublished", report.Unpublished))
	}
	return report, nil
}

// writeArtifact composes the full document and writes it to the store,
// retrying transient failures.
func (p *Publisher) writeArtifact(ctx context.Context, t *tenant.Tenant, layout *model.Layout, page *model.PublishedPage) error {
	doc, err := render.Page(layout, page)
	if err != nil {
		return err
	}
	start := p.now()
	err = retry.Do(ctx, p.policy, p.logger, "write artifact", func(ctx context.Context) error {
		return p.store.Write(ctx, t.ID, pathrule.ArtifactPath(page.URLPath), []byte(doc))
	})
	p.recorder.ObserveStageDuration("store", p.now().Sub(start))
	return err
}

// RegenerateTOC rewrites the TOC document from the current set of
// published pages without touching page artifacts, then purges its CDN
// path. Used by the editor's TOC trigger and the nightly rebuild.
func (p *Publisher) RegenerateTOC(ctx context.Context, t *tenant.Tenant) error {
	db, err := p.manager.DB(t)
	if err != nil {
		return err
	}
	if err := p.refreshTOC(ctx, t, db, p.now()); err != nil {
		return err
	}
	p.purge(ctx, t, []string{strings.TrimRight(t.PublisherURL, "/") + pathrule.TocPath(t.PathPrefix)})
	return nil
}

func (p *Publisher) refreshTOC(ctx context.Context, t *tenant.Tenant, db *database.DB, now time.Time) error {
	start := p.now()
	pages, err := db.ListPagesByPrefix(ctx, t.PathPrefix)
	if err != nil {
		return err
	}
	err = toc.Write(ctx, p.store, t.ID, t.PathPrefix, pages, now)
	p.recorder.ObserveStageDuration("toc", p.now().Sub(start))
	return err
}

// purge asks the tenant's CDN to drop cached copies. Failures are
// logged, never returned: cached content expires on its own TTL.
func (p *Publisher) purge(ctx context.Context, t *tenant.Tenant, paths []string) {
	purger, err := p.purgerFor(t)
	if err != nil {
		p.logger.Warn("cdn provider unavailable", logfields.Tenant(t.ID), logfields.Error(err))
		return
	}
	if _, ok := purger.(cdn.Noop); ok {
		return
	}

	start := p.now()
	err = purger.Purge(ctx, paths)
	p.recorder.ObserveStageDuration("purge", p.now().Sub(start))
	p.recorder.IncCDNPurge(purger.Name(), err == nil)
	if err != nil {
		p.logger.Warn("cdn purge failed, cached content stays stale until TTL",
			logfields.Tenant(t.ID), logfields.Provider(purger.Name()), logfields.Error(err))
		return
	}
	p.logger.Debug("cdn purge completed",
		logfields.Tenant(t.ID), logfields.Provider(purger.Name()), slog.Int("paths", len(paths)))
}

func (p *Publisher) purgerFor(t *tenant.Tenant) (cdn.Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pr, ok := p.purgers[t.ID]; ok {
		return pr, nil
	}
	pr, err := p.newPurger(t.CDN)
	if err != nil {
		return nil, err
	}
	p.purgers[t.ID] = pr
	return pr, nil
}

func (p *Publisher) publishEvent(ctx context.Context, evt any) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, evt); err != nil {
		p.logger.Warn("event publish failed", logfields.Error(err))
	}
}

// purgeList derives the CDN purge targets for a set of pages plus the
// tenant's TOC document. A whole-site purge ("/") subsumes everything.
func purgeList(t *tenant.Tenant, pages ...*model.PublishedPage) []string {
	var paths []string
	for _, pg := range pages {
		for _, target := range pathrule.PurgePaths(t.PublisherURL, pg.URLPath) {
			if target == "/" {
				return []string{"/"}
			}
			paths = append(paths, target)
		}
	}
	return append(paths, strings.TrimRight(t.PublisherURL, "/")+pathrule.TocPath(t.PathPrefix))
}
