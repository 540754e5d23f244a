package publish

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skycms/skycms/internal/cdn"
	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/database"
	"github.com/skycms/skycms/internal/events"
	"github.com/skycms/skycms/internal/foundation"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
	"github.com/skycms/skycms/internal/render"
	"github.com/skycms/skycms/internal/retry"
	"github.com/skycms/skycms/internal/storage"
	"github.com/skycms/skycms/internal/tenant"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePurger struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakePurger) Name() string { return "fake" }

func (f *fakePurger) Purge(_ context.Context, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), paths...))
	return f.err
}

func (f *fakePurger) lastCall() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

type env struct {
	publisher *Publisher
	tenant    *tenant.Tenant
	db        *database.DB
	store     *storage.MemoryStore
	purger    *fakePurger
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cfg := &config.Config{
		Tenants: []*config.TenantConfig{{
			ID:           "acme",
			Hostname:     "edit.acme.example",
			DSN:          ":memory:",
			PublisherURL: "https://www.acme.example",
		}},
	}
	registry := tenant.NewRegistry(cfg)
	manager := tenant.NewManager(quietLogger())
	t.Cleanup(func() { _ = manager.Close() })

	store := storage.NewMemoryStore()
	p := NewPublisher(registry, manager, store,
		WithLogger(quietLogger()),
		WithRetryPolicy(retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, 3)),
	)
	purger := &fakePurger{}
	p.newPurger = func(*config.CDNConfig) (cdn.Provider, error) { return purger, nil }

	tn := registry.ByID("acme")
	db, err := manager.DB(tn)
	if err != nil {
		t.Fatalf("open tenant db: %v", err)
	}
	return &env{publisher: p, tenant: tn, db: db, store: store, purger: purger}
}

func (e *env) seedArticle(t *testing.T, urlPath, content string) *model.Article {
	t.Helper()
	a := &model.Article{
		Title:         "Title " + urlPath,
		URLPath:       urlPath,
		Content:       content,
		ContentFormat: model.FormatMarkdown,
		AuthorName:    "Ada",
	}
	if err := e.db.CreateArticle(t.Context(), a); err != nil {
		t.Fatalf("seed article: %v", err)
	}
	return a
}

func TestPublishWritesArtifactAndTOC(t *testing.T) {
	e := newEnv(t)
	a := e.seedArticle(t, "news/launch", "# Launch\n\nWe are live.")

	page, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{})
	if err != nil {
		t.Fatalf("PublishArticle failed: %v", err)
	}
	if page.Published.IsZero() {
		t.Error("published timestamp not set")
	}

	doc, err := e.store.Read(t.Context(), "acme", "/news/launch")
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	html := string(doc)
	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Error("artifact is not a full document")
	}
	if !strings.Contains(html, "<h1>Launch</h1>") {
		t.Errorf("rendered body missing from artifact:\n%s", html)
	}

	tocData, err := e.store.Read(t.Context(), "acme", "/toc.json")
	if err != nil {
		t.Fatalf("toc missing: %v", err)
	}
	if !strings.Contains(string(tocData), "/news/launch") {
		t.Errorf("toc does not list the page: %s", tocData)
	}

	// rendered_at was recorded, so the sweep has nothing left to do.
	due, err := e.db.ListDuePages(t.Context(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ListDuePages: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("expected no due pages, got %d", len(due))
	}
}

func TestPublishUnchangedContentSkipsPipeline(t *testing.T) {
	e := newEnv(t)

	a := &model.Article{
		Title:         "Guide",
		URLPath:       "docs/guide",
		Content:       "# Guide\n\nRead me.",
		ContentFormat: model.FormatMarkdown,
		AuthorName:    "Ada",
	}
	a.Fingerprint = render.Fingerprint(a)
	if err := e.db.CreateArticle(t.Context(), a); err != nil {
		t.Fatalf("create article: %v", err)
	}

	first, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{})
	if err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	writes := e.store.Calls().Write

	again, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{})
	if err != nil {
		t.Fatalf("republish failed: %v", err)
	}
	if got := e.store.Calls().Write; got != writes {
		t.Errorf("republish rewrote artifacts: %d writes, want %d", got, writes)
	}
	if again.Version != first.Version || again.URLPath != first.URLPath {
		t.Errorf("republish returned a different page: %+v", again)
	}

	// A lost artifact disables the skip.
	if err := e.store.Delete(t.Context(), "acme", "/docs/guide"); err != nil {
		t.Fatalf("delete artifact: %v", err)
	}
	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
		t.Fatalf("republish after artifact loss failed: %v", err)
	}
	if ok, _ := e.store.Exists(t.Context(), "acme", "/docs/guide"); !ok {
		t.Error("artifact not restored")
	}
}

func TestPublishRootWritesIndexAndPurgesSite(t *testing.T) {
	e := newEnv(t)
	a := e.seedArticle(t, "root", "Welcome home.")

	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
		t.Fatalf("PublishArticle failed: %v", err)
	}

	if ok, _ := e.store.Exists(t.Context(), "acme", "/index.html"); !ok {
		t.Error("front page artifact not at /index.html")
	}
	if got := e.purger.lastCall(); len(got) != 1 || got[0] != "/" {
		t.Errorf("expected whole-site purge, got %v", got)
	}
}

func TestPublishPurgesPageAndTOC(t *testing.T) {
	e := newEnv(t)
	a := e.seedArticle(t, "news/launch", "body")

	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
		t.Fatalf("PublishArticle failed: %v", err)
	}

	got := e.purger.lastCall()
	want := []string{"https://www.acme.example/news/launch", "https://www.acme.example/toc.json"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("purge paths = %v, want %v", got, want)
	}
}

func TestScheduledPublishDefersArtifact(t *testing.T) {
	e := newEnv(t)
	a := e.seedArticle(t, "news/soon", "Coming soon.")
	future := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)

	page, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, future)
	if err != nil {
		t.Fatalf("PublishArticle failed: %v", err)
	}
	if !page.Published.Equal(future) {
		t.Errorf("published = %v, want %v", page.Published, future)
	}
	if ok, _ := e.store.Exists(t.Context(), "acme", "/news/soon"); ok {
		t.Fatal("scheduled page must not have an artifact yet")
	}

	report, err := e.publisher.Sweep(t.Context(), e.tenant, future.Add(time.Minute))
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if report.Published != 1 {
		t.Errorf("sweep published = %d, want 1", report.Published)
	}
	if ok, _ := e.store.Exists(t.Context(), "acme", "/news/soon"); !ok {
		t.Error("sweep did not materialize the due page")
	}

	// A second sweep finds nothing.
	report, err = e.publisher.Sweep(t.Context(), e.tenant, future.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if report.Published != 0 {
		t.Errorf("second sweep published = %d, want 0", report.Published)
	}
}

func TestPublishSupersedesOlderVersions(t *testing.T) {
	e := newEnv(t)
	a := e.seedArticle(t, "news/one", "version one")

	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
		t.Fatalf("publish v1 failed: %v", err)
	}

	draft := *a
	draft.Title = "Second take"
	draft.URLPath = "news/two"
	draft.Content = "<p>version two</p>"
	draft.ContentFormat = model.FormatHTML
	v2, err := e.db.SaveVersion(t.Context(), &draft)
	if err != nil {
		t.Fatalf("SaveVersion failed: %v", err)
	}

	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, v2.Version, time.Time{}); err != nil {
		t.Fatalf("publish v2 failed: %v", err)
	}

	page, err := e.db.GetPageByNumber(t.Context(), a.Number)
	if err != nil {
		t.Fatalf("GetPageByNumber: %v", err)
	}
	if page.Version != v2.Version || page.URLPath != "news/two" {
		t.Errorf("live page is v%d at %q, want v%d at news/two", page.Version, page.URLPath, v2.Version)
	}

	if ok, _ := e.store.Exists(t.Context(), "acme", "/news/one"); ok {
		t.Error("artifact for the superseded URL path was not removed")
	}
	if ok, _ := e.store.Exists(t.Context(), "acme", "/news/two"); !ok {
		t.Error("artifact for the new URL path missing")
	}

	v1, err := e.db.GetArticleVersion(t.Context(), a.Number, 1)
	if err != nil {
		t.Fatalf("GetArticleVersion: %v", err)
	}
	if v1.Published.IsSome() {
		t.Error("older version still carries a publish timestamp")
	}
}

func TestUnpublishRemovesPageAndArtifact(t *testing.T) {
	e := newEnv(t)
	a := e.seedArticle(t, "news/bye", "farewell")
	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	page, err := e.publisher.UnpublishArticle(t.Context(), e.tenant, a.Number)
	if err != nil {
		t.Fatalf("UnpublishArticle failed: %v", err)
	}
	if page == nil || page.URLPath != "news/bye" {
		t.Fatalf("unexpected removed page: %+v", page)
	}

	if ok, _ := e.store.Exists(t.Context(), "acme", "/news/bye"); ok {
		t.Error("artifact still present after unpublish")
	}
	if _, err := e.db.GetPageByNumber(t.Context(), a.Number); !errors.HasCategory(err, errors.CategoryNotFound) {
		t.Errorf("expected page row gone, got %v", err)
	}
	live, err := e.db.GetArticleVersion(t.Context(), a.Number, a.Version)
	if err != nil {
		t.Fatalf("GetArticleVersion: %v", err)
	}
	if live.Published.IsSome() {
		t.Error("article still carries a publish timestamp")
	}

	tocData, err := e.store.Read(t.Context(), "acme", "/toc.json")
	if err != nil {
		t.Fatalf("toc missing: %v", err)
	}
	if strings.Contains(string(tocData), "news/bye") {
		t.Errorf("toc still lists the removed page: %s", tocData)
	}
}

func TestUnpublishWithoutLivePage(t *testing.T) {
	e := newEnv(t)
	a := e.seedArticle(t, "news/draft", "never published")

	page, err := e.publisher.UnpublishArticle(t.Context(), e.tenant, a.Number)
	if err != nil {
		t.Fatalf("UnpublishArticle failed: %v", err)
	}
	if page != nil {
		t.Errorf("expected nil page, got %+v", page)
	}
}

func TestRegenerateTOCRestoresDocument(t *testing.T) {
	e := newEnv(t)
	a := e.seedArticle(t, "news/launch", "body")
	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
		t.Fatalf("PublishArticle failed: %v", err)
	}
	if err := e.store.Delete(t.Context(), "acme", "/toc.json"); err != nil {
		t.Fatalf("delete toc: %v", err)
	}

	if err := e.publisher.RegenerateTOC(t.Context(), e.tenant); err != nil {
		t.Fatalf("RegenerateTOC failed: %v", err)
	}

	tocData, err := e.store.Read(t.Context(), "acme", "/toc.json")
	if err != nil {
		t.Fatalf("toc missing after regeneration: %v", err)
	}
	if !strings.Contains(string(tocData), "/news/launch") {
		t.Errorf("toc does not list the page: %s", tocData)
	}
	if got := e.purger.lastCall(); len(got) != 1 || got[0] != "https://www.acme.example/toc.json" {
		t.Errorf("purge paths = %v, want only the toc document", got)
	}
}

func TestRebuildAppliesNewLayout(t *testing.T) {
	e := newEnv(t)
	a1 := e.seedArticle(t, "docs/alpha", "alpha body")
	a2 := e.seedArticle(t, "docs/beta", "beta body")
	for _, a := range []*model.Article{a1, a2} {
		if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}

	layout := &model.Layout{Name: "default", IsDefault: true, HeaderHTML: "<header>FRESH</header>"}
	if err := e.db.SaveLayout(t.Context(), layout); err != nil {
		t.Fatalf("SaveLayout failed: %v", err)
	}

	report, err := e.publisher.RebuildSite(t.Context(), e.tenant)
	if err != nil {
		t.Fatalf("RebuildSite failed: %v", err)
	}
	if report.Pages != 2 || report.Failed != 0 {
		t.Errorf("report = %+v, want 2 pages, 0 failed", report)
	}

	for _, path := range []string{"/docs/alpha", "/docs/beta"} {
		doc, err := e.store.Read(t.Context(), "acme", path)
		if err != nil {
			t.Fatalf("artifact %s missing: %v", path, err)
		}
		if !strings.Contains(string(doc), "FRESH") {
			t.Errorf("artifact %s not rebuilt with new layout", path)
		}
	}

	if got := e.purger.lastCall(); len(got) != 1 || got[0] != "/" {
		t.Errorf("rebuild should purge the whole site, got %v", got)
	}
}

func TestRebuildCountsFailures(t *testing.T) {
	e := newEnv(t)
	a := e.seedArticle(t, "news/gone", "body")
	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	// Remove the source versions; the page row stays behind.
	if err := e.db.DeleteArticle(t.Context(), a.Number); err != nil {
		t.Fatalf("DeleteArticle failed: %v", err)
	}

	report, err := e.publisher.RebuildSite(t.Context(), e.tenant)
	if err != nil {
		t.Fatalf("RebuildSite failed: %v", err)
	}
	if report.Pages != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want 1 page, 1 failed", report)
	}
}

func TestPublishRetriesTransientStorageFailures(t *testing.T) {
	e := newEnv(t)
	a := e.seedArticle(t, "news/flaky", "body")
	e.store.FailNextWrites(2)

	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
		t.Fatalf("publish should survive transient failures: %v", err)
	}
	if ok, _ := e.store.Exists(t.Context(), "acme", "/news/flaky"); !ok {
		t.Error("artifact missing after retries")
	}
	if calls := e.store.Calls(); calls.Write < 3 {
		t.Errorf("expected at least 3 write attempts, got %d", calls.Write)
	}
}

func TestPurgeFailureDoesNotFailPublish(t *testing.T) {
	e := newEnv(t)
	e.purger.err = errors.CDNError("simulated outage").Build()
	a := e.seedArticle(t, "news/cached", "body")

	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
		t.Fatalf("publish must not fail on purge errors: %v", err)
	}
	if ok, _ := e.store.Exists(t.Context(), "acme", "/news/cached"); !ok {
		t.Error("artifact missing")
	}
}

func TestSweepTakesDownExpiredPages(t *testing.T) {
	e := newEnv(t)
	a := e.seedArticle(t, "news/temp", "short-lived")
	a.Expires = foundation.Some(time.Now().UTC().Add(time.Hour).Truncate(time.Second))
	if err := e.db.UpdateArticle(t.Context(), a); err != nil {
		t.Fatalf("UpdateArticle failed: %v", err)
	}
	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	report, err := e.publisher.Sweep(t.Context(), e.tenant, time.Now().UTC().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if report.Unpublished != 1 {
		t.Errorf("sweep unpublished = %d, want 1", report.Unpublished)
	}
	if ok, _ := e.store.Exists(t.Context(), "acme", "/news/temp"); ok {
		t.Error("expired artifact still present")
	}
	if _, err := e.db.GetPageByNumber(t.Context(), a.Number); !errors.HasCategory(err, errors.CategoryNotFound) {
		t.Errorf("expected page row gone, got %v", err)
	}
}

func TestPublishEmitsEvent(t *testing.T) {
	e := newEnv(t)
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	e.publisher.bus = bus

	ch, unsubscribe := events.Subscribe[events.ArticlePublished](bus, 4)
	defer unsubscribe()

	a := e.seedArticle(t, "news/wired", "body")
	if _, err := e.publisher.PublishArticle(t.Context(), e.tenant, a.Number, a.Version, time.Time{}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case evt := <-ch:
		if evt.Tenant != "acme" || evt.URLPath != "news/wired" {
			t.Errorf("unexpected event: %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no ArticlePublished event received")
	}
}
