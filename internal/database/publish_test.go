package database

import (
	"testing"
	"time"

	"github.com/skycms/skycms/internal/foundation"
	"github.com/skycms/skycms/internal/foundation/errors"
)

func TestPublishVersionSetsTimestampWhenAbsent(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	a := newDraft(0, "Home", "root")
	if err := db.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}

	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	page, err := db.PublishVersion(ctx, a.Number, 1, "<html>home</html>", at)
	if err != nil {
		t.Fatalf("PublishVersion: %v", err)
	}

	if !page.Published.Equal(at) {
		t.Errorf("page published = %v, want %v", page.Published, at)
	}
	if page.Content != "<html>home</html>" {
		t.Errorf("page content = %q", page.Content)
	}

	got, err := db.GetArticleVersion(ctx, a.Number, 1)
	if err != nil {
		t.Fatalf("GetArticleVersion: %v", err)
	}
	if got.Published.IsNone() || !got.Published.Unwrap().Equal(at) {
		t.Errorf("article published = %v, want %v", got.Published, at)
	}
}

func TestPublishVersionKeepsExistingTimestamp(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	a := newDraft(0, "Home", "root")
	if err := db.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}

	first := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	if _, err := db.PublishVersion(ctx, a.Number, 1, "<v1/>", first); err != nil {
		t.Fatalf("first publish: %v", err)
	}

	// Republishing the same version must not move the timestamp.
	later := first.Add(48 * time.Hour)
	page, err := db.PublishVersion(ctx, a.Number, 1, "<v1 again/>", later)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if !page.Published.Equal(first) {
		t.Errorf("published moved to %v, want original %v", page.Published, first)
	}
}

func TestPublishVersionUnpublishesOlderVersions(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	a := newDraft(0, "News", "news")
	if err := db.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if _, err := db.PublishVersion(ctx, a.Number, 1, "<v1/>", time.Now()); err != nil {
		t.Fatalf("publish v1: %v", err)
	}

	edited := *a
	edited.Content = "newer"
	v2, err := db.SaveVersion(ctx, &edited)
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	if _, err := db.PublishVersion(ctx, a.Number, v2.Version, "<v2/>", time.Now()); err != nil {
		t.Fatalf("publish v2: %v", err)
	}

	v1, err := db.GetArticleVersion(ctx, a.Number, 1)
	if err != nil {
		t.Fatalf("GetArticleVersion v1: %v", err)
	}
	if v1.Published.IsSome() {
		t.Error("older version should have been unpublished")
	}

	// Exactly one page row, carrying v2 content.
	pages, err := db.ListPages(ctx)
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(pages))
	}
	if pages[0].Version != v2.Version || pages[0].Content != "<v2/>" {
		t.Errorf("page = v%d %q, want v%d <v2/>", pages[0].Version, pages[0].Content, v2.Version)
	}
}

func TestPublishVersionUnknownVersion(t *testing.T) {
	db := newTestDB(t)

	_, err := db.PublishVersion(t.Context(), 7, 3, "<x/>", time.Now())
	if err == nil {
		t.Fatal("expected error for unknown article version")
	}
	if !errors.HasCategory(err, errors.CategoryNotFound) {
		t.Errorf("error = %v, want not_found category", err)
	}
}

func TestUnpublishArticle(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	a := newDraft(0, "Temp", "temp")
	if err := db.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if _, err := db.PublishVersion(ctx, a.Number, 1, "<t/>", time.Now()); err != nil {
		t.Fatalf("PublishVersion: %v", err)
	}

	removed, err := db.UnpublishArticle(ctx, a.Number)
	if err != nil {
		t.Fatalf("UnpublishArticle: %v", err)
	}
	if removed == nil || removed.URLPath != "temp" {
		t.Fatalf("removed = %+v, want temp page", removed)
	}

	got, err := db.GetArticle(ctx, a.Number)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if got.Published.IsSome() {
		t.Error("article should be back to draft")
	}
	if _, err := db.GetPageByPath(ctx, "temp"); !errors.HasCategory(err, errors.CategoryNotFound) {
		t.Errorf("page lookup after unpublish = %v, want not_found", err)
	}
}

func TestUnpublishArticleWithoutPage(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	a := newDraft(0, "Draft only", "draft-only")
	if err := db.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}

	removed, err := db.UnpublishArticle(ctx, a.Number)
	if err != nil {
		t.Fatalf("UnpublishArticle: %v", err)
	}
	if removed != nil {
		t.Errorf("removed = %+v, want nil for never-published article", removed)
	}
}

func TestDueAndExpiredPages(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()
	now := time.Now().UTC().Truncate(time.Second)

	// Article published in the past: due until marked rendered.
	past := newDraft(0, "Past", "past")
	if err := db.CreateArticle(ctx, past); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if _, err := db.PublishVersion(ctx, past.Number, 1, "<p/>", now.Add(-time.Hour)); err != nil {
		t.Fatalf("publish past: %v", err)
	}

	// Article scheduled in the future: not yet due.
	future := newDraft(0, "Future", "future")
	if err := db.CreateArticle(ctx, future); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if _, err := db.PublishVersion(ctx, future.Number, 1, "<f/>", now.Add(time.Hour)); err != nil {
		t.Fatalf("publish future: %v", err)
	}

	due, err := db.ListDuePages(ctx, now)
	if err != nil {
		t.Fatalf("ListDuePages: %v", err)
	}
	if len(due) != 1 || due[0].URLPath != "past" {
		t.Fatalf("due = %+v, want only past", due)
	}

	if err := db.MarkRendered(ctx, past.Number, now); err != nil {
		t.Fatalf("MarkRendered: %v", err)
	}
	due, err = db.ListDuePages(ctx, now)
	if err != nil {
		t.Fatalf("ListDuePages after render: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("due after render = %+v, want none", due)
	}

	// Expired article.
	old := newDraft(0, "Old", "old")
	old.Expires = foundation.Some(now.Add(-time.Minute))
	if err := db.CreateArticle(ctx, old); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if _, err := db.PublishVersion(ctx, old.Number, 1, "<o/>", now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("publish old: %v", err)
	}

	expired, err := db.ListExpiredPages(ctx, now)
	if err != nil {
		t.Fatalf("ListExpiredPages: %v", err)
	}
	if len(expired) != 1 || expired[0].URLPath != "old" {
		t.Errorf("expired = %+v, want only old", expired)
	}
}

func TestListPagesByPrefix(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	for _, p := range []string{"docs/intro", "docs/setup", "blog/hello"} {
		a := newDraft(0, p, p)
		if err := db.CreateArticle(ctx, a); err != nil {
			t.Fatalf("CreateArticle %s: %v", p, err)
		}
		if _, err := db.PublishVersion(ctx, a.Number, 1, "<x/>", time.Now()); err != nil {
			t.Fatalf("publish %s: %v", p, err)
		}
	}

	docs, err := db.ListPagesByPrefix(ctx, "docs")
	if err != nil {
		t.Fatalf("ListPagesByPrefix: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs pages = %d, want 2", len(docs))
	}
	// ordered by url path
	if docs[0].URLPath != "docs/intro" || docs[1].URLPath != "docs/setup" {
		t.Errorf("order = %s, %s", docs[0].URLPath, docs[1].URLPath)
	}

	// prefixes arrive in whatever form the config carries
	slashed, err := db.ListPagesByPrefix(ctx, "/docs/")
	if err != nil {
		t.Fatalf("ListPagesByPrefix slashed: %v", err)
	}
	if len(slashed) != 2 {
		t.Errorf("slashed prefix pages = %d, want 2", len(slashed))
	}

	all, err := db.ListPagesByPrefix(ctx, "")
	if err != nil {
		t.Fatalf("ListPagesByPrefix empty: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("empty prefix pages = %d, want 3", len(all))
	}
}
