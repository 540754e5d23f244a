package database

import (
	"testing"
	"time"

	"github.com/skycms/skycms/internal/foundation"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newDraft(number int64, title, urlPath string) *model.Article {
	return &model.Article{
		Number:        number,
		Title:         title,
		URLPath:       urlPath,
		Content:       "# " + title,
		ContentFormat: model.FormatMarkdown,
	}
}

func TestCreateAndGetArticle(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	a := newDraft(0, "Home", "root")
	if err := db.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if a.Number != 1 {
		t.Errorf("assigned number = %d, want 1", a.Number)
	}
	if a.Version != 1 {
		t.Errorf("assigned version = %d, want 1", a.Version)
	}
	if a.ID == "" {
		t.Error("ID should be assigned")
	}

	got, err := db.GetArticle(ctx, a.Number)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if got.Title != "Home" || got.URLPath != "root" {
		t.Errorf("got = %+v", got)
	}
	if got.Published.IsSome() {
		t.Error("new article should be a draft")
	}
}

func TestGetArticleNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetArticle(t.Context(), 999)
	if err == nil {
		t.Fatal("expected not-found error")
	}
	if !errors.HasCategory(err, errors.CategoryNotFound) {
		t.Errorf("error category = %v, want not_found", err)
	}
}

func TestNextNumberSequence(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	n, err := db.NextNumber(ctx)
	if err != nil || n != 1 {
		t.Fatalf("NextNumber on empty db = %d, %v; want 1", n, err)
	}

	for i := range 3 {
		a := newDraft(0, "A", "root")
		a.URLPath = "p" + string(rune('a'+i))
		if err := db.CreateArticle(ctx, a); err != nil {
			t.Fatalf("CreateArticle %d: %v", i, err)
		}
	}
	n, err = db.NextNumber(ctx)
	if err != nil || n != 4 {
		t.Fatalf("NextNumber = %d, %v; want 4", n, err)
	}
}

func TestSaveVersionCreatesDraft(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	a := newDraft(0, "About", "about")
	if err := db.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if _, err := db.PublishVersion(ctx, a.Number, 1, "<html/>", time.Now()); err != nil {
		t.Fatalf("PublishVersion: %v", err)
	}

	edited := *a
	edited.Content = "updated content"
	v2, err := db.SaveVersion(ctx, &edited)
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	if v2.Version != 2 {
		t.Errorf("new version = %d, want 2", v2.Version)
	}
	if v2.Published.IsSome() {
		t.Error("new version should start unpublished")
	}

	versions, err := db.ListVersions(ctx, a.Number)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(versions))
	}
	// newest first
	if versions[0].Version != 2 || versions[1].Version != 1 {
		t.Errorf("version order = %d,%d", versions[0].Version, versions[1].Version)
	}
}

func TestSaveVersionUnknownArticle(t *testing.T) {
	db := newTestDB(t)

	ghost := newDraft(42, "Ghost", "ghost")
	if _, err := db.SaveVersion(t.Context(), ghost); err == nil {
		t.Fatal("SaveVersion for unknown article should fail")
	}
}

func TestListArticlesReturnsLatestVersions(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	a := newDraft(0, "One", "one")
	if err := db.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	b := newDraft(0, "Two", "two")
	if err := db.CreateArticle(ctx, b); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}

	edited := *a
	edited.Title = "One v2"
	if _, err := db.SaveVersion(ctx, &edited); err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}

	list, err := db.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("articles = %d, want 2", len(list))
	}
	if list[0].Title != "One v2" || list[0].Version != 2 {
		t.Errorf("list[0] = %s v%d, want One v2 v2", list[0].Title, list[0].Version)
	}
}

func TestUpdateArticleInPlace(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	a := newDraft(0, "Draft", "draft")
	if err := db.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}

	a.Content = "revised"
	a.Expires = foundation.Some(time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second))
	if err := db.UpdateArticle(ctx, a); err != nil {
		t.Fatalf("UpdateArticle: %v", err)
	}

	got, err := db.GetArticleVersion(ctx, a.Number, a.Version)
	if err != nil {
		t.Fatalf("GetArticleVersion: %v", err)
	}
	if got.Content != "revised" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Expires.IsNone() {
		t.Error("expires should round-trip")
	}
}

func TestDeleteArticle(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()

	a := newDraft(0, "Doomed", "doomed")
	if err := db.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if err := db.DeleteArticle(ctx, a.Number); err != nil {
		t.Fatalf("DeleteArticle: %v", err)
	}
	if err := db.DeleteArticle(ctx, a.Number); err == nil {
		t.Error("second delete should report not found")
	}
}
