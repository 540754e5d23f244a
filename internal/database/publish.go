package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skycms/skycms/internal/foundation"
	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
)

// PublishVersion runs the publish state transition for one article version in
// a single transaction:
//
//  1. set Published on the target version if absent (otherwise keep it),
//  2. null Published on older versions of the same article,
//  3. delete any superseded published_pages rows for the article number,
//  4. insert the new published_pages row carrying the rendered HTML.
//
// It returns the inserted page. renderedHTML is the article body produced by
// the render pipeline (the layout shell is applied when the artifact is
// written); publishAt is used only when the version has no publish timestamp
// yet.
func (d *DB) PublishVersion(ctx context.Context, number int64, version int, renderedHTML string, publishAt time.Time) (*model.PublishedPage, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.DatabaseError("begin publish transaction").WithCause(err).Build()
	}
	defer func() { _ = tx.Rollback() }()

	var a model.Article
	row := tx.QueryRowContext(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE number = ? AND version = ?`, number, version)
	if err := scanArticleInto(row, &a); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError(fmt.Sprintf("article %d version %d not found", number, version)).Build()
		}
		return nil, errors.DatabaseError("load article for publish").WithCause(err).Build()
	}

	now := time.Now().UTC()
	if a.Published.IsNone() {
		a.Published = foundation.Some(publishAt.UTC())
		if _, err := tx.ExecContext(ctx, `
			UPDATE articles SET published = ?, updated_at = ? WHERE number = ? AND version = ?`,
			a.Published.Unwrap().Unix(), now.Unix(), number, version); err != nil {
			return nil, errors.DatabaseError("set publish timestamp").WithCause(err).Build()
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE articles SET published = NULL, updated_at = ?
		WHERE number = ? AND version < ? AND published IS NOT NULL`,
		now.Unix(), number, version); err != nil {
		return nil, errors.DatabaseError("unpublish older versions").WithCause(err).Build()
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM published_pages WHERE article_number = ?`, number); err != nil {
		return nil, errors.DatabaseError("delete superseded pages").WithCause(err).Build()
	}

	page := &model.PublishedPage{
		ID:            uuid.NewString(),
		ArticleNumber: a.Number,
		Version:       a.Version,
		Title:         a.Title,
		URLPath:       a.URLPath,
		Summary:       a.Summary,
		Content:       renderedHTML,
		HeadScript:    a.HeadScript,
		FooterScript:  a.FooterScript,
		BannerImage:   a.BannerImage,
		AuthorName:    a.AuthorName,
		Published:     a.Published.Unwrap(),
		Expires:       a.Expires,
		UpdatedAt:     now,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO published_pages (id, article_number, version, title, url_path, summary, content,
			head_script, footer_script, banner_image, author_name, published, expires, rendered_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		page.ID, page.ArticleNumber, page.Version, page.Title, page.URLPath, page.Summary, page.Content,
		page.HeadScript, page.FooterScript, page.BannerImage, page.AuthorName,
		page.Published.Unix(), nullUnix(page.Expires), page.UpdatedAt.Unix(),
	); err != nil {
		return nil, errors.DatabaseError("insert published page").WithCause(err).Build()
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.DatabaseError("commit publish transaction").WithCause(err).Build()
	}
	return page, nil
}

// UnpublishArticle clears the publish timestamp on every version of the
// article and removes its published page row. It returns the removed page so
// the caller can delete the static artifact and purge the CDN, or nil when
// the article had no live page.
func (d *DB) UnpublishArticle(ctx context.Context, number int64) (*model.PublishedPage, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.DatabaseError("begin unpublish transaction").WithCause(err).Build()
	}
	defer func() { _ = tx.Rollback() }()

	page, err := scanPageRow(tx.QueryRowContext(ctx, `
		SELECT `+pageColumns+` FROM published_pages WHERE article_number = ?`, number))
	if err != nil && !errors.HasCategory(err, errors.CategoryNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE articles SET published = NULL, updated_at = ?
		WHERE number = ? AND published IS NOT NULL`, now.Unix(), number); err != nil {
		return nil, errors.DatabaseError("clear publish timestamps").WithCause(err).Build()
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM published_pages WHERE article_number = ?`, number); err != nil {
		return nil, errors.DatabaseError("delete published page").WithCause(err).Build()
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.DatabaseError("commit unpublish transaction").WithCause(err).Build()
	}
	return page, nil
}
