package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
)

const pageColumns = `id, article_number, version, title, url_path, summary, content,
	head_script, footer_script, banner_image, author_name, published, expires, updated_at`

// GetPageByPath returns the published page stored under a URL path.
func (d *DB) GetPageByPath(ctx context.Context, urlPath string) (*model.PublishedPage, error) {
	return scanPageRow(d.db.QueryRowContext(ctx, `
		SELECT `+pageColumns+` FROM published_pages WHERE url_path = ?`, urlPath))
}

// GetPageByNumber returns the published page for an article number.
func (d *DB) GetPageByNumber(ctx context.Context, number int64) (*model.PublishedPage, error) {
	return scanPageRow(d.db.QueryRowContext(ctx, `
		SELECT `+pageColumns+` FROM published_pages WHERE article_number = ?`, number))
}

// ListPages returns every published page ordered by URL path.
func (d *DB) ListPages(ctx context.Context) ([]model.PublishedPage, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM published_pages ORDER BY url_path`)
	if err != nil {
		return nil, errors.DatabaseError("list pages").WithCause(err).Build()
	}
	defer rows.Close()
	return scanPages(rows)
}

// ListPagesByPrefix returns published pages whose URL path falls under the
// given prefix, ordered by URL path. An empty prefix returns every page, so
// callers can pass a tenant's path prefix straight through.
func (d *DB) ListPagesByPrefix(ctx context.Context, prefix string) ([]model.PublishedPage, error) {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return d.ListPages(ctx)
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM published_pages
		WHERE url_path = ? OR url_path LIKE ? ORDER BY url_path`,
		prefix, prefix+"/%")
	if err != nil {
		return nil, errors.DatabaseError("list pages by prefix").WithCause(err).WithContext("prefix", prefix).Build()
	}
	defer rows.Close()
	return scanPages(rows)
}

// ListDuePages returns pages whose publish time has arrived but whose static
// artifact has not been written yet.
func (d *DB) ListDuePages(ctx context.Context, now time.Time) ([]model.PublishedPage, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM published_pages
		WHERE published <= ? AND rendered_at IS NULL ORDER BY published`, now.Unix())
	if err != nil {
		return nil, errors.DatabaseError("list due pages").WithCause(err).Build()
	}
	defer rows.Close()
	return scanPages(rows)
}

// ListExpiredPages returns pages whose expiry time has passed.
func (d *DB) ListExpiredPages(ctx context.Context, now time.Time) ([]model.PublishedPage, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM published_pages
		WHERE expires IS NOT NULL AND expires <= ? ORDER BY expires`, now.Unix())
	if err != nil {
		return nil, errors.DatabaseError("list expired pages").WithCause(err).Build()
	}
	defer rows.Close()
	return scanPages(rows)
}

// MarkRendered records that the static artifact for an article was written.
func (d *DB) MarkRendered(ctx context.Context, number int64, at time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE published_pages SET rendered_at = ? WHERE article_number = ?`, at.Unix(), number)
	if err != nil {
		return errors.DatabaseError("mark rendered").WithCause(err).WithContext("number", number).Build()
	}
	return nil
}

// UpdatePageContent replaces the stored body HTML of a published page.
// Rebuilds call this after re-rendering an article so the page row keeps
// matching the written artifact.
func (d *DB) UpdatePageContent(ctx context.Context, number int64, content string, at time.Time) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE published_pages SET content = ?, updated_at = ? WHERE article_number = ?`,
		content, at.Unix(), number)
	if err != nil {
		return errors.DatabaseError("update page content").WithCause(err).WithContext("number", number).Build()
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFoundError("published page not found").WithContext("number", number).Build()
	}
	return nil
}

func scanPageInto(s rowScanner, p *model.PublishedPage) error {
	var (
		published, updated int64
		expires            sql.NullInt64
	)
	err := s.Scan(&p.ID, &p.ArticleNumber, &p.Version, &p.Title, &p.URLPath, &p.Summary, &p.Content,
		&p.HeadScript, &p.FooterScript, &p.BannerImage, &p.AuthorName, &published, &expires, &updated)
	if err != nil {
		return err
	}
	p.Published = time.Unix(published, 0).UTC()
	p.Expires = optUnix(expires)
	p.UpdatedAt = time.Unix(updated, 0).UTC()
	return nil
}

func scanPageRow(row *sql.Row) (*model.PublishedPage, error) {
	var p model.PublishedPage
	if err := scanPageInto(row, &p); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("published page not found").Build()
		}
		return nil, errors.DatabaseError("scan published page").WithCause(err).Build()
	}
	return &p, nil
}

func scanPages(rows *sql.Rows) ([]model.PublishedPage, error) {
	var out []model.PublishedPage
	for rows.Next() {
		var p model.PublishedPage
		if err := scanPageInto(rows, &p); err != nil {
			return nil, errors.DatabaseError("scan page row").WithCause(err).Build()
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("iterate page rows").WithCause(err).Build()
	}
	return out, nil
}
