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

const articleColumns = `id, number, version, title, url_path, summary, content, content_format,
	head_script, footer_script, banner_image, author_name, published, expires, fingerprint,
	created_at, updated_at`

// CreateArticle inserts the first version of a new article. A zero Number is
// assigned the next free number; ID and timestamps are filled in.
func (d *DB) CreateArticle(ctx context.Context, a *model.Article) error {
	if a.Number == 0 {
		next, err := d.NextNumber(ctx)
		if err != nil {
			return err
		}
		a.Number = next
	}
	if a.Version == 0 {
		a.Version = 1
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if res := a.Validate(); !res.Valid {
		return res.ToError()
	}
	return d.insertArticle(ctx, d.db, a)
}

// SaveVersion inserts a new draft version of an existing article, copying the
// given content fields. The new version starts unpublished.
func (d *DB) SaveVersion(ctx context.Context, a *model.Article) (*model.Article, error) {
	maxVersion, err := d.MaxVersion(ctx, a.Number)
	if err != nil {
		return nil, err
	}
	if maxVersion == 0 {
		return nil, errors.NotFoundError(fmt.Sprintf("article %d does not exist", a.Number)).Build()
	}

	next := *a
	next.ID = uuid.NewString()
	next.Version = maxVersion + 1
	next.Published = foundation.None[time.Time]()
	now := time.Now().UTC()
	next.CreatedAt = now
	next.UpdatedAt = now

	if res := next.Validate(); !res.Valid {
		return nil, res.ToError()
	}
	if err := d.insertArticle(ctx, d.db, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (d *DB) insertArticle(ctx context.Context, ex execer, a *model.Article) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO articles (`+articleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Number, a.Version, a.Title, a.URLPath, a.Summary, a.Content, string(a.ContentFormat),
		a.HeadScript, a.FooterScript, a.BannerImage, a.AuthorName,
		nullUnix(a.Published), nullUnix(a.Expires), a.Fingerprint,
		a.CreatedAt.Unix(), a.UpdatedAt.Unix(),
	)
	if err != nil {
		return errors.DatabaseError("insert article").
			WithCause(err).
			WithContext("number", a.Number).
			WithContext("version", a.Version).
			Build()
	}
	return nil
}

// UpdateArticle overwrites the content fields of an existing version in place.
func (d *DB) UpdateArticle(ctx context.Context, a *model.Article) error {
	if res := a.Validate(); !res.Valid {
		return res.ToError()
	}
	a.UpdatedAt = time.Now().UTC()

	result, err := d.db.ExecContext(ctx, `
		UPDATE articles SET title = ?, url_path = ?, summary = ?, content = ?, content_format = ?,
			head_script = ?, footer_script = ?, banner_image = ?, author_name = ?,
			expires = ?, fingerprint = ?, updated_at = ?
		WHERE number = ? AND version = ?`,
		a.Title, a.URLPath, a.Summary, a.Content, string(a.ContentFormat),
		a.HeadScript, a.FooterScript, a.BannerImage, a.AuthorName,
		nullUnix(a.Expires), a.Fingerprint, a.UpdatedAt.Unix(),
		a.Number, a.Version,
	)
	if err != nil {
		return errors.DatabaseError("update article").WithCause(err).WithContext("number", a.Number).Build()
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("update article rows").WithCause(err).Build()
	}
	if affected == 0 {
		return errors.NotFoundError(fmt.Sprintf("article %d version %d not found", a.Number, a.Version)).Build()
	}
	return nil
}

// GetArticle returns the latest version of the article with the given number.
func (d *DB) GetArticle(ctx context.Context, number int64) (*model.Article, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE number = ? ORDER BY version DESC LIMIT 1`, number)
	return scanArticle(row, fmt.Sprintf("article %d", number))
}

// GetArticleVersion returns one specific version of an article.
func (d *DB) GetArticleVersion(ctx context.Context, number int64, version int) (*model.Article, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE number = ? AND version = ?`, number, version)
	return scanArticle(row, fmt.Sprintf("article %d version %d", number, version))
}

// ListArticles returns the latest version of every article, ordered by number.
func (d *DB) ListArticles(ctx context.Context) ([]model.Article, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+articleColumns+` FROM articles a
		WHERE a.version = (SELECT MAX(version) FROM articles WHERE number = a.number)
		ORDER BY a.number`)
	if err != nil {
		return nil, errors.DatabaseError("list articles").WithCause(err).Build()
	}
	defer rows.Close()
	return scanArticles(rows)
}

// ListVersions returns every version of one article, newest first.
func (d *DB) ListVersions(ctx context.Context, number int64) ([]model.Article, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE number = ? ORDER BY version DESC`, number)
	if err != nil {
		return nil, errors.DatabaseError("list versions").WithCause(err).WithContext("number", number).Build()
	}
	defer rows.Close()
	return scanArticles(rows)
}

// MaxVersion returns the highest version for an article number, 0 if none exist.
func (d *DB) MaxVersion(ctx context.Context, number int64) (int, error) {
	var v sql.NullInt64
	err := d.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM articles WHERE number = ?`, number).Scan(&v)
	if err != nil {
		return 0, errors.DatabaseError("max version").WithCause(err).WithContext("number", number).Build()
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

// NextNumber returns the next unused article number.
func (d *DB) NextNumber(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	err := d.db.QueryRowContext(ctx, `SELECT MAX(number) FROM articles`).Scan(&n)
	if err != nil {
		return 0, errors.DatabaseError("next number").WithCause(err).Build()
	}
	if !n.Valid {
		return 1, nil
	}
	return n.Int64 + 1, nil
}

// DeleteArticle removes every version of an article. The published page row,
// if any, is removed by the unpublish flow before deletion.
func (d *DB) DeleteArticle(ctx context.Context, number int64) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM articles WHERE number = ?`, number)
	if err != nil {
		return errors.DatabaseError("delete article").WithCause(err).WithContext("number", number).Build()
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("delete article rows").WithCause(err).Build()
	}
	if affected == 0 {
		return errors.NotFoundError(fmt.Sprintf("article %d not found", number)).Build()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticleInto(s rowScanner, a *model.Article) error {
	var (
		format             string
		published, expires sql.NullInt64
		created, updated   int64
	)
	err := s.Scan(&a.ID, &a.Number, &a.Version, &a.Title, &a.URLPath, &a.Summary, &a.Content, &format,
		&a.HeadScript, &a.FooterScript, &a.BannerImage, &a.AuthorName,
		&published, &expires, &a.Fingerprint, &created, &updated)
	if err != nil {
		return err
	}
	a.ContentFormat = model.ContentFormat(format)
	a.Published = optUnix(published)
	a.Expires = optUnix(expires)
	a.CreatedAt = time.Unix(created, 0).UTC()
	a.UpdatedAt = time.Unix(updated, 0).UTC()
	return nil
}

func scanArticle(row *sql.Row, what string) (*model.Article, error) {
	var a model.Article
	if err := scanArticleInto(row, &a); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError(what + " not found").Build()
		}
		return nil, errors.DatabaseError("scan "+what).WithCause(err).Build()
	}
	return &a, nil
}

func scanArticles(rows *sql.Rows) ([]model.Article, error) {
	var out []model.Article
	for rows.Next() {
		var a model.Article
		if err := scanArticleInto(rows, &a); err != nil {
			return nil, errors.DatabaseError("scan article row").WithCause(err).Build()
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("iterate article rows").WithCause(err).Build()
	}
	return out, nil
}
