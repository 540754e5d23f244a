// Package database provides the per-tenant SQLite storage layer: article
// versions, published pages, layouts, and contact messages.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/skycms/skycms/internal/foundation"
)

// DB wraps a tenant database handle with the CMS schema applied.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) a tenant database and applies the schema.
// Use ":memory:" for an in-memory database, or a DSN like "file:tenant.db".
func Open(dsn string) (*DB, error) {
	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer, and every pooled connection to a
	// ":memory:" DSN would get its own empty database.
	handle.SetMaxOpenConns(1)

	d := &DB{db: handle}
	if err := d.initialize(); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return d, nil
}

func (d *DB) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		number INTEGER NOT NULL,
		version INTEGER NOT NULL,
		title TEXT NOT NULL,
		url_path TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		content_format TEXT NOT NULL DEFAULT 'markdown',
		head_script TEXT NOT NULL DEFAULT '',
		footer_script TEXT NOT NULL DEFAULT '',
		banner_image TEXT NOT NULL DEFAULT '',
		author_name TEXT NOT NULL DEFAULT '',
		published INTEGER,
		expires INTEGER,
		fingerprint TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(number, version)
	);
	CREATE INDEX IF NOT EXISTS idx_articles_number ON articles(number);
	CREATE INDEX IF NOT EXISTS idx_articles_url_path ON articles(url_path);
	CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published);

	CREATE TABLE IF NOT EXISTS published_pages (
		id TEXT PRIMARY KEY,
		article_number INTEGER NOT NULL UNIQUE,
		version INTEGER NOT NULL,
		title TEXT NOT NULL,
		url_path TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		head_script TEXT NOT NULL DEFAULT '',
		footer_script TEXT NOT NULL DEFAULT '',
		banner_image TEXT NOT NULL DEFAULT '',
		author_name TEXT NOT NULL DEFAULT '',
		published INTEGER NOT NULL,
		expires INTEGER,
		rendered_at INTEGER,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pages_url_path ON published_pages(url_path);
	CREATE INDEX IF NOT EXISTS idx_pages_published ON published_pages(published);

	CREATE TABLE IF NOT EXISTS layouts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		is_default INTEGER NOT NULL DEFAULT 0,
		head TEXT NOT NULL DEFAULT '',
		header_html TEXT NOT NULL DEFAULT '',
		footer_html TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contact_messages (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		remote_ip TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	`
	_, err := d.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// nullUnix converts an optional time to a nullable unix-seconds column value.
func nullUnix(t foundation.Option[time.Time]) sql.NullInt64 {
	if t.IsNone() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unwrap().Unix(), Valid: true}
}

// optUnix converts a nullable unix-seconds column value back to an optional time.
func optUnix(n sql.NullInt64) foundation.Option[time.Time] {
	if !n.Valid {
		return foundation.None[time.Time]()
	}
	return foundation.Some(time.Unix(n.Int64, 0).UTC())
}
