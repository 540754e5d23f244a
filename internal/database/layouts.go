package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/model"
)

const layoutColumns = `id, name, is_default, head, header_html, footer_html, updated_at`

// DefaultLayout returns the layout flagged as default.
func (d *DB) DefaultLayout(ctx context.Context) (*model.Layout, error) {
	return scanLayoutRow(d.db.QueryRowContext(ctx, `
		SELECT `+layoutColumns+` FROM layouts WHERE is_default = 1 LIMIT 1`))
}

// GetLayout returns a layout by name.
func (d *DB) GetLayout(ctx context.Context, name string) (*model.Layout, error) {
	return scanLayoutRow(d.db.QueryRowContext(ctx, `
		SELECT `+layoutColumns+` FROM layouts WHERE name = ?`, name))
}

// ListLayouts returns all layouts ordered by name.
func (d *DB) ListLayouts(ctx context.Context) ([]model.Layout, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+layoutColumns+` FROM layouts ORDER BY name`)
	if err != nil {
		return nil, errors.DatabaseError("list layouts").WithCause(err).Build()
	}
	defer rows.Close()

	var out []model.Layout
	for rows.Next() {
		var l model.Layout
		if err := scanLayoutInto(rows, &l); err != nil {
			return nil, errors.DatabaseError("scan layout row").WithCause(err).Build()
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("iterate layout rows").WithCause(err).Build()
	}
	return out, nil
}

// SaveLayout upserts a layout by name. When the layout is flagged default,
// the flag is cleared on every other layout in the same transaction.
func (d *DB) SaveLayout(ctx context.Context, l *model.Layout) error {
	if res := l.Validate(); !res.Valid {
		return res.ToError()
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.UpdatedAt = time.Now().UTC()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("begin layout transaction").WithCause(err).Build()
	}
	defer func() { _ = tx.Rollback() }()

	if l.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE layouts SET is_default = 0 WHERE name != ?`, l.Name); err != nil {
			return errors.DatabaseError("clear default layouts").WithCause(err).Build()
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO layouts (`+layoutColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			is_default = excluded.is_default,
			head = excluded.head,
			header_html = excluded.header_html,
			footer_html = excluded.footer_html,
			updated_at = excluded.updated_at`,
		l.ID, l.Name, boolInt(l.IsDefault), l.Head, l.HeaderHTML, l.FooterHTML, l.UpdatedAt.Unix())
	if err != nil {
		return errors.DatabaseError("save layout").WithCause(err).WithContext("name", l.Name).Build()
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("commit layout transaction").WithCause(err).Build()
	}
	return nil
}

// DeleteLayout removes a layout by name.
func (d *DB) DeleteLayout(ctx context.Context, name string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM layouts WHERE name = ?`, name)
	if err != nil {
		return errors.DatabaseError("delete layout").WithCause(err).WithContext("name", name).Build()
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("delete layout rows").WithCause(err).Build()
	}
	if affected == 0 {
		return errors.NotFoundError("layout " + name + " not found").Build()
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanLayoutInto(s rowScanner, l *model.Layout) error {
	var (
		isDefault int
		updated   int64
	)
	if err := s.Scan(&l.ID, &l.Name, &isDefault, &l.Head, &l.HeaderHTML, &l.FooterHTML, &updated); err != nil {
		return err
	}
	l.IsDefault = isDefault != 0
	l.UpdatedAt = time.Unix(updated, 0).UTC()
	return nil
}

func scanLayoutRow(row *sql.Row) (*model.Layout, error) {
	var l model.Layout
	if err := scanLayoutInto(row, &l); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("layout not found").Build()
		}
		return nil, errors.DatabaseError("scan layout").WithCause(err).Build()
	}
	return &l, nil
}
