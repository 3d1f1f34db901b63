package dogears

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/dbx"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/pagination"
	"github.com/dmitrijs2005/eardogger/internal/timex"
)

const columns = `id, user_id, prefix, current, display_name, updated`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDogear(row scanner) (*models.Dogear, error) {
	var (
		d       models.Dogear
		name    sql.NullString
		updated int64
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Prefix, &d.Current, &name, &updated); err != nil {
		return nil, err
	}
	d.DisplayName = dbx.StringPtr(name)
	d.Updated = timex.FromMicro(updated)
	return &d, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, d *models.Dogear) (*models.Dogear, error) {
	query :=
		`INSERT INTO dogears (user_id, prefix, current, display_name, updated)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		d.UserID, d.Prefix, d.Current, dbx.NullString(d.DisplayName), timex.ToMicro(d.Updated),
	).Scan(&d.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, userID, id int64) (*models.Dogear, error) {
	query := `SELECT ` + columns + ` FROM dogears WHERE id = ? AND user_id = ?`

	d, err := scanDogear(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) ListPrefixes(ctx context.Context, userID int64) ([]PrefixRef, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, prefix FROM dogears WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []PrefixRef
	for rows.Next() {
		var p PrefixRef
		if err := rows.Scan(&p.ID, &p.Prefix); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) SetCurrent(ctx context.Context, userID, id int64, current string, at time.Time) (*models.Dogear, error) {
	query :=
		`UPDATE dogears SET current = ?, updated = ?
		 WHERE id = ? AND user_id = ?
		 RETURNING ` + columns

	d, err := scanDogear(r.db.QueryRowContext(ctx, query, current, timex.ToMicro(at), id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) ListPage(ctx context.Context, userID int64, page pagination.Page) ([]models.Dogear, error) {
	keyset, kargs := page.Keyset("updated", "id")
	query := `SELECT ` + columns + ` FROM dogears WHERE user_id = ?` + keyset +
		` ORDER BY updated DESC, id DESC LIMIT ?`

	args := append([]any{userID}, kargs...)
	args = append(args, page.Limit())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]models.Dogear, 0, page.Limit())
	for rows.Next() {
		d, err := scanDogear(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dogears WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteForUser(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dogears WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
