package tokens

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

const columns = `id, user_id, token_hash, scope, created, comment, last_used`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(row scanner) (*models.Token, error) {
	var (
		t        models.Token
		scope    string
		created  int64
		comment  sql.NullString
		lastUsed sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &scope, &created, &comment, &lastUsed); err != nil {
		return nil, err
	}
	t.Scope = models.ParseScope(scope)
	t.Created = timex.FromMicro(created)
	t.Comment = dbx.StringPtr(comment)
	t.LastUsed = dbx.MicroPtr(lastUsed)
	return &t, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, t *models.Token) (*models.Token, error) {
	query :=
		`INSERT INTO tokens (user_id, token_hash, scope, created, comment)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		t.UserID, t.TokenHash, t.Scope.String(), timex.ToMicro(t.Created), dbx.NullString(t.Comment),
	).Scan(&t.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetByHash(ctx context.Context, hash string) (*models.Token, error) {
	query := `SELECT ` + columns + ` FROM tokens WHERE token_hash = ?`

	t, err := scanToken(r.db.QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListPage(ctx context.Context, userID int64, page pagination.Page) ([]models.Token, error) {
	keyset, kargs := page.Keyset("created", "id")
	query := `SELECT ` + columns + ` FROM tokens WHERE user_id = ?` + keyset +
		` ORDER BY created DESC, id DESC LIMIT ?`

	args := append([]any{userID}, kargs...)
	args = append(args, page.Limit())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]models.Token, 0, page.Limit())
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = ? AND user_id = ?`, id, userID)
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// TouchLastUsed records a use of the token. A token deleted in the meantime
// is not an error.
func (r *SQLiteRepository) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE tokens SET last_used = ? WHERE id = ?`, timex.ToMicro(at), id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
