package sessions

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

const columns = `id, session_id, user_id, csrf_token, expires, user_agent, created`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		s                models.Session
		expires, created int64
		ua               sql.NullString
	)
	if err := row.Scan(&s.ID, &s.SessionID, &s.UserID, &s.CSRFToken, &expires, &ua, &created); err != nil {
		return nil, err
	}
	s.Expires = timex.FromMicro(expires)
	s.Created = timex.FromMicro(created)
	s.UserAgent = dbx.StringPtr(ua)
	return &s, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	query :=
		`INSERT INTO sessions (session_id, user_id, csrf_token, expires, user_agent, created)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		s.SessionID, s.UserID, s.CSRFToken, timex.ToMicro(s.Expires), dbx.NullString(s.UserAgent), timex.ToMicro(s.Created),
	).Scan(&s.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `SELECT ` + columns + ` FROM sessions WHERE session_id = ?`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) ListPage(ctx context.Context, userID int64, page pagination.Page) ([]models.Session, error) {
	keyset, kargs := page.Keyset("created", "id")
	query := `SELECT ` + columns + ` FROM sessions WHERE user_id = ?` + keyset +
		` ORDER BY created DESC, id DESC LIMIT ?`

	args := append([]any{userID}, kargs...)
	args = append(args, page.Limit())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]models.Session, 0, page.Limit())
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
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

// DeleteBySessionID is idempotent: logging out twice is not an error.
func (r *SQLiteRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) deleteWhere(ctx context.Context, where string, arg any) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE `+where, arg)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteForUser(ctx context.Context, userID int64) (int64, error) {
	return r.deleteWhere(ctx, `user_id = ?`, userID)
}

func (r *SQLiteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, `expires <= ?`, timex.ToMicro(now))
}
