// Package storagetest opens throwaway migrated databases for tests.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/server/migrations"
	"github.com/dmitrijs2005/eardogger/internal/server/storage"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

// Open returns a migrated Store backed by a file in t.TempDir().
func Open(t testing.TB) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "eardogger.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	goose.SetLogger(goose.NopLogger())
	require.NoError(t, goose.UpContext(context.Background(), s.Writer, "."))
	return s
}

// SeedUser inserts a bare user row and returns its id.
func SeedUser(t testing.TB, s *storage.Store, username string) int64 {
	t.Helper()
	var id int64
	err := s.Writer.QueryRowContext(context.Background(),
		`INSERT INTO users (username, password_hash, created) VALUES (?, ?, ?) RETURNING id`,
		username, "$unused$", time.Now().UnixMicro()).Scan(&id)
	require.NoError(t, err)
	return id
}
