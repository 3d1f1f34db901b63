package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_WriterAndReader(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "store.db"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var mode string
	require.NoError(t, s.Writer.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))

	_, err = s.Writer.ExecContext(ctx, `CREATE TABLE t (v TEXT)`)
	require.NoError(t, err)
	_, err = s.Writer.ExecContext(ctx, `INSERT INTO t VALUES ('a')`)
	require.NoError(t, err)

	var n int
	require.NoError(t, s.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 1, n)

	_, err = s.Reader.ExecContext(ctx, `INSERT INTO t VALUES ('b')`)
	assert.Error(t, err, "reader handle must be query-only")

	var fk int
	require.NoError(t, s.Writer.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestDSN(t *testing.T) {
	d := writerDSN("/tmp/x.db")
	assert.True(t, strings.HasPrefix(d, "file:/tmp/x.db?"))
	assert.Contains(t, d, "_txlock=immediate")
	assert.Contains(t, d, "journal_mode%28WAL%29")

	assert.Contains(t, readerDSN("/tmp/x.db"), "query_only%281%29")
}
