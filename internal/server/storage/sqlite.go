// Package storage opens the SQLite database used by the server. A Store has
// two handles on the same file: a single-connection writer and a bounded pool
// of read-only connections.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

const busyTimeoutMillis = 5000

// Store holds the writer and reader handles. Writer must only be used through
// the access scheduler's writer lane.
type Store struct {
	Writer *sql.DB
	Reader *sql.DB
}

func dsn(path string, pragmas []string, extra url.Values) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return "file:" + path + "?" + q.Encode()
}

func writerDSN(path string) string {
	return dsn(path, []string{
		fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis),
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"foreign_keys(1)",
	}, url.Values{"_txlock": {"immediate"}})
}

func readerDSN(path string) string {
	return dsn(path, []string{
		fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis),
		"foreign_keys(1)",
		"query_only(1)",
	}, nil)
}

// Open opens (creating if needed) the database at path with a writer handle
// and a reader pool of the given size.
func Open(ctx context.Context, path string, readers int) (*Store, error) {
	if readers < 1 {
		readers = 1
	}

	w, err := sql.Open("sqlite", writerDSN(path))
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	w.SetMaxOpenConns(1)
	w.SetMaxIdleConns(1)
	w.SetConnMaxLifetime(0)

	// the writer creates the file and switches it to WAL before any reader
	// connects
	if err := w.PingContext(ctx); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	r, err := sql.Open("sqlite", readerDSN(path))
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("db open error: %w", err)
	}
	r.SetMaxOpenConns(readers)
	r.SetMaxIdleConns(readers)

	return &Store{Writer: w, Reader: r}, nil
}

func (s *Store) Close() error {
	rerr := s.Reader.Close()
	werr := s.Writer.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
