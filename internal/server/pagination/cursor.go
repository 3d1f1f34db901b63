// Package pagination implements keyset pagination over (timestamp, id)
// ordered most-recent-first. Cursors are opaque to clients.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/eardogger/internal/common"
)

const (
	DefaultSize = 50
	MaxSize     = 500
)

// Cursor marks the last item a client has seen: its sort timestamp (Unix
// microseconds) and primary key.
type Cursor struct {
	At int64 `json:"t"`
	ID int64 `json:"i"`
}

func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeCursor(s string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, common.Validationf("malformed cursor")
	}
	var c Cursor
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil || c.ID <= 0 {
		return nil, common.Validationf("malformed cursor")
	}
	return &c, nil
}

// Page is a request for Size items strictly after After.
type Page struct {
	Size  int
	After *Cursor
}

// First is the default first page.
func First() Page { return Page{Size: DefaultSize} }

// ParsePage builds a Page from raw query parameters. Empty values take the
// defaults; anything outside 1..MaxSize is rejected rather than clamped.
func ParsePage(size, cursor string) (Page, error) {
	p := First()
	if size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			return Page{}, common.Validationf("page size %q is not a number", size)
		}
		if n < 1 || n > MaxSize {
			return Page{}, common.Validationf("page size must be between 1 and %d", MaxSize)
		}
		p.Size = n
	}
	if cursor != "" {
		c, err := DecodeCursor(cursor)
		if err != nil {
			return Page{}, err
		}
		p.After = c
	}
	return p, nil
}

// Limit is the row count to fetch: one extra row tells whether another page
// exists.
func (p Page) Limit() int { return p.Size + 1 }

// Keyset returns the SQL predicate (prefixed with AND) restricting rows to
// those after the cursor, and its arguments. It is empty on the first page.
func (p Page) Keyset(tsCol, idCol string) (string, []any) {
	if p.After == nil {
		return "", nil
	}
	clause := " AND (" + tsCol + " < ? OR (" + tsCol + " = ? AND " + idCol + " < ?))"
	return clause, []any{p.After.At, p.After.At, p.After.ID}
}

// Result is one page of items plus the cursor for the next one.
type Result[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"next_cursor"`
}

// Finish turns up to Limit() fetched rows into a Result. key extracts the
// sort key of an item.
func Finish[T any](rows []T, p Page, key func(T) Cursor) Result[T] {
	if rows == nil {
		rows = []T{}
	}
	if len(rows) <= p.Size {
		return Result[T]{Items: rows}
	}
	rows = rows[:p.Size]
	next := key(rows[len(rows)-1]).Encode()
	return Result[T]{Items: rows, NextCursor: &next}
}
