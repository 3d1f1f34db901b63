package dbx

import (
	"errors"

	sqlite3 "modernc.org/sqlite/lib"
)

// codedError is implemented by *sqlite.Error from modernc.org/sqlite.
type codedError interface {
	error
	Code() int
}

func sqliteCode(err error) (int, bool) {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.Code(), true
	}
	return 0, false
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func IsUniqueViolation(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// IsBusy reports whether err is transient lock contention (SQLITE_BUSY or
// SQLITE_LOCKED, including their extended codes).
func IsBusy(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	primary := code & 0xff
	return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
}
