package dbx

import (
	"database/sql"
	"time"
)

// NullString turns an optional string into a driver argument.
func NullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// StringPtr is the inverse of NullString for scanned columns.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// MicroPtr converts a nullable Unix-microsecond column into a UTC time.
func MicroPtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMicro(n.Int64).UTC()
	return &t
}
