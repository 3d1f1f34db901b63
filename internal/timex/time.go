package timex

import "time"

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

// UTCNow is the production clock.
func UTCNow() time.Time { return time.Now().UTC() }

// FromMicro converts a stored Unix-microsecond column back to UTC time.
func FromMicro(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// ToMicro is the inverse of FromMicro.
func ToMicro(t time.Time) int64 {
	return t.UnixMicro()
}
