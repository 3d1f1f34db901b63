package models

import "time"

// Session is a logged-in browser. SessionID is the cookie value and is stored
// as-is; CSRFToken guards that browser's state-changing form posts.
type Session struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"-"`
	UserID    int64     `json:"-"`
	CSRFToken string    `json:"-"`
	Expires   time.Time `json:"expires"`
	UserAgent *string   `json:"user_agent,omitempty"`
	Created   time.Time `json:"created"`
}

// Expired reports whether the session's absolute expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.Expires)
}
