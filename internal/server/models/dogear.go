package models

import "time"

// Dogear is a bookmark keyed by a URL prefix; Current moves as the user reads.
type Dogear struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"-"`
	Prefix      string    `json:"prefix"`
	Current     string    `json:"current"`
	DisplayName *string   `json:"display_name,omitempty"`
	Updated     time.Time `json:"updated"`
}
