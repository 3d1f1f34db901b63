package models

import (
	"encoding/json"
	"time"
)

// ScopeKind enumerates the capability levels a token can carry.
type ScopeKind int

const (
	// ScopeInvalid is anything the store holds that we do not recognise.
	ScopeInvalid ScopeKind = iota
	ScopeWriteDogears
	ScopeManageDogears
)

const (
	scopeWriteDogears  = "write_dogears"
	scopeManageDogears = "manage_dogears"
)

// TokenScope is the parsed form of the free-text scope column. Parsing never
// fails: unknown text becomes ScopeInvalid and keeps the raw value so it can
// be shown and stored back unchanged.
type TokenScope struct {
	Kind ScopeKind
	raw  string
}

var (
	WriteDogears  = TokenScope{Kind: ScopeWriteDogears}
	ManageDogears = TokenScope{Kind: ScopeManageDogears}
)

func ParseScope(raw string) TokenScope {
	switch raw {
	case scopeWriteDogears:
		return WriteDogears
	case scopeManageDogears:
		return ManageDogears
	}
	return TokenScope{Kind: ScopeInvalid, raw: raw}
}

func (s TokenScope) String() string {
	switch s.Kind {
	case ScopeWriteDogears:
		return scopeWriteDogears
	case ScopeManageDogears:
		return scopeManageDogears
	}
	return s.raw
}

func (s TokenScope) Valid() bool { return s.Kind != ScopeInvalid }

func (s TokenScope) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TokenScope) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseScope(raw)
	return nil
}

// Token is a bearer credential. Only the hash of its secret is stored.
type Token struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"-"`
	TokenHash string     `json:"-"`
	Scope     TokenScope `json:"scope"`
	Created   time.Time  `json:"created"`
	Comment   *string    `json:"comment,omitempty"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
}
