package auth

import (
	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
)

// Capability is something a handler needs the caller to be allowed to do.
type Capability int

const (
	CreateDogear Capability = iota
	UpdateDogear
	ListDogears
	DeleteDogear
	ManageAccount
	ManageTokens
	ManageSessions
)

var capNames = [...]string{
	CreateDogear:   "create_dogear",
	UpdateDogear:   "update_dogear",
	ListDogears:    "list_dogears",
	DeleteDogear:   "delete_dogear",
	ManageAccount:  "manage_account",
	ManageTokens:   "manage_tokens",
	ManageSessions: "manage_sessions",
}

func (c Capability) String() string {
	if int(c) < len(capNames) {
		return capNames[c]
	}
	return "unknown"
}

var scopeGrants = map[models.ScopeKind][]Capability{
	models.ScopeWriteDogears:  {CreateDogear, UpdateDogear},
	models.ScopeManageDogears: {CreateDogear, UpdateDogear, ListDogears, DeleteDogear},
}

// Allows reports whether a token with scope may exercise c. Invalid scopes
// grant nothing.
func Allows(scope models.TokenScope, c Capability) bool {
	for _, granted := range scopeGrants[scope.Kind] {
		if granted == c {
			return true
		}
	}
	return false
}

// Authorize returns common.ErrForbidden unless id may exercise c.
func Authorize(id *Identity, c Capability) error {
	if id == nil {
		return common.ErrUnauthenticated
	}
	switch id.Method {
	case MethodSession:
		return nil
	case MethodToken:
		if id.Token != nil && Allows(id.Token.Scope, c) {
			return nil
		}
	}
	return common.ErrForbidden
}
