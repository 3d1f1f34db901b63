// Package auth turns request credentials into an identity and decides what
// that identity may do.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/dbx"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eardogger/internal/server/scheduler"
	"github.com/dmitrijs2005/eardogger/internal/timex"
	"github.com/google/uuid"
)

const (
	SessionCookie = "eardogger.sessid"
	CSRFField     = "csrf_token"
	CSRFHeader    = "X-CSRF-Token"

	TokenPrefix = "eardoggerv1."
)

type Method int

const (
	MethodSession Method = iota + 1
	MethodToken
)

func (m Method) String() string {
	switch m {
	case MethodSession:
		return "session"
	case MethodToken:
		return "token"
	}
	return "none"
}

// Material is what the transport extracted from a request. Either field may
// be empty.
type Material struct {
	SessionID string
	// Bearer is the raw Authorization header value.
	Bearer string
}

// Identity is a resolved caller. Session or Token is set according to Method.
type Identity struct {
	User    *models.User
	Method  Method
	Session *models.Session
	Token   *models.Token
}

type Reason int

const (
	ReasonUnauthenticated Reason = iota
	ReasonNotFound
	ReasonExpired
	ReasonCSRFMismatch
)

func (r Reason) String() string {
	switch r {
	case ReasonNotFound:
		return "not found"
	case ReasonExpired:
		return "expired"
	case ReasonCSRFMismatch:
		return "csrf mismatch"
	}
	return "unauthenticated"
}

// Rejection explains why credentials did not resolve. NotFound and Expired
// look the same from outside: both unwrap to common.ErrUnauthenticated.
type Rejection struct {
	Reason Reason
	Method Method
}

func (r *Rejection) Error() string {
	if r.Method == 0 {
		return "auth rejected: " + r.Reason.String()
	}
	return "auth rejected (" + r.Method.String() + "): " + r.Reason.String()
}

func (r *Rejection) Unwrap() error {
	if r.Reason == ReasonCSRFMismatch {
		return common.ErrCSRFMismatch
	}
	return common.ErrUnauthenticated
}

// Resolver looks credentials up through the scheduler's reader pool.
type Resolver struct {
	sched *scheduler.Scheduler
	repos repomanager.RepositoryManager
	now   timex.Clock
}

func NewResolver(sched *scheduler.Scheduler, repos repomanager.RepositoryManager, now timex.Clock) *Resolver {
	if now == nil {
		now = timex.UTCNow
	}
	return &Resolver{sched: sched, repos: repos, now: now}
}

// Resolve prefers the session when both credentials resolve. Store failures
// are returned as-is, not as a Rejection.
func (r *Resolver) Resolve(ctx context.Context, m Material) (*Identity, error) {
	var rejected *Rejection
	tried := 0

	if m.SessionID != "" {
		tried++
		id, err := r.resolveSession(ctx, m.SessionID)
		if err == nil {
			return id, nil
		}
		if !errors.As(err, &rejected) {
			return nil, err
		}
	}
	if m.Bearer != "" {
		tried++
		id, err := r.resolveToken(ctx, m.Bearer)
		if err == nil {
			return id, nil
		}
		if !errors.As(err, &rejected) {
			return nil, err
		}
	}
	if tried == 1 {
		return nil, rejected
	}
	return nil, &Rejection{Reason: ReasonUnauthenticated}
}

func (r *Resolver) resolveSession(ctx context.Context, sessionID string) (*Identity, error) {
	id := &Identity{Method: MethodSession}
	err := r.sched.Read(ctx, func(ctx context.Context, db dbx.DBTX) error {
		s, err := r.repos.Sessions(db).GetBySessionID(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Expired(r.now()) {
			return &Rejection{Reason: ReasonExpired, Method: MethodSession}
		}
		u, err := r.repos.Users(db).GetByID(ctx, s.UserID)
		if err != nil {
			return err
		}
		id.Session, id.User = s, u
		return nil
	})
	if errors.Is(err, common.ErrNotFound) {
		return nil, &Rejection{Reason: ReasonNotFound, Method: MethodSession}
	}
	if err != nil {
		return nil, err
	}
	return id, nil
}

func (r *Resolver) resolveToken(ctx context.Context, header string) (*Identity, error) {
	secret, ok := ParseBearer(header)
	if !ok {
		return nil, &Rejection{Reason: ReasonNotFound, Method: MethodToken}
	}
	hash := HashToken(secret)

	id := &Identity{Method: MethodToken}
	err := r.sched.Read(ctx, func(ctx context.Context, db dbx.DBTX) error {
		t, err := r.repos.Tokens(db).GetByHash(ctx, hash)
		if err != nil {
			return err
		}
		u, err := r.repos.Users(db).GetByID(ctx, t.UserID)
		if err != nil {
			return err
		}
		id.Token, id.User = t, u
		return nil
	})
	if errors.Is(err, common.ErrNotFound) {
		return nil, &Rejection{Reason: ReasonNotFound, Method: MethodToken}
	}
	if err != nil {
		return nil, err
	}

	tokenID, at := id.Token.ID, r.now()
	r.sched.Go("touch token", func(ctx context.Context) error {
		return r.sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
			return r.repos.Tokens(db).TouchLastUsed(ctx, tokenID, at)
		})
	})
	return id, nil
}

// ParseBearer extracts the token secret from an Authorization header value.
func ParseBearer(header string) (string, bool) {
	scheme, secret, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	secret = strings.TrimSpace(secret)
	if !strings.HasPrefix(secret, TokenPrefix) {
		return "", false
	}
	if _, err := uuid.Parse(strings.TrimPrefix(secret, TokenPrefix)); err != nil {
		return "", false
	}
	return secret, true
}

// HashToken is the lowercase hex sha256 of the whole secret.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// NewTokenSecret mints a fresh bearer secret. It is shown to the user once.
func NewTokenSecret() string {
	return TokenPrefix + uuid.NewString()
}

// CheckCSRF compares a presented CSRF value with the session's, in constant
// time. Token identities never need one.
func CheckCSRF(id *Identity, presented string) error {
	if id == nil || id.Method != MethodSession {
		return nil
	}
	if presented == "" || id.Session == nil ||
		subtle.ConstantTimeCompare([]byte(presented), []byte(id.Session.CSRFToken)) != 1 {
		return &Rejection{Reason: ReasonCSRFMismatch, Method: MethodSession}
	}
	return nil
}
