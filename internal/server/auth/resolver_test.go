package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eardogger/internal/server/scheduler"
	"github.com/dmitrijs2005/eardogger/internal/server/storage"
	"github.com/dmitrijs2005/eardogger/internal/server/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *storage.Store
	sched  *scheduler.Scheduler
	repos  *repomanager.SQLiteRepositoryManager
	res    *Resolver
	userID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storagetest.Open(t)
	sched := scheduler.New(st.Writer, st.Reader, scheduler.Options{})
	t.Cleanup(sched.Close)
	repos := repomanager.NewSQLiteRepositoryManager()
	return &fixture{
		store:  st,
		sched:  sched,
		repos:  repos,
		res:    NewResolver(sched, repos, func() time.Time { return fixedNow }),
		userID: storagetest.SeedUser(t, st, "nick"),
	}
}

func (f *fixture) session(t *testing.T, sid string, expires time.Time) {
	t.Helper()
	_, err := f.repos.Sessions(f.store.Writer).Create(context.Background(), &models.Session{
		SessionID: sid, UserID: f.userID, CSRFToken: "csrf-" + sid, Expires: expires, Created: fixedNow.Add(-time.Hour),
	})
	require.NoError(t, err)
}

func (f *fixture) token(t *testing.T, scope models.TokenScope) string {
	t.Helper()
	secret := NewTokenSecret()
	_, err := f.repos.Tokens(f.store.Writer).Create(context.Background(), &models.Token{
		UserID: f.userID, TokenHash: HashToken(secret), Scope: scope, Created: fixedNow.Add(-time.Hour),
	})
	require.NoError(t, err)
	return secret
}

func TestResolve_Session(t *testing.T) {
	f := newFixture(t)
	f.session(t, "sid-live", fixedNow.Add(time.Hour))

	id, err := f.res.Resolve(context.Background(), Material{SessionID: "sid-live"})
	require.NoError(t, err)
	assert.Equal(t, MethodSession, id.Method)
	assert.Equal(t, "nick", id.User.Username)
	assert.Equal(t, "csrf-sid-live", id.Session.CSRFToken)
}

func TestResolve_SessionExpiredAndMissingLookAlike(t *testing.T) {
	f := newFixture(t)
	f.session(t, "sid-old", fixedNow)

	_, expired := f.res.Resolve(context.Background(), Material{SessionID: "sid-old"})
	_, missing := f.res.Resolve(context.Background(), Material{SessionID: "sid-nope"})

	var rej *Rejection
	require.True(t, errors.As(expired, &rej))
	assert.Equal(t, ReasonExpired, rej.Reason)
	require.True(t, errors.As(missing, &rej))
	assert.Equal(t, ReasonNotFound, rej.Reason)

	assert.ErrorIs(t, expired, common.ErrUnauthenticated)
	assert.ErrorIs(t, missing, common.ErrUnauthenticated)
}

func TestResolve_TokenTouchesLastUsed(t *testing.T) {
	f := newFixture(t)
	secret := f.token(t, models.WriteDogears)

	id, err := f.res.Resolve(context.Background(), Material{Bearer: "Bearer " + secret})
	require.NoError(t, err)
	assert.Equal(t, MethodToken, id.Method)
	assert.Equal(t, models.WriteDogears, id.Token.Scope)

	// Close waits for background tasks.
	f.sched.Close()
	got, err := f.repos.Tokens(f.store.Reader).GetByHash(context.Background(), HashToken(secret))
	require.NoError(t, err)
	require.NotNil(t, got.LastUsed)
	assert.True(t, got.LastUsed.Equal(fixedNow))
}

func TestResolve_UnknownOrMalformedToken(t *testing.T) {
	f := newFixture(t)
	for _, h := range []string{
		"Bearer " + NewTokenSecret(),
		"Bearer eardoggerv1.not-a-uuid",
		"Basic dXNlcjpwYXNz",
		"Bearer",
	} {
		_, err := f.res.Resolve(context.Background(), Material{Bearer: h})
		assert.ErrorIs(t, err, common.ErrUnauthenticated, h)
	}
}

func TestResolve_Precedence(t *testing.T) {
	f := newFixture(t)
	f.session(t, "sid-live", fixedNow.Add(time.Hour))
	secret := f.token(t, models.ManageDogears)

	id, err := f.res.Resolve(context.Background(), Material{SessionID: "sid-live", Bearer: "Bearer " + secret})
	require.NoError(t, err)
	assert.Equal(t, MethodSession, id.Method, "session wins when both resolve")

	id, err = f.res.Resolve(context.Background(), Material{SessionID: "sid-gone", Bearer: "Bearer " + secret})
	require.NoError(t, err)
	assert.Equal(t, MethodToken, id.Method, "token stands in for a dead session")

	_, err = f.res.Resolve(context.Background(), Material{SessionID: "sid-gone", Bearer: "Bearer " + NewTokenSecret()})
	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, ReasonUnauthenticated, rej.Reason)
}

func TestResolve_NoMaterial(t *testing.T) {
	f := newFixture(t)
	_, err := f.res.Resolve(context.Background(), Material{})
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestParseBearer(t *testing.T) {
	secret := NewTokenSecret()
	got, ok := ParseBearer("bearer  " + secret + " ")
	assert.True(t, ok)
	assert.Equal(t, secret, got)

	_, ok = ParseBearer(secret)
	assert.False(t, ok)
}

func TestHashToken(t *testing.T) {
	// the well known sha256 test vector for "abc"
	h := HashToken("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)
}

func TestCheckCSRF(t *testing.T) {
	sess := &Identity{Method: MethodSession, Session: &models.Session{CSRFToken: "c0ffee"}}
	assert.NoError(t, CheckCSRF(sess, "c0ffee"))
	assert.ErrorIs(t, CheckCSRF(sess, "c0ffef"), common.ErrCSRFMismatch)
	assert.ErrorIs(t, CheckCSRF(sess, ""), common.ErrForbidden)

	tok := &Identity{Method: MethodToken, Token: &models.Token{Scope: models.WriteDogears}}
	assert.NoError(t, CheckCSRF(tok, ""))
}
