package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dmitrijs2005/eardogger/internal/server/auth"
	"github.com/dmitrijs2005/eardogger/internal/server/config"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eardogger/internal/server/scheduler"
	"github.com/dmitrijs2005/eardogger/internal/server/services"
	"github.com/dmitrijs2005/eardogger/internal/server/storage"
	"github.com/dmitrijs2005/eardogger/internal/server/storage/storagetest"
	"github.com/stretchr/testify/require"
)

const publicURL = "https://eardogger.test"

type harness struct {
	store    *storage.Store
	repos    *repomanager.SQLiteRepositoryManager
	srv      *Server
	users    *services.UserService
	sessions *services.SessionService
	tokens   *services.TokenService
	dogears  *services.DogearService
}

func newHarness(t *testing.T, tweak ...func(*config.Config)) *harness {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.PublicURL = publicURL
	cfg.LoginRatePerMinute = 1000
	cfg.LoginBurst = 1000
	for _, fn := range tweak {
		fn(cfg)
	}

	st := storagetest.Open(t)
	sched := scheduler.New(st.Writer, st.Reader, scheduler.Options{Readers: 2})
	t.Cleanup(sched.Close)

	repos := repomanager.NewSQLiteRepositoryManager()
	d := services.Deps{Sched: sched, Repos: repos}
	sessions := services.NewSessionService(d, cfg.SessionLifetime)
	h := &harness{
		store:    st,
		repos:    repos,
		users:    services.NewUserService(d, sessions),
		sessions: sessions,
		tokens:   services.NewTokenService(d, publicURL),
		dogears:  services.NewDogearService(d),
	}
	h.srv = NewServer(Options{
		Config:   cfg,
		Resolver: auth.NewResolver(sched, repos, nil),
		Guard:    auth.NewLoginGuard([]byte(cfg.SecretKey), nil),
		Users:    h.users,
		Sessions: sessions,
		Tokens:   h.tokens,
		Dogears:  h.dogears,
	})
	t.Cleanup(h.srv.Close)
	return h
}

// user signs up name and returns their session, with the comic fixtures.
func (h *harness) user(t *testing.T, name string) (*models.User, *models.Session) {
	t.Helper()
	ctx := context.Background()
	u, s, err := h.users.Signup(ctx, services.SignupInput{Username: name, Password: "aoeuhtns", Confirm: "aoeuhtns"})
	require.NoError(t, err)
	_, err = h.dogears.Create(ctx, u.ID, "example.com/comic", "https://example.com/comic/24", nil)
	require.NoError(t, err)
	_, err = h.dogears.Create(ctx, u.ID, "example.com/serial", "https://example.com/serial/4", nil)
	require.NoError(t, err)
	return u, s
}

func (h *harness) token(t *testing.T, userID int64, scope models.TokenScope) string {
	t.Helper()
	issued, err := h.tokens.Create(context.Background(), userID, scope, "")
	require.NoError(t, err)
	return issued.Secret
}

type reqOpt func(*http.Request)

func withSession(s *models.Session) reqOpt {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: s.SessionID})
	}
}

func withCSRF(s *models.Session) reqOpt {
	return func(r *http.Request) { r.Header.Set(auth.CSRFHeader, s.CSRFToken) }
}

func withToken(secret string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+secret) }
}

func withOrigin(o string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Origin", o) }
}

func withCookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) { r.AddCookie(c) }
}

func (h *harness) do(method, target string, body io.Reader, opts ...reqOpt) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, body)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(r)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, r)
	return rec
}

func (h *harness) postForm(target string, form url.Values, opts ...reqOpt) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, o := range opts {
		o(r)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, r)
	return rec
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return strings.NewReader(string(b))
}

func decodeRec[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (h *harness) current(t *testing.T, userID int64, url string) string {
	t.Helper()
	d, err := h.dogears.CurrentForSite(context.Background(), userID, url)
	require.NoError(t, err)
	return d.Current
}


type httpRec = httptest.ResponseRecorder

func hashOf(secret string) string { return auth.HashToken(secret) }
