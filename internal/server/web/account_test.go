package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/server/auth"
	"github.com/dmitrijs2005/eardogger/internal/server/config"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loginGuard performs GET /login and returns the guard cookie and nonce.
func (h *harness) loginGuard(t *testing.T) (*http.Cookie, string) {
	t.Helper()
	rec := h.do(http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := cookieNamed(rec, auth.LoginGuardCookie)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	return c, decodeRec[loginGuardResponse](t, rec).LoginCSRFToken
}

func TestLogin_Flow(t *testing.T) {
	h := newHarness(t)
	h.user(t, "nick")
	guard, nonce := h.loginGuard(t)

	rec := h.postForm("/login", url.Values{
		"username": {"nick"}, "password": {"aoeuhtns"}, auth.LoginGuardField: {nonce}, "return_to": {"/account"},
	}, withCookie(guard))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/account", rec.Header().Get("Location"))

	sess := cookieNamed(rec, auth.SessionCookie)
	require.NotNil(t, sess)
	assert.True(t, sess.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, sess.SameSite)
	assert.False(t, sess.Secure)
	assert.Equal(t, 90*24*60*60, sess.MaxAge)

	rec = h.do(http.MethodGet, "/api/v1/list", nil, withCookie(sess))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_Rejects(t *testing.T) {
	h := newHarness(t)
	h.user(t, "nick")
	guard, nonce := h.loginGuard(t)

	form := func(password, echoed, returnTo string) url.Values {
		return url.Values{"username": {"nick"}, "password": {password}, auth.LoginGuardField: {echoed}, "return_to": {returnTo}}
	}

	rec := h.postForm("/login", form("aoeuhtns", nonce, "/"))
	assert.Equal(t, http.StatusForbidden, rec.Code, "no guard cookie")

	rec = h.postForm("/login", form("aoeuhtns", "nope", "/"), withCookie(guard))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.postForm("/login", form("wrong", nonce, "/"), withCookie(guard))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, cookieNamed(rec, auth.SessionCookie))

	rec = h.postForm("/login", form("aoeuhtns", nonce, "https://evil.test/"), withCookie(guard))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"), "absolute return_to is ignored")
}

func TestLogin_RateLimited(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.LoginRatePerMinute = 1
		c.LoginBurst = 2
	})
	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, h.postForm("/login", url.Values{"username": {"x"}}).Code)
	}
	assert.Equal(t, []int{http.StatusForbidden, http.StatusForbidden, http.StatusTooManyRequests}, codes)
}

func TestLogin_RateLimitByPeer(t *testing.T) {
	throttled := func(c *config.Config) {
		c.LoginRatePerMinute = 1
		c.LoginBurst = 2
	}
	attempt := func(h *harness, i int) int {
		return h.postForm("/login", url.Values{"username": {"x"}}, func(r *http.Request) {
			r.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		}).Code
	}

	h := newHarness(t, throttled)
	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, attempt(h, i))
	}
	assert.Equal(t, []int{http.StatusForbidden, http.StatusForbidden, http.StatusTooManyRequests}, codes,
		"rotating X-Forwarded-For does not reset the bucket")

	h = newHarness(t, throttled, func(c *config.Config) { c.TrustProxyHeaders = true })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusForbidden, attempt(h, i), "behind a proxy each forwarded client has its own bucket")
	}
}

func TestSignup_Flow(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Production = true })
	guard, nonce := h.loginGuard(t)

	rec := h.postForm("/signup", url.Values{
		"username": {"reader"}, "password": {"aoeuhtns"}, "password_again": {"aoeuhtns"},
		"email": {" reader@example.com "}, auth.LoginGuardField: {nonce},
	}, withCookie(guard))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	sess := cookieNamed(rec, auth.SessionCookie)
	require.NotNil(t, sess)
	assert.True(t, sess.Secure)

	rec = h.postForm("/signup", url.Values{
		"username": {"reader"}, "password": {"x"}, "password_again": {"x"}, auth.LoginGuardField: {nonce},
	}, withCookie(guard))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.postForm("/signup", url.Values{
		"username": {"other one"}, "password": {"x"}, "password_again": {"x"}, auth.LoginGuardField: {nonce},
	}, withCookie(guard))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountRoutes_NeedSession(t *testing.T) {
	h := newHarness(t)
	u, _ := h.user(t, "nick")
	manage := h.token(t, u.ID, models.ManageDogears)

	for _, path := range []string{"/logout", "/changepassword", "/change_email", "/delete_account"} {
		assert.Equal(t, http.StatusUnauthorized, h.postForm(path, url.Values{}).Code, path)
		assert.Equal(t, http.StatusForbidden, h.postForm(path, url.Values{}, withToken(manage)).Code, path)
	}
}

func TestChangePasswordAndEmail(t *testing.T) {
	h := newHarness(t)
	_, s := h.user(t, "nick")

	rec := h.postForm("/changepassword", url.Values{"password": {"aoeuhtns"}, "new_password": {"n"}, "new_password_again": {"n"}}, withSession(s))
	assert.Equal(t, http.StatusForbidden, rec.Code, "form post without csrf_token")

	rec = h.postForm("/changepassword", url.Values{
		"password": {"wrong"}, "new_password": {"n"}, "new_password_again": {"n"}, auth.CSRFField: {s.CSRFToken},
	}, withSession(s))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.postForm("/changepassword", url.Values{
		"password": {"aoeuhtns"}, "new_password": {"n"}, "new_password_again": {"n"}, auth.CSRFField: {s.CSRFToken},
	}, withSession(s))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, _, err := h.users.Login(t.Context(), "nick", "n", "")
	assert.NoError(t, err)

	rec = h.postForm("/change_email", url.Values{"email": {"nick@example.com"}, auth.CSRFField: {s.CSRFToken}}, withSession(s))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"nick@example.com"`)
}

func TestLogoutAndDeleteAccount(t *testing.T) {
	h := newHarness(t)
	u, s := h.user(t, "nick")
	h.token(t, u.ID, models.WriteDogears)

	rec := h.postForm("/logout", url.Values{auth.CSRFField: {s.CSRFToken}}, withSession(s))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cleared := cookieNamed(rec, auth.SessionCookie)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/list", nil, withSession(s)).Code)

	_, s2, err := h.users.Login(t.Context(), "nick", "aoeuhtns", "")
	require.NoError(t, err)
	rec = h.postForm("/delete_account", url.Values{"password": {"aoeuhtns"}, auth.CSRFField: {s2.CSRFToken}}, withSession(s2))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, _, err = h.users.Login(t.Context(), "nick", "aoeuhtns", "")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	var n int
	require.NoError(t, h.store.Reader.QueryRow(`SELECT COUNT(*) FROM tokens WHERE user_id = ?`, u.ID).Scan(&n))
	assert.Zero(t, n)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		code int
		name string
	}{
		{common.ErrUnauthenticated, 401, "unauthenticated"},
		{common.ErrCSRFMismatch, 403, "csrf_mismatch"},
		{common.ErrForbidden, 403, "forbidden"},
		{fmt.Errorf("lookup: %w", common.ErrNotFound), 404, "not_found"},
		{common.ErrConflict, 409, "conflict"},
		{common.Validationf("nope"), 400, "validation"},
		{fmt.Errorf("%w: eof", errBadJSON), 422, "bad_json"},
		{&http.MaxBytesError{Limit: 1}, 413, "body_too_large"},
		{fmt.Errorf("%w: locked", common.ErrStoreUnavailable), 503, "store_unavailable"},
		{errors.New("disk on fire"), 500, "internal"},
	}
	for _, tt := range tests {
		code, name := classify(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.Equal(t, tt.name, name, tt.err.Error())
	}
	assert.Equal(t, "nope", publicMessage(common.Validationf("nope").Error()))
}
