package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/timex"
	"github.com/golang-jwt/jwt/v5"
)

const (
	LoginGuardCookie  = "eardogger.loginguard"
	LoginGuardField   = "login_csrf_token"
	loginGuardTTL     = time.Hour
	loginGuardNonceSz = 16
)

// loginGuardClaims is the payload of the login guard cookie. The nonce is
// echoed back by the login and signup forms.
type loginGuardClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

// LoginGuard protects the forms that run before a session exists.
type LoginGuard struct {
	secret []byte
	now    timex.Clock
}

func NewLoginGuard(secret []byte, now timex.Clock) *LoginGuard {
	if now == nil {
		now = timex.UTCNow
	}
	return &LoginGuard{secret: secret, now: now}
}

// Issue returns the signed cookie value and the nonce the form must echo.
func (g *LoginGuard) Issue() (cookie, nonce string, err error) {
	nonce, err = common.MakeRandHexString(loginGuardNonceSz)
	if err != nil {
		return "", "", err
	}
	now := g.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, loginGuardClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(loginGuardTTL)),
		},
		Nonce: nonce,
	})
	cookie, err = token.SignedString(g.secret)
	if err != nil {
		return "", "", err
	}
	return cookie, nonce, nil
}

func (g *LoginGuard) MaxAge() time.Duration { return loginGuardTTL }

// Check verifies the cookie and that the form echoed its nonce. Every
// failure is common.ErrCSRFMismatch.
func (g *LoginGuard) Check(cookie, echoed string) error {
	if cookie == "" || echoed == "" {
		return common.ErrCSRFMismatch
	}
	claims := &loginGuardClaims{}
	token, err := jwt.ParseWithClaims(cookie, claims, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(g.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return errors.Join(common.ErrCSRFMismatch, err)
		}
		return common.ErrCSRFMismatch
	}
	if !token.Valid || subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(echoed)) != 1 {
		return common.ErrCSRFMismatch
	}
	return nil
}
