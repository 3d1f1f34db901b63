package web

import (
	"context"
	"errors"
	"mime"
	"net/http"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/logging"
	"github.com/dmitrijs2005/eardogger/internal/server/auth"
)

type ctxKey int

const resolvedKey ctxKey = iota

// resolved is what credential resolution left for the handlers: an identity,
// or the reason there is none.
type resolved struct {
	id  *auth.Identity
	err error
}

func resolvedFrom(ctx context.Context) resolved {
	if res, ok := ctx.Value(resolvedKey).(resolved); ok {
		return res
	}
	return resolved{err: common.ErrUnauthenticated}
}

// authenticate resolves the session cookie and bearer token, if any. It never
// rejects a request itself; routes decide what they need. Cross-origin
// requests carrying a bearer token are resolved by the token alone.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := auth.Material{Bearer: r.Header.Get("Authorization")}
		// sessions never authorize cross-origin calls, so a cookie riding
		// along must not shadow the bearer token
		if _, cross := s.crossOrigin(r); !cross || m.Bearer == "" {
			if c, err := r.Cookie(auth.SessionCookie); err == nil {
				m.SessionID = c.Value
			}
		}

		res := resolved{err: common.ErrUnauthenticated}
		if m.SessionID != "" || m.Bearer != "" {
			res.id, res.err = s.resolver.Resolve(r.Context(), m)
		}
		if res.id != nil {
			log := logging.FromContext(r.Context(), s.logger).With("user_id", res.id.User.ID, "auth", res.id.Method.String())
			r = r.WithContext(logging.IntoContext(r.Context(), log))
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), resolvedKey, res)))
	})
}

// access describes what a route demands of its caller.
type access struct {
	cap auth.Capability
	// mutating routes need a CSRF value from session callers.
	mutating    bool
	sessionOnly bool
}

type authedFunc func(w http.ResponseWriter, r *http.Request, id *auth.Identity) error

func (s *Server) authed(a access, h authedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := resolvedFrom(r.Context())
		if res.id == nil {
			err := res.err
			var rej *auth.Rejection
			if errors.As(err, &rej) {
				// expired and unknown credentials must look the same
				logging.FromContext(r.Context(), s.logger).Debug(r.Context(), "credentials rejected", "reason", rej.Reason.String())
				err = common.ErrUnauthenticated
			}
			s.writeError(w, r, err)
			return
		}
		id := res.id
		if a.sessionOnly && id.Method != auth.MethodSession {
			s.writeError(w, r, common.ErrForbidden)
			return
		}
		if err := auth.Authorize(id, a.cap); err != nil {
			s.writeError(w, r, err)
			return
		}
		if a.mutating {
			if err := auth.CheckCSRF(id, csrfValue(r)); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		if err := h(w, r, id); err != nil {
			s.writeError(w, r, err)
		}
	}
}

func csrfValue(r *http.Request) string {
	if v := r.Header.Get(auth.CSRFHeader); v != "" {
		return v
	}
	if isForm(r) {
		return r.PostFormValue(auth.CSRFField)
	}
	return ""
}

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func isForm(r *http.Request) bool {
	switch mediaType(r) {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return true
	}
	return false
}
