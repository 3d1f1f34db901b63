package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/server/auth"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/services"
	"github.com/dmitrijs2005/eardogger/internal/server/urlx"
)

func (s *Server) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge / time.Second),
	}
	if maxAge <= 0 {
		c.MaxAge = -1
	}
	return c
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *models.Session) {
	http.SetCookie(w, s.cookie(auth.SessionCookie, sess.SessionID, s.sessions.Lifetime()))
}

func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, s.cookie(name, "", 0))
}

func safeReturn(returnTo string) string {
	if urlx.IsRelative(returnTo) {
		return returnTo
	}
	return "/"
}

type loginGuardResponse struct {
	LoginCSRFToken string `json:"login_csrf_token"`
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	value, nonce, err := s.guard.Issue()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.SetCookie(w, s.cookie(auth.LoginGuardCookie, value, s.guard.MaxAge()))
	writeJSON(w, http.StatusOK, loginGuardResponse{LoginCSRFToken: nonce})
}

// checkLoginGuard is the CSRF check for forms posted before a session
// exists.
func (s *Server) checkLoginGuard(r *http.Request, echoed string) error {
	value := ""
	if c, err := r.Cookie(auth.LoginGuardCookie); err == nil {
		value = c.Value
	}
	return s.guard.Check(value, echoed)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Guard    string `json:"login_csrf_token"`
	ReturnTo string `json:"return_to"`
}

func (l *loginRequest) bindForm(v url.Values) {
	l.Username = v.Get("username")
	l.Password = v.Get("password")
	l.Guard = v.Get(auth.LoginGuardField)
	l.ReturnTo = v.Get("return_to")
}

func (s *Server) finishLogin(w http.ResponseWriter, r *http.Request, sess *models.Session, returnTo string) {
	s.setSessionCookie(w, sess)
	s.clearCookie(w, auth.LoginGuardCookie)
	http.Redirect(w, r, safeReturn(returnTo), http.StatusSeeOther)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeFormOrJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.checkLoginGuard(r, req.Guard); err != nil {
		s.writeError(w, r, err)
		return
	}
	_, sess, err := s.users.Login(r.Context(), req.Username, req.Password, r.UserAgent())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.finishLogin(w, r, sess, req.ReturnTo)
}

type signupRequest struct {
	loginRequest
	PasswordAgain string `json:"password_again"`
	Email         string `json:"email"`
}

func (l *signupRequest) bindForm(v url.Values) {
	l.loginRequest.bindForm(v)
	l.PasswordAgain = v.Get("password_again")
	l.Email = v.Get("email")
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeFormOrJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.checkLoginGuard(r, req.Guard); err != nil {
		s.writeError(w, r, err)
		return
	}
	_, sess, err := s.users.Signup(r.Context(), services.SignupInput{
		Username:  req.Username,
		Password:  req.Password,
		Confirm:   req.PasswordAgain,
		Email:     req.Email,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.finishLogin(w, r, sess, req.ReturnTo)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	if err := s.sessions.Logout(r.Context(), id.Session.SessionID); err != nil {
		return err
	}
	s.clearCookie(w, auth.SessionCookie)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type changePasswordRequest struct {
	Password         string `json:"password"`
	NewPassword      string `json:"new_password"`
	NewPasswordAgain string `json:"new_password_again"`
}

func (c *changePasswordRequest) bindForm(v url.Values) {
	c.Password = v.Get("password")
	c.NewPassword = v.Get("new_password")
	c.NewPasswordAgain = v.Get("new_password_again")
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	var req changePasswordRequest
	if err := decodeFormOrJSON(r, &req); err != nil {
		return err
	}
	if err := s.users.ChangePassword(r.Context(), id.User.ID, req.Password, req.NewPassword, req.NewPasswordAgain); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type changeEmailRequest struct {
	Email string `json:"email"`
}

func (c *changeEmailRequest) bindForm(v url.Values) { c.Email = v.Get("email") }

func (s *Server) handleChangeEmail(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	var req changeEmailRequest
	if err := decodeFormOrJSON(r, &req); err != nil {
		return err
	}
	user, err := s.users.SetEmail(r.Context(), id.User.ID, req.Email)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

func (d *deleteAccountRequest) bindForm(v url.Values) { d.Password = v.Get("password") }

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	var req deleteAccountRequest
	if err := decodeFormOrJSON(r, &req); err != nil {
		return err
	}
	if err := s.users.Delete(r.Context(), id.User.ID, req.Password); err != nil {
		return err
	}
	s.clearCookie(w, auth.SessionCookie)
	w.WriteHeader(http.StatusNoContent)
	return nil
}
