// Package web is eardogger's HTTP surface: the JSON API, the account forms
// and the middleware in front of them.
package web

import (
	"net/http"

	"github.com/dmitrijs2005/eardogger/internal/logging"
	"github.com/dmitrijs2005/eardogger/internal/server/auth"
	"github.com/dmitrijs2005/eardogger/internal/server/config"
	"github.com/dmitrijs2005/eardogger/internal/server/obs"
	"github.com/dmitrijs2005/eardogger/internal/server/services"
	"github.com/dmitrijs2005/eardogger/internal/server/urlx"
)

type Options struct {
	Config   *config.Config
	Logger   logging.Logger
	Metrics  *obs.Metrics
	Resolver *auth.Resolver
	Guard    *auth.LoginGuard
	Users    *services.UserService
	Sessions *services.SessionService
	Tokens   *services.TokenService
	Dogears  *services.DogearService
}

type Server struct {
	cfg      *config.Config
	logger   logging.Logger
	metrics  *obs.Metrics
	resolver *auth.Resolver
	guard    *auth.LoginGuard
	users    *services.UserService
	sessions *services.SessionService
	tokens   *services.TokenService
	dogears  *services.DogearService

	origin     string
	loginLimit *rateLimiter
	mux        *http.ServeMux
	handler    http.Handler
}

func NewServer(o Options) *Server {
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Metrics == nil {
		o.Metrics = obs.NewMetrics()
	}
	s := &Server{
		cfg:        o.Config,
		logger:     o.Logger,
		metrics:    o.Metrics,
		resolver:   o.Resolver,
		guard:      o.Guard,
		users:      o.Users,
		sessions:   o.Sessions,
		tokens:     o.Tokens,
		dogears:    o.Dogears,
		origin:     urlx.Origin(o.Config.PublicURL),
		loginLimit: newRateLimiter(o.Config.LoginRatePerMinute, o.Config.LoginBurst, o.Config.TrustProxyHeaders),
		mux:        http.NewServeMux(),
	}
	s.routes()

	mws := []middleware{s.recoverer, s.requestLogging}
	if n := o.Config.EffectiveMaxInFlight(); n > 0 {
		mws = append(mws, admission(n, s.metrics))
	}
	mws = append(mws, securityHeaders, maxBody, s.authenticate)
	s.handler = chain(s.mux, mws...)
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

// Close stops the rate limiter's sweeper.
func (s *Server) Close() { s.loginLimit.Close() }

func (s *Server) handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, s.metrics.Instrument(pattern, h))
}

func (s *Server) routes() {
	s.handle("OPTIONS /api/v1/update", http.HandlerFunc(s.handleUpdatePreflight))
	s.handle("POST /api/v1/update", s.withCORS(s.authed(access{cap: auth.UpdateDogear, mutating: true}, s.handleUpdate)))
	s.handle("POST /api/v1/create", s.authed(access{cap: auth.CreateDogear, mutating: true}, s.handleCreate))
	s.handle("GET /api/v1/list", s.authed(access{cap: auth.ListDogears}, s.handleList))
	s.handle("DELETE /api/v1/dogear/{id}", s.authed(access{cap: auth.DeleteDogear, mutating: true}, s.handleDeleteDogear))

	s.handle("GET /api/v1/tokens", s.authed(access{cap: auth.ManageTokens}, s.handleListTokens))
	s.handle("POST /api/v1/tokens", s.authed(access{cap: auth.ManageTokens, mutating: true}, s.handleCreateToken))
	s.handle("DELETE /api/v1/tokens/{id}", s.authed(access{cap: auth.ManageTokens, mutating: true}, s.handleDeleteToken))
	s.handle("GET /api/v1/wherewasi", http.HandlerFunc(s.handleWhereWasI))
	s.handle("POST /api/v1/personalmark", s.authed(access{cap: auth.ManageTokens, mutating: true}, s.handlePersonalMark))

	s.handle("GET /api/v1/sessions", s.authed(access{cap: auth.ManageSessions}, s.handleListSessions))
	s.handle("DELETE /api/v1/sessions/{id}", s.authed(access{cap: auth.ManageSessions, mutating: true}, s.handleDeleteSession))

	s.handle("GET /resume/{url...}", s.authed(access{cap: auth.ListDogears, sessionOnly: true}, s.handleResume))

	s.handle("GET /login", http.HandlerFunc(s.handleLoginForm))
	s.handle("POST /login", s.loginLimit.wrap(s.handleLogin))
	s.handle("POST /signup", s.loginLimit.wrap(s.handleSignup))
	account := access{cap: auth.ManageAccount, mutating: true, sessionOnly: true}
	s.handle("POST /logout", s.authed(account, s.handleLogout))
	s.handle("POST /changepassword", s.authed(account, s.handleChangePassword))
	s.handle("POST /change_email", s.authed(account, s.handleChangeEmail))
	s.handle("POST /delete_account", s.authed(account, s.handleDeleteAccount))

	s.handle("GET /status", http.HandlerFunc(handleStatus))
	s.mux.Handle("GET /metrics", s.metrics.Handler())
}
