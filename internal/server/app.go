// Package server wires eardogger together: store, scheduler, services and
// the HTTP surface, plus the background session pruner.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/fcgi"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/logging"
	"github.com/dmitrijs2005/eardogger/internal/server/auth"
	"github.com/dmitrijs2005/eardogger/internal/server/config"
	"github.com/dmitrijs2005/eardogger/internal/server/obs"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eardogger/internal/server/scheduler"
	"github.com/dmitrijs2005/eardogger/internal/server/services"
	"github.com/dmitrijs2005/eardogger/internal/server/storage"
	"github.com/dmitrijs2005/eardogger/internal/server/web"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *storage.Store
	sched    *scheduler.Scheduler
	sessions *services.SessionService
	web      *web.Server
	listener net.Listener

	pruneDelay time.Duration
	pruneEvery time.Duration
}

// Prepare opens and migrates the store and builds the scheduler. It is
// shared with the admin tool.
func Prepare(ctx context.Context, c *config.Config, logger logging.Logger, metrics *obs.Metrics) (*storage.Store, *scheduler.Scheduler, repomanager.RepositoryManager, error) {
	store, err := storage.Open(ctx, c.DatabaseFile, c.ReaderPoolSize)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewSQLiteRepositoryManager()
	if c.ValidateMigrations {
		err = rm.CheckMigrations(ctx, store.Writer)
	} else {
		err = rm.RunMigrations(ctx, store.Writer)
	}
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("migrations: %w", err)
	}

	opts := scheduler.Options{
		Readers:    c.ReaderPoolSize,
		QueueDepth: c.WriterQueueDepth,
		Workers:    c.WorkerBudget,
		Logger:     logger,
	}
	if metrics != nil {
		opts.Observer = metrics
	}
	return store, scheduler.New(store.Writer, store.Reader, opts), rm, nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := logging.NewJSON(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, err
	}
	if c.Threads > 0 {
		runtime.GOMAXPROCS(c.Threads)
	}

	metrics := obs.NewMetrics()
	store, sched, rm, err := Prepare(ctx, c, logger, metrics)
	if err != nil {
		return nil, err
	}

	d := services.Deps{Sched: sched, Repos: rm, Logger: logger}
	sessions := services.NewSessionService(d, c.SessionLifetime)
	srv := web.NewServer(web.Options{
		Config:   c,
		Logger:   logger,
		Metrics:  metrics,
		Resolver: auth.NewResolver(sched, rm, nil),
		Guard:    auth.NewLoginGuard([]byte(c.SecretKey), nil),
		Users:    services.NewUserService(d, sessions),
		Sessions: sessions,
		Tokens:   services.NewTokenService(d, c.PublicOrigin()),
		Dogears:  services.NewDogearService(d),
	})

	return &App{
		config:     c,
		logger:     logger,
		store:      store,
		sched:      sched,
		sessions:   sessions,
		web:        srv,
		pruneDelay: 10 * time.Second,
		pruneEvery: 24 * time.Hour,
	}, nil
}

// Listen binds the configured address. Run calls it when needed.
func (app *App) Listen() error {
	if app.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", app.config.ListenAddr)
	if err != nil {
		return err
	}
	app.listener = l
	return nil
}

// Addr is the bound address, once Listen has run.
func (app *App) Addr() net.Addr {
	if app.listener == nil {
		return nil
	}
	return app.listener.Addr()
}

// Run serves until ctx is done or a signal arrives, then shuts down in
// order: listener, background work, writer lane, store.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	defer app.close()

	if err := app.Listen(); err != nil {
		return err
	}
	app.logger.Info(ctx, "starting eardogger", "addr", app.Addr().String(), "mode", app.config.Mode)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.serve(ctx) })
	g.Go(func() error { return app.pruneSessions(ctx) })

	err := g.Wait()
	app.logger.Info(context.Background(), "eardogger stopped")
	return err
}

func (app *App) serve(ctx context.Context) error {
	h := app.web.Handler()

	if app.config.Mode == config.ModeFCGI {
		errc := make(chan error, 1)
		go func() { errc <- fcgi.Serve(app.listener, h) }()
		select {
		case <-ctx.Done():
			_ = app.listener.Close()
			<-errc
			return nil
		case err := <-errc:
			return err
		}
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(app.listener) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// pruneSessions deletes expired sessions shortly after start and then once
// per pruneEvery. Failures are logged and retried next round.
func (app *App) pruneSessions(ctx context.Context) error {
	t := time.NewTimer(app.pruneDelay)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		n, err := app.sessions.PruneExpired(ctx)
		if err != nil {
			app.logger.Warn(ctx, "session prune failed", "error", err)
		} else {
			app.logger.Info(ctx, "pruned expired sessions", "count", n)
		}
		t.Reset(app.pruneEvery)
	}
}

func (app *App) close() {
	app.web.Close()
	app.sched.Close()
	if err := app.store.Close(); err != nil {
		app.logger.Error(context.Background(), "closing store", "error", err)
	}
}
