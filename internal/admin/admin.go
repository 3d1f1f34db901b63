// Package admin implements the eardogger maintenance tool: schema migration,
// account creation and password resets, session pruning and database
// snapshots.
package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/eardogger/internal/logging"
	"github.com/dmitrijs2005/eardogger/internal/server"
	"github.com/dmitrijs2005/eardogger/internal/server/config"
	"github.com/dmitrijs2005/eardogger/internal/server/services"
	"github.com/dmitrijs2005/eardogger/internal/server/snapshot"
)

var ErrUsage = errors.New("usage: eardogger-admin [flags] migrate | useradd <username> | passwd <username> | prune-sessions | snapshot <dest>")

type App struct {
	config *config.Config
	logger logging.Logger
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config, logger logging.Logger, in io.Reader, out io.Writer) *App {
	if logger == nil {
		logger = logging.Nop()
	}
	return &App{config: c, logger: logger, in: bufio.NewReader(in), out: out}
}

// Run executes one command. args are the positional arguments, command
// first.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	cmd, rest := args[0], args[1:]

	want := map[string]int{"migrate": 0, "useradd": 1, "passwd": 1, "prune-sessions": 0, "snapshot": 1}
	n, ok := want[cmd]
	if !ok || len(rest) != n {
		return ErrUsage
	}

	c := *a.config
	if cmd == "migrate" {
		c.ValidateMigrations = false
	}
	store, sched, rm, err := server.Prepare(ctx, &c, a.logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		sched.Close()
		_ = store.Close()
	}()

	d := services.Deps{Sched: sched, Repos: rm, Logger: a.logger}
	sessions := services.NewSessionService(d, c.SessionLifetime)
	users := services.NewUserService(d, sessions)

	switch cmd {
	case "migrate":
		fmt.Fprintln(a.out, "schema is up to date")
		return nil
	case "useradd":
		return a.userAdd(ctx, users, rest[0])
	case "passwd":
		return a.passwd(ctx, users, rest[0])
	case "prune-sessions":
		n, err := sessions.PruneExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "pruned %d expired sessions\n", n)
		return nil
	default:
		return a.snapshot(ctx, snapshot.New(sched, &c, nil, a.logger), rest[0])
	}
}

func (a *App) userAdd(ctx context.Context, users *services.UserService, username string) error {
	pw, err := readNewPassword(a.in, a.out)
	if err != nil {
		return err
	}
	u, err := users.CreateUser(ctx, username, pw, "")
	if err != nil {
		return fmt.Errorf("useradd %s: %w", username, err)
	}
	fmt.Fprintf(a.out, "created user %s (id %d)\n", u.Username, u.ID)
	return nil
}

func (a *App) passwd(ctx context.Context, users *services.UserService, username string) error {
	pw, err := readNewPassword(a.in, a.out)
	if err != nil {
		return err
	}
	if err := users.SetPassword(ctx, username, pw); err != nil {
		return fmt.Errorf("passwd %s: %w", username, err)
	}
	fmt.Fprintf(a.out, "password changed for %s, existing sessions ended\n", username)
	return nil
}

func (a *App) snapshot(ctx context.Context, s *snapshot.Snapshotter, dest string) error {
	if err := s.WriteFile(ctx, dest); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "snapshot written to %s\n", dest)
	if a.config.S3Bucket == "" {
		return nil
	}
	key, err := s.Upload(ctx, dest)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "uploaded to s3://%s/%s\n", a.config.S3Bucket, key)
	return nil
}
