package services

import (
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eardogger/internal/server/scheduler"
	"github.com/dmitrijs2005/eardogger/internal/server/storage"
	"github.com/dmitrijs2005/eardogger/internal/server/storage/storagetest"
)

// stepClock advances one second per reading, so rows written in sequence
// get distinct timestamps.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type env struct {
	store    *storage.Store
	clock    *stepClock
	deps     Deps
	sessions *SessionService
	users    *UserService
	tokens   *TokenService
	dogears  *DogearService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := storagetest.Open(t)
	sched := scheduler.New(st.Writer, st.Reader, scheduler.Options{})
	t.Cleanup(sched.Close)

	clock := newStepClock()
	d := Deps{Sched: sched, Repos: repomanager.NewSQLiteRepositoryManager(), Now: clock.Now}
	sessions := NewSessionService(d, 90*24*time.Hour)
	return &env{
		store:    st,
		clock:    clock,
		deps:     d,
		sessions: sessions,
		users:    NewUserService(d, sessions),
		tokens:   NewTokenService(d, "https://eardogger.test"),
		dogears:  NewDogearService(d),
	}
}

func ptr[T any](v T) *T { return &v }
