package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/dbx"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/pagination"
	"github.com/google/uuid"
)

const csrfTokenBytes = 32

type SessionService struct {
	Deps
	lifetime time.Duration
}

func NewSessionService(d Deps, lifetime time.Duration) *SessionService {
	return &SessionService{Deps: d.withDefaults(), lifetime: lifetime}
}

func (s *SessionService) Lifetime() time.Duration { return s.lifetime }

// create runs inside the caller's write transaction.
func (s *SessionService) create(ctx context.Context, db dbx.DBTX, userID int64, userAgent string) (*models.Session, error) {
	csrf, err := common.MakeRandHexString(csrfTokenBytes)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	sess := &models.Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		CSRFToken: csrf,
		Expires:   now.Add(s.lifetime),
		Created:   now,
	}
	if userAgent != "" {
		sess.UserAgent = &userAgent
	}
	return s.Repos.Sessions(db).Create(ctx, sess)
}

// Create starts a session for userID.
func (s *SessionService) Create(ctx context.Context, userID int64, userAgent string) (*models.Session, error) {
	var out *models.Session
	err := s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		out, err = s.create(ctx, db, userID, userAgent)
		return err
	})
	return out, err
}

func (s *SessionService) List(ctx context.Context, userID int64, page pagination.Page) (pagination.Result[models.Session], error) {
	var rows []models.Session
	err := s.Sched.Read(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		rows, err = s.Repos.Sessions(db).ListPage(ctx, userID, page)
		return err
	})
	if err != nil {
		return pagination.Result[models.Session]{}, err
	}
	return pagination.Finish(rows, page, sessionKey), nil
}

// Delete ends one of userID's sessions. Sessions of other users are
// reported as common.ErrNotFound.
func (s *SessionService) Delete(ctx context.Context, userID, id int64) error {
	return s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		return s.Repos.Sessions(db).DeleteByID(ctx, userID, id)
	})
}

// Logout is idempotent.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	return s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		return s.Repos.Sessions(db).DeleteBySessionID(ctx, sessionID)
	})
}

// PruneExpired deletes every session whose expiry has passed.
func (s *SessionService) PruneExpired(ctx context.Context) (int64, error) {
	var n int64
	err := s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		n, err = s.Repos.Sessions(db).DeleteExpired(ctx, s.Now())
		return err
	})
	return n, err
}
