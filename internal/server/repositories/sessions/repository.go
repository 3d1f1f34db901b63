// Package sessions persists login sessions.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/pagination"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) (*models.Session, error)
	// GetBySessionID returns the session even when it has expired; deciding
	// what an expired session means is the caller's job.
	GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error)
	ListPage(ctx context.Context, userID int64, page pagination.Page) ([]models.Session, error)
	DeleteByID(ctx context.Context, userID, id int64) error
	DeleteBySessionID(ctx context.Context, sessionID string) error
	DeleteForUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
