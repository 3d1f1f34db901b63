// Package dogears persists dogears: per-user bookmarks keyed by a URL prefix.
package dogears

import (
	"context"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/pagination"
)

// PrefixRef is the slice of a dogear the update engine matches against.
type PrefixRef struct {
	ID     int64
	Prefix string
}

type Repository interface {
	// Create fails with common.ErrConflict when the user already has a
	// dogear for the same prefix.
	Create(ctx context.Context, d *models.Dogear) (*models.Dogear, error)
	GetByID(ctx context.Context, userID, id int64) (*models.Dogear, error)
	ListPrefixes(ctx context.Context, userID int64) ([]PrefixRef, error)
	SetCurrent(ctx context.Context, userID, id int64, current string, at time.Time) (*models.Dogear, error)
	ListPage(ctx context.Context, userID int64, page pagination.Page) ([]models.Dogear, error)
	DeleteByID(ctx context.Context, userID, id int64) error
	DeleteForUser(ctx context.Context, userID int64) (int64, error)
}
