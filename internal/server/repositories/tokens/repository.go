// Package tokens persists bookmarklet bearer tokens. Only hashes of the
// secrets are stored.
package tokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/pagination"
)

type Repository interface {
	Create(ctx context.Context, t *models.Token) (*models.Token, error)
	GetByHash(ctx context.Context, hash string) (*models.Token, error)
	ListPage(ctx context.Context, userID int64, page pagination.Page) ([]models.Token, error)
	DeleteByID(ctx context.Context, userID, id int64) error
	DeleteForUser(ctx context.Context, userID int64) (int64, error)
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
}
