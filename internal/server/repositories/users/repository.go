// Package users persists user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/eardogger/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	SetEmail(ctx context.Context, id int64, email *string) error
	Delete(ctx context.Context, id int64) error
}
