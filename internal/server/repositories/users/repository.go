// Package users is the record store for accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
)

// Repository persists accounts. Lookups that match nothing return
// common.ErrorNotFound; unique clashes on username, email or profile photo
// return common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}
