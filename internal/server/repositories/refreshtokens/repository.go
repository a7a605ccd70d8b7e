package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
}
