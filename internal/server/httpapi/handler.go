package httpapi

import (
	"context"

	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
	"github.com/dmitrijs2005/mediakeeper/internal/server/services"
	"github.com/dmitrijs2005/mediakeeper/internal/server/storage"
	"github.com/dmitrijs2005/mediakeeper/internal/server/upload"
)

// Uploads stores and deletes standalone assets.
type Uploads interface {
	Upload(ctx context.Context, p upload.Policy, files ...upload.File) ([]*models.UploadedAsset, error)
	Delete(ctx context.Context, remoteID string) (storage.Outcome, error)
}

// Users is the account service.
type Users interface {
	CreateUser(ctx context.Context, in services.NewUser, photo *upload.File) (*models.User, *services.TokenPair, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, upd services.UserUpdate) (*models.User, error)
	UpdateProfilePhoto(ctx context.Context, id string, photo upload.File) (*models.User, error)
	RemoveProfilePhoto(ctx context.Context, id string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// ReadinessChecker reports whether a dependency can serve traffic.
// *sql.DB satisfies it.
type ReadinessChecker interface {
	PingContext(ctx context.Context) error
}

// Handler holds the route handlers and their dependencies.
type Handler struct {
	uploads         Uploads
	users           Users
	ready           ReadinessChecker
	logger          logging.Logger
	maxRequestBytes int64
}

func NewHandler(uploads Uploads, users Users, ready ReadinessChecker, logger logging.Logger, maxRequestBytes int64) *Handler {
	return &Handler{
		uploads:         uploads,
		users:           users,
		ready:           ready,
		logger:          logger.With("module", "http"),
		maxRequestBytes: maxRequestBytes,
	}
}
