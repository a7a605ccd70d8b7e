// Package server wires the mediakeeper application together: logging,
// database and migrations, the storage backend, upload coordination, the
// account service, and the HTTP and gRPC servers. It also owns graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/server/config"
	gs "github.com/dmitrijs2005/mediakeeper/internal/server/grpc"
	"github.com/dmitrijs2005/mediakeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/mediakeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mediakeeper/internal/server/services"
	"github.com/dmitrijs2005/mediakeeper/internal/server/storage"
	"github.com/dmitrijs2005/mediakeeper/internal/server/upload"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
	grpcServer *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	client, err := newStorageClient(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	deleter := upload.NewRetryableDeleter(client, logger,
		upload.WithMaxAttempts(c.DeleteMaxAttempts),
		upload.WithBackoffUnit(c.DeleteBackoffUnit),
	)
	coordinator := upload.NewCoordinator(client, deleter, logger)
	userService := services.NewUserService(db, rm, coordinator, logger, c)

	handler := httpapi.NewHandler(coordinator, userService, db, logger, c.MaxRequestBytes)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		httpServer: httpapi.NewServer(c.EndpointAddrHTTP, httpapi.NewRouter(handler), logger),
		grpcServer: gs.NewGRPCServer(c.EndpointAddrGRPC, logger),
	}, nil
}

// newStorageClient builds the backend selected by StorageBackend.
func newStorageClient(ctx context.Context, c *config.Config) (storage.Client, error) {
	switch c.StorageBackend {
	case config.StorageS3:
		return storage.NewS3Client(ctx, storage.S3Config{
			Region:        c.S3Region,
			AccessKey:     c.S3RootUser,
			SecretKey:     c.S3RootPassword,
			Bucket:        c.S3Bucket,
			BaseEndpoint:  c.S3BaseEndpoint,
			PublicBaseURL: c.S3PublicBaseURL,
			UsePathStyle:  c.S3UsePathStyle,
		})
	case config.StorageMinio:
		return storage.NewMinioClient(storage.MinioConfig{
			Endpoint:      c.S3BaseEndpoint,
			AccessKey:     c.S3RootUser,
			SecretKey:     c.S3RootPassword,
			Bucket:        c.S3Bucket,
			Region:        c.S3Region,
			PublicBaseURL: c.S3PublicBaseURL,
		})
	case config.StorageMemory:
		return storage.NewMemoryClient(c.S3PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

// Run serves HTTP and gRPC until ctx is cancelled, a termination signal
// arrives or one of the servers fails. Both servers are then stopped and
// the database is closed.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.httpServer.Run(ctx) })
	g.Go(func() error { return app.grpcServer.Run(ctx) })

	err := g.Wait()

	if cerr := app.db.Close(); cerr != nil {
		app.logger.Warn(ctx, "closing database", "error", cerr)
	}

	if err != nil {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}
