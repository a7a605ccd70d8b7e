package upload

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
	"github.com/dmitrijs2005/mediakeeper/internal/server/storage"
)

// State is a step of one upload attempt.
//
//	Received -> Validated -> Stored -> Linked
//
// with RejectedAtValidation, RejectedAtTransfer and RejectedAtPersistence
// as failure exits. Unlink has no transfer and ends in Unlinked.
type State string

const (
	Received              State = "received"
	Validated             State = "validated"
	Stored                State = "stored"
	Linked                State = "linked"
	Unlinked              State = "unlinked"
	RejectedAtValidation  State = "rejected_at_validation"
	RejectedAtTransfer    State = "rejected_at_transfer"
	RejectedAtPersistence State = "rejected_at_persistence"
)

// AttemptError reports where an attempt stopped. Err is the cause: a
// *ValidationError, a *storage.StorageError or the persistence error.
type AttemptError struct {
	Op    string
	State State
	Err   error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("upload %s %s: %v", e.Op, e.State, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// File is one received file together with its content.
type File struct {
	Request
	Body io.Reader
}

// PersistFunc writes a reference to asset into the owning record.
type PersistFunc func(ctx context.Context, asset *models.UploadedAsset) error

// Deleter removes remote objects, retrying as it sees fit.
type Deleter interface {
	DeleteWithRetry(ctx context.Context, remoteID string) (storage.Outcome, error)
}

// Coordinator drives upload attempts. Steps of one attempt run strictly in
// sequence; nothing spans the database and the provider atomically, so
// consistency comes from ordering: a record is never left pointing at an
// asset that was removed, while a remote object may briefly outlive its
// reference.
type Coordinator struct {
	client  storage.Client
	deleter Deleter
	logger  logging.Logger
}

func NewCoordinator(client storage.Client, deleter Deleter, logger logging.Logger) *Coordinator {
	return &Coordinator{client: client, deleter: deleter, logger: logger.With("module", "upload")}
}

// Upload validates every file, then stores them one by one as unlinked
// assets. If a transfer fails, assets already stored by this call are
// deleted again.
func (c *Coordinator) Upload(ctx context.Context, p Policy, files ...File) ([]*models.UploadedAsset, error) {
	const op = "upload"

	if err := c.validate(p, files); err != nil {
		return nil, c.reject(ctx, op, RejectedAtValidation, err)
	}

	assets := make([]*models.UploadedAsset, 0, len(files))
	for _, f := range files {
		asset, err := c.store(ctx, p, f)
		if err != nil {
			for _, a := range assets {
				c.compensate(ctx, op, a.RemoteID)
			}
			return nil, c.reject(ctx, op, RejectedAtTransfer, err)
		}
		assets = append(assets, asset)
	}

	c.finish(ctx, op, Stored, len(assets))
	return assets, nil
}

// Create stores f and links it through persist. When persist fails the new
// asset is deleted once through the Deleter and the persistence error is
// returned unchanged inside an AttemptError.
func (c *Coordinator) Create(ctx context.Context, p Policy, f File, persist PersistFunc) (*models.UploadedAsset, error) {
	return c.link(ctx, "create", p, f, persist)
}

// Replace stores f, links it through persist and only then deletes
// oldRemoteID. Failing to delete the old asset is logged and does not undo
// the new reference.
func (c *Coordinator) Replace(ctx context.Context, p Policy, f File, oldRemoteID string, persist PersistFunc) (*models.UploadedAsset, error) {
	asset, err := c.link(ctx, "replace", p, f, persist)
	if err != nil {
		return nil, err
	}

	if oldRemoteID != "" && oldRemoteID != asset.RemoteID {
		c.cleanup(ctx, "replace", oldRemoteID)
	}
	return asset, nil
}

// Unlink persists the removal of a reference first and then deletes the
// remote object best-effort. It ends in Unlinked or RejectedAtPersistence.
func (c *Coordinator) Unlink(ctx context.Context, oldRemoteID string, persist func(ctx context.Context) error) error {
	const op = "unlink"

	if err := persist(ctx); err != nil {
		return c.reject(ctx, op, RejectedAtPersistence, err)
	}

	if oldRemoteID != "" {
		c.cleanup(ctx, op, oldRemoteID)
	}
	c.finish(ctx, op, Unlinked, 1)
	return nil
}

// Delete removes a standalone asset. A missing asset counts as success.
func (c *Coordinator) Delete(ctx context.Context, remoteID string) (storage.Outcome, error) {
	out, err := c.deleter.DeleteWithRetry(ctx, remoteID)
	if err != nil {
		return 0, err
	}
	c.logger.Info(ctx, "asset deleted", "remote_id", remoteID, "outcome", out.String())
	return out, nil
}

func (c *Coordinator) link(ctx context.Context, op string, p Policy, f File, persist PersistFunc) (*models.UploadedAsset, error) {
	if err := c.validate(p, []File{f}); err != nil {
		return nil, c.reject(ctx, op, RejectedAtValidation, err)
	}

	asset, err := c.store(ctx, p, f)
	if err != nil {
		return nil, c.reject(ctx, op, RejectedAtTransfer, err)
	}

	if err := persist(ctx, asset); err != nil {
		c.compensate(ctx, op, asset.RemoteID)
		return nil, c.reject(ctx, op, RejectedAtPersistence, err)
	}

	c.finish(ctx, op, Linked, 1)
	return asset, nil
}

func (c *Coordinator) validate(p Policy, files []File) error {
	if len(files) == 0 {
		return &ValidationError{Code: MissingFile, Message: "No file uploaded"}
	}
	for _, f := range files {
		req := f.Request
		req.Count = max(req.Count, len(files))
		if err := Validate(req, p); err != nil {
			return err
		}
	}
	return nil
}

// store transfers f. Once started, a transfer is not cut short by the
// caller going away; its result is still handled.
func (c *Coordinator) store(ctx context.Context, p Policy, f File) (*models.UploadedAsset, error) {
	asset, err := c.client.Store(context.WithoutCancel(ctx), storage.Object{
		Folder:         p.Folder,
		Filename:       f.Filename,
		ContentType:    f.MimeType,
		Size:           f.Size,
		Body:           f.Body,
		Transformation: p.Transformation,
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug(ctx, "asset stored", "remote_id", asset.RemoteID, "policy", p.Name)
	return asset, nil
}

// compensate removes an asset that no record will reference.
func (c *Coordinator) compensate(ctx context.Context, op, remoteID string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := c.deleter.DeleteWithRetry(ctx, remoteID); err != nil {
		c.logger.Error(ctx, "compensation failed, remote asset orphaned", "op", op, "remote_id", remoteID, "error", err)
		return
	}
	c.logger.Info(ctx, "compensated stored asset", "op", op, "remote_id", remoteID)
}

// cleanup removes an asset whose reference is already gone.
func (c *Coordinator) cleanup(ctx context.Context, op, remoteID string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := c.deleter.DeleteWithRetry(ctx, remoteID); err != nil {
		c.logger.Warn(ctx, "failed to delete superseded asset", "op", op, "remote_id", remoteID, "error", err)
	}
}

func (c *Coordinator) reject(ctx context.Context, op string, state State, err error) error {
	attemptsTotal.WithLabelValues(op, string(state)).Inc()
	c.logger.Info(ctx, "upload rejected", "op", op, "state", state, "error", err)
	return &AttemptError{Op: op, State: state, Err: err}
}

func (c *Coordinator) finish(ctx context.Context, op string, state State, n int) {
	attemptsTotal.WithLabelValues(op, string(state)).Inc()
	c.logger.Info(ctx, "upload finished", "op", op, "state", state, "files", n)
}
