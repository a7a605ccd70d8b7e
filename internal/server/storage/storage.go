// Package storage is the boundary to the remote object storage provider. It
// transfers bytes, deletes objects idempotently and classifies provider
// failures by HTTP status.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
)

// Outcome is the result of a successful Destroy.
type Outcome int

const (
	Deleted Outcome = iota + 1
	AlreadyAbsent
)

func (o Outcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case AlreadyAbsent:
		return "already_absent"
	default:
		return "unknown"
	}
}

// Object is one file to transfer.
type Object struct {
	Folder      models.Folder
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	// Transformation is recorded with the object for the image proxy that
	// serves it; the bytes are stored as received.
	Transformation string
}

// Client is implemented by every storage backend.
//
// Store is never retried internally. Destroy treats a missing object as
// success and reports it as AlreadyAbsent. Failures are *StorageError.
type Client interface {
	Store(ctx context.Context, obj Object) (*models.UploadedAsset, error)
	Destroy(ctx context.Context, remoteID string) (Outcome, error)
}

// NewRemoteID builds "<folder>/<unix-ms>_<12 hex>[.<ext>]".
func NewRemoteID(folder models.Folder, filename string, now time.Time) (string, error) {
	suffix, err := common.MakeRandHexString(6)
	if err != nil {
		return "", fmt.Errorf("remote id: %w", err)
	}
	id := fmt.Sprintf("%s/%d_%s", folder, now.UnixMilli(), suffix)
	if ext := Extension(filename); ext != "" {
		id += "." + ext
	}
	return id, nil
}

// Extension returns the lower-cased suffix after the last "." of filename,
// or "" when there is none.
func Extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// ObjectURL joins a public base URL and a remote id.
func ObjectURL(baseURL, remoteID string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(remoteID, "/")
}
