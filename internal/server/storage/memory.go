package storage

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
)

type memoryObject struct {
	contentType    string
	transformation string
	data           []byte
}

// MemoryClient keeps objects in process memory. It backs local runs without
// an object store.
type MemoryClient struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	baseURL string
	now     func() time.Time
}

func NewMemoryClient(baseURL string) *MemoryClient {
	return &MemoryClient{objects: make(map[string]memoryObject), baseURL: baseURL, now: time.Now}
}

func (c *MemoryClient) Store(ctx context.Context, obj Object) (*models.UploadedAsset, error) {
	key, err := NewRemoteID(obj.Folder, obj.Filename, c.now())
	if err != nil {
		return nil, NewStorageError(0, err)
	}

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, NewStorageError(0, err)
	}

	c.mu.Lock()
	c.objects[key] = memoryObject{contentType: obj.ContentType, transformation: obj.Transformation, data: data}
	c.mu.Unlock()

	return &models.UploadedAsset{RemoteID: key, URL: ObjectURL(c.baseURL, key), Folder: obj.Folder}, nil
}

func (c *MemoryClient) Destroy(ctx context.Context, remoteID string) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.objects[remoteID]; !ok {
		return AlreadyAbsent, nil
	}
	delete(c.objects, remoteID)
	return Deleted, nil
}

// Has reports whether remoteID is currently stored.
func (c *MemoryClient) Has(remoteID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.objects[remoteID]
	return ok
}

// Len is the number of stored objects.
func (c *MemoryClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}
