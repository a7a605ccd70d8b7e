package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures the MinIO backend. Endpoint is a URL such as
// "http://127.0.0.1:9000"; its scheme decides whether TLS is used.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
}

type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioClient stores objects through minio-go.
type MinioClient struct {
	api       minioAPI
	bucket    string
	publicURL string
	now       func() time.Time
}

func NewMinioClient(cfg MinioConfig) (*MinioClient, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("minio endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("minio endpoint %q has no host", cfg.Endpoint)
	}

	api, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: u.Scheme == "https",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	publicURL := cfg.PublicBaseURL
	if publicURL == "" {
		publicURL = ObjectURL(cfg.Endpoint, cfg.Bucket)
	}
	return newMinioClient(api, cfg.Bucket, publicURL), nil
}

func newMinioClient(api minioAPI, bucket, publicURL string) *MinioClient {
	return &MinioClient{api: api, bucket: bucket, publicURL: publicURL, now: time.Now}
}

func (c *MinioClient) Store(ctx context.Context, obj Object) (*models.UploadedAsset, error) {
	key, err := NewRemoteID(obj.Folder, obj.Filename, c.now())
	if err != nil {
		return nil, NewStorageError(0, err)
	}

	opts := minio.PutObjectOptions{ContentType: obj.ContentType}
	if obj.Transformation != "" {
		opts.UserMetadata = map[string]string{"transformation": obj.Transformation}
	}

	if _, err := c.api.PutObject(ctx, c.bucket, key, obj.Body, obj.Size, opts); err != nil {
		return nil, classifyMinio(err)
	}

	return &models.UploadedAsset{
		RemoteID: key,
		URL:      ObjectURL(c.publicURL, key),
		Folder:   obj.Folder,
	}, nil
}

func (c *MinioClient) Destroy(ctx context.Context, remoteID string) (Outcome, error) {
	if _, err := c.api.StatObject(ctx, c.bucket, remoteID, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return AlreadyAbsent, nil
		}
		return 0, classifyMinio(err)
	}

	if err := c.api.RemoveObject(ctx, c.bucket, remoteID, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return AlreadyAbsent, nil
		}
		return 0, classifyMinio(err)
	}
	return Deleted, nil
}

func classifyMinio(err error) *StorageError {
	return NewStorageError(minio.ToErrorResponse(err).StatusCode, err)
}
