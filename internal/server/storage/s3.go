package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
)

// S3Config is everything the S3 backend needs. It is passed explicitly to
// NewS3Client; nothing is read from the environment.
type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
	// PublicBaseURL prefixes returned URLs. Defaults to BaseEndpoint/Bucket.
	PublicBaseURL string
	UsePathStyle  bool
}

func (c S3Config) publicBaseURL() string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL
	}
	return ObjectURL(c.BaseEndpoint, c.Bucket)
}

// s3API is the part of *s3.Client the backend uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Client stores objects in an S3-compatible bucket via aws-sdk-go-v2.
type S3Client struct {
	api       s3API
	bucket    string
	publicURL string
	now       func() time.Time
}

func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	api := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Client(api, cfg), nil
}

func newS3Client(api s3API, cfg S3Config) *S3Client {
	return &S3Client{api: api, bucket: cfg.Bucket, publicURL: cfg.publicBaseURL(), now: time.Now}
}

func (c *S3Client) Store(ctx context.Context, obj Object) (*models.UploadedAsset, error) {
	key, err := NewRemoteID(obj.Folder, obj.Filename, c.now())
	if err != nil {
		return nil, NewStorageError(0, err)
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          obj.Body,
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(obj.Size),
	}
	if obj.Transformation != "" {
		in.Metadata = map[string]string{"transformation": obj.Transformation}
	}

	if _, err := c.api.PutObject(ctx, in); err != nil {
		return nil, classifyS3(err)
	}

	return &models.UploadedAsset{
		RemoteID: key,
		URL:      ObjectURL(c.publicURL, key),
		Folder:   obj.Folder,
	}, nil
}

// Destroy checks for the object first because S3 reports success for deletes
// of missing keys.
func (c *S3Client) Destroy(ctx context.Context, remoteID string) (Outcome, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(remoteID),
	})
	if err != nil {
		if s3Status(err) == http.StatusNotFound {
			return AlreadyAbsent, nil
		}
		return 0, classifyS3(err)
	}

	_, err = c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(remoteID),
	})
	if err != nil {
		if s3Status(err) == http.StatusNotFound {
			return AlreadyAbsent, nil
		}
		return 0, classifyS3(err)
	}
	return Deleted, nil
}

// s3Status digs the HTTP status out of an SDK error, or returns 0.
func s3Status(err error) int {
	var re interface{ HTTPStatusCode() int }
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

func classifyS3(err error) *StorageError {
	return NewStorageError(s3Status(err), err)
}
