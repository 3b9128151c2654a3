package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// Config holds S3/MinIO configuration
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Client wraps MinIO client with snapshot upload functionality
type Client struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

// NewClient creates a new S3/MinIO client
func NewClient(cfg *Config, logger zerolog.Logger) (*Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Client{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist. Archives stay private.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	c.logger.Info().Str("bucket", c.bucket).Msg("created S3 bucket")
	return nil
}

// ObjectKey returns the archive location of an account's log
func ObjectKey(accountID string) string {
	return fmt.Sprintf("captures/%s/data.json", accountID)
}

// UploadSnapshot replaces the archived log of accountID with data
func (c *Client) UploadSnapshot(ctx context.Context, accountID string, data []byte) error {
	key := ObjectKey(accountID)

	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot to S3: %w", err)
	}

	c.logger.Debug().
		Str("object_key", key).
		Int("bytes", len(data)).
		Msg("uploaded log snapshot to S3")
	return nil
}
