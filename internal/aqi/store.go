package aqi

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hellej/hope-graph-updater/internal/model"
)

// Environment variables holding the Enfuser bucket credentials.
const (
	EnvAccessKeyID     = "ENFUSER_S3_ACCESS_KEY_ID"
	EnvSecretAccessKey = "ENFUSER_S3_SECRET_ACCESS_KEY"
)

// ObjectStore downloads objects by bucket and key.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error)
}

// S3Store is an ObjectStore backed by Amazon S3.
type S3Store struct {
	client *s3.Client
}

// NewS3Store returns a store for region using static credentials.
func NewS3Store(region, accessKeyID, secretAccessKey string) *S3Store {
	client := s3.New(s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	})
	return &S3Store{client: client}
}

// NewS3StoreFromEnv reads the Enfuser credentials from the environment.
// Both variables must be set; they usually come from docker secrets or the
// .env file loaded at startup.
func NewS3StoreFromEnv(region string) (*S3Store, error) {
	id, secret := os.Getenv(EnvAccessKeyID), os.Getenv(EnvSecretAccessKey)
	if id == "" || secret == "" {
		return nil, model.NewCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("%s and %s must be set", EnvAccessKeyID, EnvSecretAccessKey))
	}
	return NewS3Store(region, id, secret), nil
}

// Download copies the object body to w and returns the number of bytes
// written.
func (s *S3Store) Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	n, err := io.Copy(w, out.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	return n, nil
}
