package upload

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config holds the connection settings for an S3-compatible store.
type S3Config struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Bucket       string
}

// uploadAPI is the slice of the manager uploader used here, extracted so
// tests can substitute a fake.
type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Uploader stores demos in an S3 bucket. The manager uploader splits the
// stream into multipart chunks, so unseekable readers work.
type S3Uploader struct {
	uploader uploadAPI
	bucket   string
}

func NewS3Uploader(ctx context.Context, c S3Config) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
	})

	return &S3Uploader{
		uploader: manager.NewUploader(client),
		bucket:   c.Bucket,
	}, nil
}

func storageKey(name string) string {
	d := time.Now()
	return fmt.Sprintf("demos/%d/%d/%d/%v-%s", d.Year(), d.Month(), d.Day(), uuid.New(), name)
}

// Upload streams the file into the bucket and returns the object key.
func (s *S3Uploader) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	key := storageKey(name)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("uploading to s3: %w", err)
	}

	return key, nil
}
