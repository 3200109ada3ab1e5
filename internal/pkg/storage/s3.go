package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
}

// NewS3Storage loads credentials from the default AWS chain.
func NewS3Storage(ctx context.Context, bucket, region, prefix string) (*S3Storage, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		prefix:  prefix,
	}, nil
}

func (s *S3Storage) key(p string) string {
	return path.Join(s.prefix, path.Clean("/" + p)[1:])
}

func (s *S3Storage) Upload(ctx context.Context, file io.Reader, p string, contentType string) (string, error) {
	key := s.key(p)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s to bucket %s: %w", key, s.bucket, err)
	}
	return p, nil
}

func (s *S3Storage) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	key := s.key(p)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, p)
		}
		return nil, fmt.Errorf("failed to get object %s from bucket %s: %w", key, s.bucket, err)
	}
	return resp.Body, nil
}

func (s *S3Storage) Delete(ctx context.Context, p string) error {
	key := s.key(p)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s from bucket %s: %w", key, s.bucket, err)
	}
	return nil
}

func (s *S3Storage) GetURL(ctx context.Context, p string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", p, err)
	}
	return req.URL, nil
}

func (s *S3Storage) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", p, err)
	}
	return true, nil
}
