package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures an S3-compatible endpoint.
type S3Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// S3Store keeps photos in an S3-compatible bucket, including the S3 endpoint
// exposed by hosted backends.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store creates an S3Store. No request is made until the store is used.
func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, errors.New("storage: S3 endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Region: opts.Region,
		Secure: opts.UseSSL,
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create S3 client: %w", err)
	}
	return &S3Store{client: client, bucket: opts.Bucket}, nil
}

// SignedURL checks that the object exists and presigns a GET URL valid for
// ttl. S3 rejects expiries below one second.
func (s *S3Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (*DownloadURL, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.stat(ctx, key); err != nil {
		return nil, err
	}

	issuedAt := time.Now()
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to presign URL for %q: %w", key, err)
	}

	return &DownloadURL{StorageKey: key, URL: u.String(), IssuedAt: issuedAt, TTL: ttl}, nil
}

// Upload writes content to the bucket and returns a presigned URL. The
// IfNotExists check is a stat before the put, so concurrent writers to the
// same key can still race.
func (s *S3Store) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req.IfNotExists {
		err := s.stat(ctx, req.ObjectName)
		if err == nil {
			return nil, fmt.Errorf("storage: %q: %w", req.ObjectName, ErrObjectExists)
		}
		if !errors.Is(err, ErrObjectNotFound) {
			return nil, err
		}
	}

	_, err := s.client.PutObject(ctx, s.bucket, req.ObjectName, req.Content, -1, minio.PutObjectOptions{
		ContentType: req.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: upload failed for %q: %w", req.ObjectName, err)
	}

	return signAfterUpload(ctx, s, req.ObjectName)
}

func (s *S3Store) Close() error {
	return nil
}

func (s *S3Store) stat(ctx context.Context, key string) error {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("storage: %q: %w", key, ErrObjectNotFound)
	}
	return fmt.Errorf("storage: failed to stat %q: %w", key, err)
}
