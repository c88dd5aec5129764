package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSStore keeps photos in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a GCSStore for the given bucket. opts are passed
// through to the underlying GCS client, allowing credential injection.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("storage: GCS bucket name is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// SignedURL checks that the object exists and signs a GET URL valid for ttl.
func (s *GCSStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (*DownloadURL, error) {
	if _, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("storage: %q: %w: %w", key, ErrObjectNotFound, err)
		}
		return nil, fmt.Errorf("storage: failed to stat %q: %w", key, err)
	}

	issuedAt := time.Now()
	signedURL, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: issuedAt.Add(ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to sign URL for %q: %w", key, err)
	}

	return &DownloadURL{StorageKey: key, URL: signedURL, IssuedAt: issuedAt, TTL: ttl}, nil
}

// Upload writes content to GCS at ObjectName and returns a signed URL.
func (s *GCSStore) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	obj := s.client.Bucket(s.bucket).Object(req.ObjectName)
	if req.IfNotExists {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.ContentType = req.ContentType

	if _, err := io.Copy(w, req.Content); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("storage: upload write failed for %q: %w", req.ObjectName, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return nil, fmt.Errorf("storage: %q: %w", req.ObjectName, ErrObjectExists)
		}
		return nil, fmt.Errorf("storage: upload close failed for %q: %w", req.ObjectName, err)
	}

	return signAfterUpload(ctx, s, req.ObjectName)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
