package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobStore keeps photos in any bucket the Go CDK can open: gs://, s3://,
// file:// or mem://. Signing support depends on the driver; mem:// buckets
// cannot sign URLs.
type BlobStore struct {
	bucket *blob.Bucket
}

// OpenBlobStore opens the bucket at bucketURL.
func OpenBlobStore(ctx context.Context, bucketURL string) (*BlobStore, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open bucket %q: %w", bucketURL, err)
	}
	return NewBlobStore(b), nil
}

// NewBlobStore wraps an already opened bucket. The store takes ownership of
// the bucket and closes it in Close.
func NewBlobStore(b *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: b}
}

// SignedURL checks that the object exists and signs a GET URL valid for ttl.
func (s *BlobStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (*DownloadURL, error) {
	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to stat %q: %w", key, err)
	}
	if !exists {
		return nil, fmt.Errorf("storage: %q: %w", key, ErrObjectNotFound)
	}

	issuedAt := time.Now()
	signedURL, err := s.bucket.SignedURL(ctx, key, &blob.SignedURLOptions{Expiry: ttl})
	if err != nil {
		if gcerrors.Code(err) == gcerrors.Unimplemented {
			return nil, fmt.Errorf("storage: bucket cannot sign URLs: %w", err)
		}
		return nil, fmt.Errorf("storage: failed to sign URL for %q: %w", key, err)
	}

	return &DownloadURL{StorageKey: key, URL: signedURL, IssuedAt: issuedAt, TTL: ttl}, nil
}

// Upload writes content to the bucket and returns a signed URL.
func (s *BlobStore) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req.IfNotExists {
		exists, err := s.bucket.Exists(ctx, req.ObjectName)
		if err != nil {
			return nil, fmt.Errorf("storage: failed to stat %q: %w", req.ObjectName, err)
		}
		if exists {
			return nil, fmt.Errorf("storage: %q: %w", req.ObjectName, ErrObjectExists)
		}
	}

	w, err := s.bucket.NewWriter(ctx, req.ObjectName, &blob.WriterOptions{ContentType: req.ContentType})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open writer for %q: %w", req.ObjectName, err)
	}
	if _, err := io.Copy(w, req.Content); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("storage: upload write failed for %q: %w", req.ObjectName, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("storage: upload close failed for %q: %w", req.ObjectName, err)
	}

	return signAfterUpload(ctx, s, req.ObjectName)
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
