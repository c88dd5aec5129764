// Package storage abstracts the object store holding album photos. Stores
// issue short-lived signed URLs for reading objects and accept uploads of new
// photos and export artefacts.
//
// GCSStore, S3Store and BlobStore talk to hosted object stores; LocalStore
// keeps objects on disk and signs URLs served by this program's own HTTP
// server.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ArtefactURLTTL is how long signed URLs returned from Upload stay valid.
const ArtefactURLTTL = 1 * time.Hour

var (
	// ErrObjectExists is returned by Upload when IfNotExists is set and the
	// object is already present.
	ErrObjectExists = errors.New("storage: object already exists")

	// ErrObjectNotFound is returned when signing a URL for a missing object.
	ErrObjectNotFound = errors.New("storage: object not found")
)

// DownloadURL is a signed URL granting read access to one object until
// IssuedAt+TTL. It must be used promptly and never cached.
type DownloadURL struct {
	StorageKey string
	URL        string
	IssuedAt   time.Time
	TTL        time.Duration
}

// ExpiresAt is when the URL stops working.
func (u *DownloadURL) ExpiresAt() time.Time {
	return u.IssuedAt.Add(u.TTL)
}

// Signer issues signed download URLs.
type Signer interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (*DownloadURL, error)
}

// Uploader persists objects to a storage backend and returns signed URLs.
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
}

// Store is a backend that can both sign and upload.
type Store interface {
	Signer
	Uploader
	Close() error
}

type UploadRequest struct {
	// ObjectName is the object path within the configured bucket.
	ObjectName string

	// Content is the data to be uploaded.
	Content io.Reader

	// ContentType is the MIME type of the content, e.g. "image/jpeg".
	ContentType string

	// IfNotExists makes the upload fail with ErrObjectExists rather than
	// overwrite an existing object.
	IfNotExists bool
}

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	// ObjectName is the object path within the configured bucket.
	ObjectName string

	// SignedURL provides time-limited access to the object.
	SignedURL string

	// ExpiresAt is when the signed URL becomes invalid.
	ExpiresAt time.Time
}

// signAfterUpload issues the artefact URL returned from Upload.
func signAfterUpload(ctx context.Context, s Signer, objectName string) (*UploadResult, error) {
	u, err := s.SignedURL(ctx, objectName, ArtefactURLTTL)
	if err != nil {
		return nil, err
	}
	return &UploadResult{
		ObjectName: objectName,
		SignedURL:  u.URL,
		ExpiresAt:  u.ExpiresAt(),
	}, nil
}
