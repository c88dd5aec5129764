package storage

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// LocalStore keeps objects in a directory on the local filesystem. Signed
// URLs point at baseURL and carry an HMAC over the key and expiry; the store
// itself is the http.Handler that verifies and serves them, so it must be
// mounted at baseURL by the HTTP server.
type LocalStore struct {
	*BlobStore
	signer *fileblob.URLSignerHMAC
}

// NewLocalStore creates a LocalStore rooted at baseDir. The directory is
// created if it does not already exist.
func NewLocalStore(baseDir, baseURL string, secret []byte) (*LocalStore, error) {
	if len(secret) == 0 {
		return nil, errors.New("storage: local store requires a signing secret")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create local base directory %q: %w", baseDir, err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to resolve absolute path for %q: %w", baseDir, err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid base URL %q: %w", baseURL, err)
	}

	signer := fileblob.NewURLSignerHMAC(base, secret)
	b, err := fileblob.OpenBucket(abs, &fileblob.Options{URLSigner: signer})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open local bucket %q: %w", abs, err)
	}

	return &LocalStore{BlobStore: NewBlobStore(b), signer: signer}, nil
}

// ServeHTTP serves an object addressed by a URL previously issued by
// SignedURL. Tampered or expired URLs are rejected with 403.
func (s *LocalStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key, err := s.signer.KeyFromURL(r.Context(), r.URL)
	if err != nil {
		http.Error(w, "invalid or expired signature", http.StatusForbidden)
		return
	}

	data, err := s.bucket.ReadAll(r.Context(), key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			http.NotFound(w, r)
			return
		}
		logrus.WithField("storage_key", key).WithError(err).Error("Failed to read local object")
		http.Error(w, "failed to read object", http.StatusInternalServerError)
		return
	}

	contentType := ""
	if attrs, err := s.bucket.Attributes(r.Context(), key); err == nil {
		contentType = attrs.ContentType
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}
