package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// newS3Server fakes just enough of the S3 API for HEAD object requests.
func newS3Server(t *testing.T, objects map[string]bool) *S3Store {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, "/photos/")
		if !objects[key] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", "4")
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	store, err := NewS3Store(S3Options{
		Endpoint:        u.Host,
		Region:          "us-east-1",
		Bucket:          "photos",
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	return store
}

func TestS3StoreSignedURL(t *testing.T) {
	store := newS3Server(t, map[string]bool{"user-1/a.jpg": true})

	u, err := store.SignedURL(context.Background(), "user-1/a.jpg", time.Minute)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}

	parsed, err := url.Parse(u.URL)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	if parsed.Path != "/photos/user-1/a.jpg" {
		t.Errorf("unexpected path %q", parsed.Path)
	}
	if got := parsed.Query().Get("X-Amz-Expires"); got != "60" {
		t.Errorf("expected X-Amz-Expires=60, got %q", got)
	}
}

func TestS3StoreSignedURLMissingObject(t *testing.T) {
	store := newS3Server(t, nil)

	_, err := store.SignedURL(context.Background(), "user-1/missing.jpg", time.Minute)
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestS3StoreUploadIfNotExists(t *testing.T) {
	store := newS3Server(t, map[string]bool{"user-1/a.jpg": true})

	_, err := store.Upload(context.Background(), &UploadRequest{
		ObjectName:  "user-1/a.jpg",
		Content:     strings.NewReader("data"),
		IfNotExists: true,
	})
	if !errors.Is(err, ErrObjectExists) {
		t.Errorf("expected ErrObjectExists, got %v", err)
	}
}

func TestNewS3StoreRequiresEndpointAndBucket(t *testing.T) {
	if _, err := NewS3Store(S3Options{Bucket: "photos"}); err == nil {
		t.Error("expected error without endpoint")
	}
	if _, err := NewS3Store(S3Options{Endpoint: "localhost:9000"}); err == nil {
		t.Error("expected error without bucket")
	}
}
