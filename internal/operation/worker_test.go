package operation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomasbasham/album-export/internal/export"
	"github.com/tomasbasham/album-export/internal/fetch"
	"github.com/tomasbasham/album-export/internal/storage"
)

// newLocalStore returns a LocalStore whose signed URLs are served by an
// httptest server.
func newLocalStore(t *testing.T) *storage.LocalStore {
	t.Helper()

	var store *storage.LocalStore
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := storage.NewLocalStore(t.TempDir(), srv.URL+"/objects", []byte("test-secret"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedPhotos(t *testing.T, store *storage.LocalStore, n int) *export.Manifest {
	t.Helper()

	m := &export.Manifest{Album: "Trip!"}
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("user-1/%d.jpg", i)
		_, err := store.Upload(context.Background(), &storage.UploadRequest{
			ObjectName:  key,
			Content:     strings.NewReader("photo " + key),
			ContentType: "image/jpeg",
		})
		if err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
		m.Photos = append(m.Photos, export.Photo{
			StorageKey: key,
			FileName:   "IMG.JPG",
			CreatedAt:  time.Date(2024, 3, i+1, 12, 0, 0, 0, time.UTC),
		})
	}
	return m
}

func runExport(t *testing.T, store *storage.LocalStore, m *export.Manifest) *Operation {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ops := NewMemoryStore()
	op, _ := ops.Create(m.Album, len(m.Photos))

	Run(context.Background(), WorkerOptions{
		OperationID: op.ID,
		Store:       ops,
		Manifest:    m,
		Signer:      store,
		Uploader:    store,
		Fetcher:     fetch.NewClient(fetch.DefaultOptions()),
		Logger:      logger,
	})

	got, err := ops.Get(op.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return got
}

func TestRunDirect(t *testing.T) {
	store := newLocalStore(t)
	m := seedPhotos(t, store, 3)

	op := runExport(t, store, m)
	if op.Status != StatusComplete {
		t.Fatalf("expected complete, got %s: %s", op.Status, op.Error)
	}
	if op.Strategy != string(export.StrategyDirect) {
		t.Errorf("expected direct strategy, got %q", op.Strategy)
	}
	if op.Progress != (Progress{Current: 3, Total: 3}) {
		t.Errorf("unexpected progress %+v", op.Progress)
	}
	if len(op.Artefacts) != 3 {
		t.Fatalf("expected 3 artefacts, got %d", len(op.Artefacts))
	}
	if op.Artefacts[0].Name != "Trip_2024-03-01.jpg" {
		t.Errorf("unexpected artefact name %q", op.Artefacts[0].Name)
	}

	// The artefact URL must serve the exported bytes.
	resp, err := http.Get(op.Artefacts[0].SignedURL)
	if err != nil {
		t.Fatalf("GET artefact: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "photo user-1/0.jpg" {
		t.Errorf("unexpected artefact body %q", body)
	}
}

func TestRunArchive(t *testing.T) {
	store := newLocalStore(t)
	m := seedPhotos(t, store, 10)

	op := runExport(t, store, m)
	if op.Status != StatusComplete {
		t.Fatalf("expected complete, got %s: %s", op.Status, op.Error)
	}
	if op.Strategy != string(export.StrategyArchive) {
		t.Errorf("expected archive strategy, got %q", op.Strategy)
	}
	if len(op.Artefacts) != 1 || op.Artefacts[0].Name != "Trip.zip" {
		t.Errorf("expected a single Trip.zip artefact, got %+v", op.Artefacts)
	}
}

func TestRunMissingPhoto(t *testing.T) {
	store := newLocalStore(t)
	m := seedPhotos(t, store, 4)
	m.Photos[2].StorageKey = "user-1/missing.jpg"

	op := runExport(t, store, m)
	if op.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", op.Status)
	}
	if op.Processed != 2 {
		t.Errorf("expected 2 processed, got %d", op.Processed)
	}
	if !strings.Contains(op.Error, "user-1/missing.jpg") {
		t.Errorf("expected error to name the missing photo, got %q", op.Error)
	}
}

func TestObjectPath(t *testing.T) {
	got := objectPath("op-1", "Trip.zip")
	date := time.Now().UTC().Format("2006/01/02")
	if want := "exports/" + date + "/op-1/Trip.zip"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
