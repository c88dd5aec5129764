package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomasbasham/album-export/internal/fetch"
	"github.com/tomasbasham/album-export/internal/operation"
	"github.com/tomasbasham/album-export/internal/storage"
)

type testEnv struct {
	url   string
	store *storage.LocalStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var handler http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	store, err := storage.NewLocalStore(t.TempDir(), ts.URL+"/objects", []byte("test-secret"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := New(operation.NewMemoryStore(), Options{
		Signer:   store,
		Uploader: store,
		Fetcher:  fetch.NewClient(fetch.DefaultOptions()),
		Objects:  store,
		Workers:  2,
		Logger:   logger,
	})
	t.Cleanup(srv.Close)
	handler = srv.Handler()

	return &testEnv{url: ts.URL, store: store}
}

func (e *testEnv) seed(t *testing.T, n int) string {
	t.Helper()

	var photos []string
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("user-1/%d.jpg", i)
		_, err := e.store.Upload(context.Background(), &storage.UploadRequest{
			ObjectName:  key,
			Content:     strings.NewReader("photo " + key),
			ContentType: "image/jpeg",
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		photos = append(photos, fmt.Sprintf(
			`{"storage_path":%q,"file_name":"IMG.JPG","created_at":"2024-03-%02dT12:00:00Z"}`, key, i+1))
	}
	return fmt.Sprintf(`{"album":"Trip!","photos":[%s]}`, strings.Join(photos, ","))
}

func (e *testEnv) create(t *testing.T, body string) (int, map[string]string) {
	t.Helper()

	resp, err := http.Post(e.url+"/exports", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /exports: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (e *testEnv) waitFor(t *testing.T, id string) *operation.Operation {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(e.url + "/exports/" + id)
		if err != nil {
			t.Fatalf("GET /exports/%s: %v", id, err)
		}
		var op operation.Operation
		err = json.NewDecoder(resp.Body).Decode(&op)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode operation: %v", err)
		}
		if op.Status == operation.StatusComplete || op.Status == operation.StatusFailed {
			return &op
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("operation %s did not finish", id)
	return nil
}

func TestCreateExport(t *testing.T) {
	tests := []struct {
		name      string
		photos    int
		artefacts int
	}{
		{"direct", 3, 3},
		{"archive", 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			status, out := env.create(t, env.seed(t, tt.photos))
			if status != http.StatusAccepted {
				t.Fatalf("expected 202, got %d", status)
			}
			if out["status"] != string(operation.StatusPending) || out["operation_id"] == "" {
				t.Fatalf("unexpected response %v", out)
			}

			op := env.waitFor(t, out["operation_id"])
			if op.Status != operation.StatusComplete {
				t.Fatalf("expected complete, got %s: %s", op.Status, op.Error)
			}
			if op.Strategy != tt.name {
				t.Errorf("expected strategy %s, got %s", tt.name, op.Strategy)
			}
			if len(op.Artefacts) != tt.artefacts {
				t.Errorf("expected %d artefacts, got %d", tt.artefacts, len(op.Artefacts))
			}

			resp, err := http.Get(op.Artefacts[0].SignedURL)
			if err != nil {
				t.Fatalf("GET artefact: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected artefact to be served, got %d", resp.StatusCode)
			}
		})
	}
}

func TestCreateExportBadRequest(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "album: Trip"},
		{"no photos", `{"album":"Trip","photos":[]}`},
		{"unknown field", `{"album":"Trip","url":"x","photos":[{"storage_path":"k","created_at":"2024-03-01T12:00:00Z"}]}`},
		{"missing storage path", `{"album":"Trip","photos":[{"created_at":"2024-03-01T12:00:00Z"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := env.create(t, tt.body)
			if status != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", status)
			}
		})
	}
}

func TestCreateExportMissingPhoto(t *testing.T) {
	env := newTestEnv(t)

	body := env.seed(t, 2)
	body = strings.Replace(body, "user-1/1.jpg", "user-1/missing.jpg", 1)

	_, out := env.create(t, body)
	op := env.waitFor(t, out["operation_id"])
	if op.Status != operation.StatusFailed {
		t.Fatalf("expected failed, got %s", op.Status)
	}
	if op.Processed != 1 {
		t.Errorf("expected 1 processed, got %d", op.Processed)
	}
}

func TestGetExportNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.url + "/exports/does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestObjectsRejectsUnsignedRequests(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 1)

	resp, err := http.Get(env.url + "/objects?obj=user-1/0.jpg")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.url + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "album_operations_in_flight") {
		t.Error("expected album_operations_in_flight in metrics output")
	}
}
