package save

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestSaver(t *testing.T) *DirSaver {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s, err := NewDirSaver(filepath.Join(t.TempDir(), "exports"), logger)
	if err != nil {
		t.Fatalf("NewDirSaver: %v", err)
	}
	return s
}

func TestDirSaverSave(t *testing.T) {
	s := newTestSaver(t)

	if err := s.Save(context.Background(), "Trip_2024-03-01.jpg", []byte("photo")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(s.Dir(), "Trip_2024-03-01.jpg"))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(got) != "photo" {
		t.Errorf("expected %q, got %q", "photo", got)
	}
	assertNoPartials(t, s.Dir())
}

func TestDirSaverDoesNotOverwrite(t *testing.T) {
	s := newTestSaver(t)
	ctx := context.Background()

	for _, data := range []string{"first", "second", "third"} {
		if err := s.Save(ctx, "Trip.zip", []byte(data)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	want := map[string]string{
		"Trip.zip":     "first",
		"Trip (1).zip": "second",
		"Trip (2).zip": "third",
	}
	for name, data := range want {
		got, err := os.ReadFile(filepath.Join(s.Dir(), name))
		if err != nil {
			t.Errorf("read %s: %v", name, err)
			continue
		}
		if string(got) != data {
			t.Errorf("%s: expected %q, got %q", name, data, got)
		}
	}
}

func TestDirSaverRejectsPaths(t *testing.T) {
	s := newTestSaver(t)

	for _, name := range []string{"", "../escape.jpg", "nested/file.jpg"} {
		if err := s.Save(context.Background(), name, []byte("x")); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
	assertNoPartials(t, s.Dir())
}

func TestDirSaverCancelled(t *testing.T) {
	s := newTestSaver(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Save(ctx, "a.jpg", []byte("x")); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "a.jpg")); !os.IsNotExist(err) {
		t.Errorf("expected no file, got %v", err)
	}
}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, ".partial-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no temporary files, got %v", matches)
	}
}
