// Package save delivers exported files to the user's machine.
package save

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// maxRenames bounds the search for a free "name (n).ext" slot.
const maxRenames = 1000

// DirSaver writes exported files into a directory. Like a browser download
// folder it never overwrites: when name is taken the file is saved as
// "name (1).ext", "name (2).ext" and so on.
//
// Files are written to a temporary file in the same directory and renamed
// into place, so a failed save leaves nothing behind.
type DirSaver struct {
	dir    string
	logger logrus.FieldLogger
}

// NewDirSaver creates a DirSaver writing into dir, creating it if needed.
func NewDirSaver(dir string, logger logrus.FieldLogger) (*DirSaver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("save: failed to create directory %q: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("save: failed to resolve absolute path for %q: %w", dir, err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DirSaver{dir: abs, logger: logger}, nil
}

// Dir returns the absolute directory files are saved to.
func (s *DirSaver) Dir() string {
	return s.dir
}

func (s *DirSaver) Save(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("save: invalid file name %q", name)
	}

	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return fmt.Errorf("save: failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save: failed to write %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save: failed to close %q: %w", name, err)
	}

	dest, err := s.freePath(name)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("save: failed to move %q into place: %w", name, err)
	}
	committed = true

	s.logger.WithField("path", dest).Debug("Saved file")
	return nil
}

// freePath returns the first path for name that does not exist yet.
func (s *DirSaver) freePath(name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; i <= maxRenames; i++ {
		path := filepath.Join(s.dir, candidate)
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("save: failed to stat %q: %w", path, err)
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
	}
	return "", fmt.Errorf("save: no free file name for %q", name)
}
