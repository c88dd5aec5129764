package export

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"
)

// Compression selects how archive entries are stored.
type Compression string

const (
	// CompressionStore keeps entries uncompressed. Photos are already
	// compressed, so this is the default.
	CompressionStore   Compression = "store"
	CompressionDeflate Compression = "deflate"
)

// ParseCompression validates a compression name. The empty string selects
// CompressionStore.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionStore:
		return CompressionStore, nil
	case CompressionDeflate:
		return CompressionDeflate, nil
	default:
		return "", fmt.Errorf("export: unknown compression %q", s)
	}
}

// Archive builds a single archive in memory.
type Archive interface {
	// Has reports whether an entry with this name was already inserted.
	Has(name string) bool

	// Put inserts one entry.
	Put(name string, modified time.Time, data []byte) error

	// Finalize serializes the archive. No entries may be inserted after it
	// is called.
	Finalize() ([]byte, error)
}

// ArchiveFactory creates an empty Archive for one bulk export.
type ArchiveFactory func() Archive

var errArchiveFinalized = errors.New("archive already finalized")

// ZipArchive is an Archive producing a ZIP file.
type ZipArchive struct {
	buf       bytes.Buffer
	w         *zip.Writer
	method    uint16
	names     map[string]struct{}
	finalized bool
}

// NewZipArchive creates an empty ZIP archive using the given compression.
func NewZipArchive(c Compression) *ZipArchive {
	a := &ZipArchive{
		method: zip.Store,
		names:  make(map[string]struct{}),
	}
	if c == CompressionDeflate {
		a.method = zip.Deflate
	}
	a.w = zip.NewWriter(&a.buf)
	return a
}

// ZipArchiveFactory returns an ArchiveFactory for ZIP archives.
func ZipArchiveFactory(c Compression) ArchiveFactory {
	return func() Archive { return NewZipArchive(c) }
}

func (a *ZipArchive) Has(name string) bool {
	_, ok := a.names[name]
	return ok
}

func (a *ZipArchive) Put(name string, modified time.Time, data []byte) error {
	if a.finalized {
		return errArchiveFinalized
	}
	if a.Has(name) {
		return fmt.Errorf("duplicate archive entry %q", name)
	}

	w, err := a.w.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   a.method,
		Modified: modified.UTC(),
	})
	if err != nil {
		return fmt.Errorf("create entry %q: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %q: %w", name, err)
	}

	a.names[name] = struct{}{}
	return nil
}

func (a *ZipArchive) Finalize() ([]byte, error) {
	if a.finalized {
		return nil, errArchiveFinalized
	}
	a.finalized = true
	if err := a.w.Close(); err != nil {
		return nil, err
	}
	return a.buf.Bytes(), nil
}
