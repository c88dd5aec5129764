package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes a selection to export: the album it belongs to, an
// optional folder the whole selection lives in, the folder names known to the
// album, and the photos themselves in export order.
//
//	album: Our Love Story
//	folder: Honeymoon
//	folders:
//	  f1: Day One
//	photos:
//	  - storage_path: user-1/1709251200000-abc123.jpg
//	    file_name: IMG_0001.JPG
//	    created_at: 2024-03-01T12:00:00Z
//	    folder_id: f1
type Manifest struct {
	Album   string            `yaml:"album" json:"album"`
	Folder  string            `yaml:"folder,omitempty" json:"folder,omitempty"`
	Folders map[string]string `yaml:"folders,omitempty" json:"folders,omitempty"`
	Photos  []Photo           `yaml:"photos" json:"photos"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	return ReadManifest(f)
}

// ReadManifest decodes and validates a manifest. Unknown fields are rejected.
func ReadManifest(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("manifest is empty")
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every photo can be exported.
func (m *Manifest) Validate() error {
	if len(m.Photos) == 0 {
		return ErrEmptySelection
	}
	for i, p := range m.Photos {
		if p.StorageKey == "" {
			return fmt.Errorf("photos[%d]: storage_path is required", i)
		}
		if p.CreatedAt.IsZero() {
			return fmt.Errorf("photos[%d]: created_at is required", i)
		}
	}
	return nil
}

// Context returns the naming context for the manifest.
func (m *Manifest) Context() Context {
	return Context{AlbumName: m.Album, FolderName: m.Folder}
}

// FolderResolver returns a resolver backed by the manifest's folder table,
// or nil when it has none.
func (m *Manifest) FolderResolver() FolderResolver {
	if len(m.Folders) == 0 {
		return nil
	}
	return func(id string) string { return m.Folders[id] }
}

// ContextFor returns the naming context for one photo, with its folder
// resolved through the folder table.
func (m *Manifest) ContextFor(p Photo) Context {
	ec := m.Context()
	ec.FolderName = resolveFolder(p, ec, m.FolderResolver())
	return ec
}

// Find returns the photo with the given storage key.
func (m *Manifest) Find(storageKey string) (Photo, bool) {
	for _, p := range m.Photos {
		if p.StorageKey == storageKey {
			return p, true
		}
	}
	return Photo{}, false
}
