// Package export turns a selection of stored photos into files offered to the
// user: one file per photo for small selections, a single ZIP archive for
// large ones.
//
// Every photo is fetched through a freshly issued signed URL. URLs are never
// cached across items because their lifetime is shorter than the time taken
// to assemble a large archive. Items are processed strictly in selection
// order, one at a time:
//
//	selection → signed URL → fetch → name → save (direct)
//	                                      → archive entry → save archive (bulk)
package export

import (
	"time"
)

// Photo is the read-only view of a stored photo that the pipeline needs.
// StorageKey identifies the object in the object store.
type Photo struct {
	StorageKey string    `yaml:"storage_path" json:"storage_path"`
	FileName   string    `yaml:"file_name" json:"file_name"`
	CreatedAt  time.Time `yaml:"created_at" json:"created_at"`

	// FolderID is empty for photos that live in "All Photos".
	FolderID string `yaml:"folder_id,omitempty" json:"folder_id,omitempty"`
}

// Context carries the caller-supplied names used to derive filenames. It is
// never persisted.
type Context struct {
	AlbumName  string
	FolderName string
}

// FolderResolver maps a photo's folder identifier to a display name. It
// returns the empty string when the folder is unknown.
type FolderResolver func(folderID string) string

// ProgressFunc observes bulk export progress. current counts fully completed
// items and total is fixed for the lifetime of one call.
type ProgressFunc func(current, total int)

// Strategy identifies how a bulk export delivered its files.
type Strategy string

const (
	StrategyDirect  Strategy = "direct"
	StrategyArchive Strategy = "archive"
)

// Result describes the files offered to the user by a successful export.
type Result struct {
	Strategy Strategy

	// Files lists saved filenames in selection order. For the archive
	// strategy it holds the archive entry names.
	Files []string

	// Archive is the name of the saved archive, empty for direct exports.
	Archive string

	// ArchiveSize is the serialized archive size in bytes.
	ArchiveSize int
}
