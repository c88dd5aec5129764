package export

import (
	"errors"
	"fmt"
)

// ErrEmptySelection is returned when a bulk export is asked to export nothing.
var ErrEmptySelection = errors.New("export: no photos selected")

// DownloadURLUnavailableError is returned when the object store could not
// issue a signed URL for a photo: the object is missing, access is denied, or
// the store failed transiently. It is never retried.
type DownloadURLUnavailableError struct {
	StorageKey string
	Err        error
}

func (e *DownloadURLUnavailableError) Error() string {
	return fmt.Sprintf("download url unavailable for %q: %v", e.StorageKey, e.Err)
}

func (e *DownloadURLUnavailableError) Unwrap() error { return e.Err }

// FetchFailedError is returned when a URL was issued but fetching its bytes
// failed, including when the URL expired before the fetch ran.
type FetchFailedError struct {
	StorageKey string
	Err        error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch failed for %q: %v", e.StorageKey, e.Err)
}

func (e *FetchFailedError) Unwrap() error { return e.Err }

// SaveFailedError is returned when the platform refused to save a file.
type SaveFailedError struct {
	Name string
	Err  error
}

func (e *SaveFailedError) Error() string {
	return fmt.Sprintf("save failed for %q: %v", e.Name, e.Err)
}

func (e *SaveFailedError) Unwrap() error { return e.Err }

// ArchiveFinalizationError is returned when serializing the archive failed
// after every item was inserted.
type ArchiveFinalizationError struct {
	Err error
}

func (e *ArchiveFinalizationError) Error() string {
	return fmt.Sprintf("archive finalization failed: %v", e.Err)
}

func (e *ArchiveFinalizationError) Unwrap() error { return e.Err }

// AggregateExportError is what a bulk export returns on failure. Processed
// counts the items completed before the failure; the wrapped error is the
// first failure encountered.
//
// Use errors.As to extract it, then errors.As again on Err (or directly on
// the aggregate, which unwraps) to find the failing component.
type AggregateExportError struct {
	Processed int
	Total     int
	Err       error
}

func (e *AggregateExportError) Error() string {
	return fmt.Sprintf("export failed after %d of %d photos: %v", e.Processed, e.Total, e.Err)
}

func (e *AggregateExportError) Unwrap() error { return e.Err }
