package operation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/tomasbasham/album-export/internal/export"
	"github.com/tomasbasham/album-export/internal/storage"
)

// WorkerOptions configures an export worker invocation.
type WorkerOptions struct {
	OperationID string
	Store       Store

	// Manifest is the selection to export.
	Manifest *export.Manifest

	// Signer issues URLs for the photos; Uploader receives the artefacts.
	Signer   storage.Signer
	Uploader storage.Uploader
	Fetcher  export.Fetcher

	ExportOptions export.Options
	Logger        logrus.FieldLogger
}

// Run executes an export, uploads the resulting files as artefacts, and
// transitions the operation through running → complete | failed.
//
// Run owns the full lifecycle of the operation from the moment it is called.
func Run(ctx context.Context, opts WorkerOptions) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("operation_id", opts.OperationID)

	saver := NewArtefactSaver(opts.OperationID, opts.Uploader)

	exportOpts := opts.ExportOptions
	exportOpts.Logger = log
	// Pacing only protects browser downloads.
	exportOpts.DisablePacing = true
	exporter := export.New(opts.Signer, opts.Fetcher, saver, exportOpts)

	strategy := exporter.StrategyFor(len(opts.Manifest.Photos))
	if err := opts.Store.MarkRunning(opts.OperationID, string(strategy)); err != nil {
		// If we cannot even mark it running the store is broken; nothing to do.
		log.WithError(err).Error("Could not mark operation running")
		return
	}

	progress := func(current, total int) {
		_ = opts.Store.MarkProgress(opts.OperationID, current, total)
	}

	_, err := exporter.ExportPhotos(ctx, opts.Manifest.Photos, opts.Manifest.Context(), opts.Manifest.FolderResolver(), progress)
	if err != nil {
		processed := 0
		var agg *export.AggregateExportError
		if errors.As(err, &agg) {
			processed = agg.Processed
		}
		_ = opts.Store.MarkFailed(opts.OperationID, processed, err)
		return
	}

	_ = opts.Store.MarkComplete(opts.OperationID, saver.Artefacts())
}

// ArtefactSaver is an export.Saver that uploads every saved file under the
// operation's prefix and records the signed URL of each as an Artefact.
type ArtefactSaver struct {
	operationID string
	uploader    storage.Uploader

	mu        sync.Mutex
	artefacts []Artefact
}

// NewArtefactSaver creates a saver for one operation.
func NewArtefactSaver(operationID string, uploader storage.Uploader) *ArtefactSaver {
	return &ArtefactSaver{operationID: operationID, uploader: uploader}
}

func (s *ArtefactSaver) Save(ctx context.Context, name string, data []byte) error {
	uploaded, err := s.uploader.Upload(ctx, &storage.UploadRequest{
		ObjectName:  objectPath(s.operationID, name),
		Content:     bytes.NewReader(data),
		ContentType: mimetype.Detect(data).String(),
	})
	if err != nil {
		return fmt.Errorf("upload %q: %w", name, err)
	}

	s.mu.Lock()
	s.artefacts = append(s.artefacts, Artefact{
		Name:      name,
		SignedURL: uploaded.SignedURL,
		ExpiresAt: uploaded.ExpiresAt,
	})
	s.mu.Unlock()
	return nil
}

// Artefacts returns the artefacts saved so far, in save order.
func (s *ArtefactSaver) Artefacts() []Artefact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Artefact(nil), s.artefacts...)
}

func objectPath(operationID, filename string) string {
	date := time.Now().UTC().Format("2006/01/02")
	return fmt.Sprintf("exports/%s/%s/%s", date, operationID, filename)
}
