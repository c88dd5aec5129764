package export

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/tomasbasham/album-export/internal/metrics"
	"github.com/tomasbasham/album-export/internal/storage"
)

const (
	// DefaultArchiveThreshold is the selection size from which photos are
	// bundled into one archive instead of saved one by one. Browsers drop
	// rapid-fire downloads from a single gesture well before this many.
	DefaultArchiveThreshold = 10

	// DefaultPacingDelay separates consecutive direct saves.
	DefaultPacingDelay = 300 * time.Millisecond

	// DefaultURLTTL is the lifetime requested for each signed URL.
	DefaultURLTTL = 60 * time.Second
)

// Fetcher downloads the bytes behind an issued URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Saver offers a file to the user under the given name. Implementations must
// not leave a partially written file behind when they fail.
type Saver interface {
	Save(ctx context.Context, name string, data []byte) error
}

// Options configures an Exporter. Zero values select the defaults.
type Options struct {
	// ArchiveThreshold is the smallest selection exported as an archive.
	ArchiveThreshold int

	// PacingDelay is the wait between consecutive direct saves.
	PacingDelay time.Duration

	// DisablePacing removes the wait between direct saves, for savers that
	// are not subject to browser download throttling.
	DisablePacing bool

	// URLTTL is the lifetime requested for each signed URL.
	URLTTL time.Duration

	// NewArchive creates the archive for one bulk export. Defaults to an
	// uncompressed ZIP.
	NewArchive ArchiveFactory

	Logger logrus.FieldLogger
}

// Exporter fetches photos through signed URLs and hands them to a Saver. It
// keeps no state between calls: exporting the same selection twice produces
// two independent exports.
type Exporter struct {
	signer  storage.Signer
	fetcher Fetcher
	saver   Saver
	opts    Options

	// sleep waits out the pacing delay; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Exporter.
func New(signer storage.Signer, fetcher Fetcher, saver Saver, opts Options) *Exporter {
	if opts.ArchiveThreshold <= 0 {
		opts.ArchiveThreshold = DefaultArchiveThreshold
	}
	if opts.PacingDelay <= 0 {
		opts.PacingDelay = DefaultPacingDelay
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = DefaultURLTTL
	}
	if opts.NewArchive == nil {
		opts.NewArchive = ZipArchiveFactory(CompressionStore)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Exporter{
		signer:  signer,
		fetcher: fetcher,
		saver:   saver,
		opts:    opts,
		sleep:   sleepContext,
	}
}

// ExportPhoto fetches one photo and saves it under its built filename, which
// it returns. On failure nothing is saved and the error identifies the photo
// through its storage key.
func (e *Exporter) ExportPhoto(ctx context.Context, p Photo, ec Context) (string, error) {
	name := BuildFilename(p, ec.AlbumName, ec.FolderName)

	err := e.exportOne(ctx, p, name)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("single", "failure").Inc()
		return "", err
	}

	metrics.ExportsTotal.WithLabelValues("single", "success").Inc()
	metrics.ExportItemsTotal.Inc()
	return name, nil
}

// exportOne is the fetch → save sequence shared with the direct strategy.
func (e *Exporter) exportOne(ctx context.Context, p Photo, name string) error {
	data, err := e.fetchPhoto(ctx, p)
	if err != nil {
		return err
	}
	if err := e.saver.Save(ctx, name, data); err != nil {
		return &SaveFailedError{Name: name, Err: err}
	}
	return nil
}

// fetchPhoto requests a fresh signed URL and downloads the photo through it.
// The URL is used once and dropped.
func (e *Exporter) fetchPhoto(ctx context.Context, p Photo) ([]byte, error) {
	log := e.opts.Logger.WithField("storage_key", p.StorageKey)

	u, err := e.signer.SignedURL(ctx, p.StorageKey, e.opts.URLTTL)
	if err != nil {
		metrics.SignedURLsTotal.WithLabelValues("failure").Inc()
		log.WithError(err).Warn("Could not issue download URL")
		return nil, &DownloadURLUnavailableError{StorageKey: p.StorageKey, Err: err}
	}
	metrics.SignedURLsTotal.WithLabelValues("success").Inc()

	data, err := e.fetcher.Fetch(ctx, u.URL)
	if err != nil {
		log.WithError(err).Warn("Could not fetch photo")
		return nil, &FetchFailedError{StorageKey: p.StorageKey, Err: err}
	}

	metrics.FetchedBytesTotal.Add(float64(len(data)))
	log.WithField("size", humanize.IBytes(uint64(len(data)))).Debug("Fetched photo")
	return data, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsCancelled reports whether err stems from the export's context being
// cancelled or timing out.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
