package export

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/tomasbasham/album-export/internal/metrics"
)

// StrategyFor returns the strategy used for a selection of n photos.
func (e *Exporter) StrategyFor(n int) Strategy {
	if n >= e.opts.ArchiveThreshold {
		return StrategyArchive
	}
	return StrategyDirect
}

// ExportPhotos exports a selection in order. Selections smaller than the
// archive threshold are saved one file per photo with a pacing delay between
// saves; larger ones are bundled into a single archive named after the album.
//
// folders may be nil, in which case every photo uses ec.FolderName. progress
// may be nil; otherwise it is called once per completed photo with current
// running from 1 to len(photos).
//
// The first failure stops the export and is returned as an
// *AggregateExportError. Files already saved by the direct strategy stay
// saved; the archive strategy never saves a partial archive.
func (e *Exporter) ExportPhotos(ctx context.Context, photos []Photo, ec Context, folders FolderResolver, progress ProgressFunc) (*Result, error) {
	total := len(photos)
	if total == 0 {
		return nil, ErrEmptySelection
	}
	if progress == nil {
		progress = func(int, int) {}
	}

	strategy := e.StrategyFor(total)
	log := e.opts.Logger.WithFields(logrus.Fields{
		"album":    ec.AlbumName,
		"photos":   total,
		"strategy": strategy,
	})
	log.Info("Starting export")

	run := e.exportDirect
	if strategy == StrategyArchive {
		run = e.exportArchive
	}

	res, err := run(ctx, photos, ec, folders, progress, log)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues(string(strategy), "failure").Inc()
		log.WithError(err).Error("Export failed")
		return nil, err
	}

	metrics.ExportsTotal.WithLabelValues(string(strategy), "success").Inc()
	log.Info("Finished export")
	return res, nil
}

func (e *Exporter) exportDirect(ctx context.Context, photos []Photo, ec Context, folders FolderResolver, progress ProgressFunc, _ logrus.FieldLogger) (*Result, error) {
	total := len(photos)
	taken := make(map[string]struct{}, total)
	res := &Result{Strategy: StrategyDirect, Files: make([]string, 0, total)}

	for i, p := range photos {
		if i > 0 && !e.opts.DisablePacing {
			if err := e.sleep(ctx, e.opts.PacingDelay); err != nil {
				return nil, &AggregateExportError{Processed: i, Total: total, Err: err}
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, &AggregateExportError{Processed: i, Total: total, Err: err}
		}

		name := BuildFilename(p, ec.AlbumName, resolveFolder(p, ec, folders))
		if _, ok := taken[name]; ok {
			name = CollisionName(name, i+1)
		}

		if err := e.exportOne(ctx, p, name); err != nil {
			return nil, &AggregateExportError{Processed: i, Total: total, Err: err}
		}

		taken[name] = struct{}{}
		res.Files = append(res.Files, name)
		metrics.ExportItemsTotal.Inc()
		progress(i+1, total)
	}

	return res, nil
}

func (e *Exporter) exportArchive(ctx context.Context, photos []Photo, ec Context, folders FolderResolver, progress ProgressFunc, log logrus.FieldLogger) (*Result, error) {
	total := len(photos)
	archive := e.opts.NewArchive()
	res := &Result{Strategy: StrategyArchive, Files: make([]string, 0, total)}

	for i, p := range photos {
		if err := ctx.Err(); err != nil {
			return nil, &AggregateExportError{Processed: i, Total: total, Err: err}
		}

		data, err := e.fetchPhoto(ctx, p)
		if err != nil {
			return nil, &AggregateExportError{Processed: i, Total: total, Err: err}
		}

		name := BuildFilename(p, ec.AlbumName, resolveFolder(p, ec, folders))
		if archive.Has(name) {
			name = CollisionName(name, i+1)
		}
		if err := archive.Put(name, p.CreatedAt, data); err != nil {
			return nil, &AggregateExportError{
				Processed: i,
				Total:     total,
				Err:       fmt.Errorf("add %q to archive: %w", name, err),
			}
		}

		res.Files = append(res.Files, name)
		metrics.ExportItemsTotal.Inc()
		progress(i+1, total)
	}

	if err := ctx.Err(); err != nil {
		return nil, &AggregateExportError{Processed: total, Total: total, Err: err}
	}

	blob, err := archive.Finalize()
	if err != nil {
		return nil, &AggregateExportError{Processed: total, Total: total, Err: &ArchiveFinalizationError{Err: err}}
	}

	res.Archive = ArchiveName(ec.AlbumName)
	res.ArchiveSize = len(blob)
	log.WithField("size", humanize.IBytes(uint64(len(blob)))).Debug("Archive finalized")

	if err := e.saver.Save(ctx, res.Archive, blob); err != nil {
		return nil, &AggregateExportError{
			Processed: total,
			Total:     total,
			Err:       &SaveFailedError{Name: res.Archive, Err: err},
		}
	}

	return res, nil
}

// resolveFolder picks the folder name for a photo: the resolver's answer for
// its folder when there is one, otherwise the context's folder.
func resolveFolder(p Photo, ec Context, folders FolderResolver) string {
	if folders != nil && p.FolderID != "" {
		if name := folders(p.FolderID); name != "" {
			return name
		}
	}
	return ec.FolderName
}
