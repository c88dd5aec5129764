package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/album-export/internal/config"
	"github.com/tomasbasham/album-export/internal/export"
	"github.com/tomasbasham/album-export/internal/save"
)

type ExportOptions struct {
	root     *AlbumOptions
	cfg      config.Config
	manifest *export.Manifest

	ManifestPath     string
	OutDir           string
	StorageKey       string
	ArchiveThreshold int
	PacingDelay      time.Duration
	Compression      string

	iooption.IOStreams
}

var (
	exportLong = templates.LongDesc(`
		Export the photos listed in a manifest into a directory.

		Each photo is fetched through a freshly signed URL. Selections below
		the archive threshold are saved as individual files; larger ones are
		saved as a single ZIP archive named after the album. Existing files
		are never overwritten.`)

	exportExample = templates.Examples(`
		# Export a selection into ./exports
		album export manifest.yaml --out exports

		# Export a single photo from the manifest
		album export manifest.yaml --only user-1/1709251200000-abc123.jpg

		# Always produce a compressed archive
		album export manifest.yaml --archive-threshold 1 --compression deflate`)
)

func NewExportOptions(root *AlbumOptions) *ExportOptions {
	return &ExportOptions{
		root:      root,
		IOStreams: root.IOStreams,
	}
}

func NewExportCommand(o *ExportOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "export MANIFEST",
		DisableFlagsInUseLine: true,
		Short:                 "Export the photos listed in a manifest",
		Long:                  exportLong,
		Example:               exportExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			if err := o.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.OutDir, "out", "o", ".", "Directory to save exported files into")
	flags.StringVar(&o.StorageKey, "only", "", "Export only the photo with this storage path")
	flags.IntVar(&o.ArchiveThreshold, "archive-threshold", 0, "Smallest selection saved as an archive (default from config)")
	flags.DurationVar(&o.PacingDelay, "pacing-delay", 0, "Delay between individually saved files (default from config)")
	flags.StringVar(&o.Compression, "compression", "", "Archive compression: store or deflate (default from config)")

	return cmd
}

func (o *ExportOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("manifest is required")
	}
	o.ManifestPath = args[0]

	o.cfg = o.root.config.Merge(config.Config{
		Export: config.ExportConfig{
			ArchiveThreshold: o.ArchiveThreshold,
			PacingDelay:      o.PacingDelay,
			Compression:      o.Compression,
		},
	})
	return nil
}

func (o *ExportOptions) Validate() error {
	if err := o.cfg.Validate(); err != nil {
		return err
	}

	m, err := export.LoadManifest(o.ManifestPath)
	if err != nil {
		return err
	}
	if o.StorageKey != "" {
		if _, ok := m.Find(o.StorageKey); !ok {
			return fmt.Errorf("photo %q is not in the manifest", o.StorageKey)
		}
	}
	o.manifest = m
	return nil
}

func (o *ExportOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStoreForCLI(ctx, o.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open photo store: %w", err)
	}
	defer store.Close()

	saver, err := save.NewDirSaver(o.OutDir, logrus.StandardLogger())
	if err != nil {
		return err
	}

	opts, err := exportOptions(o.cfg.Export)
	if err != nil {
		return err
	}
	exporter := export.New(store, newFetcher(o.cfg.Export), saver, opts)

	if o.StorageKey != "" {
		p, _ := o.manifest.Find(o.StorageKey)
		name, err := exporter.ExportPhoto(ctx, p, o.manifest.ContextFor(p))
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Fprintf(o.Out, "Saved %s to %s\n", name, saver.Dir())
		return nil
	}

	total := len(o.manifest.Photos)
	fmt.Fprintf(o.Out, "Exporting %d photos from %q as %s...\n", total, o.manifest.Album, exporter.StrategyFor(total))

	progress := func(current, total int) {
		fmt.Fprintf(o.ErrOut, "\r%d/%d", current, total)
		if current == total {
			fmt.Fprintln(o.ErrOut)
		}
	}

	res, err := exporter.ExportPhotos(ctx, o.manifest.Photos, o.manifest.Context(), o.manifest.FolderResolver(), progress)
	if err != nil {
		var agg *export.AggregateExportError
		if errors.As(err, &agg) && agg.Processed < agg.Total {
			fmt.Fprintln(o.ErrOut)
		}
		if export.IsCancelled(err) {
			return fmt.Errorf("export cancelled: %w", err)
		}
		return err
	}

	if res.Strategy == export.StrategyArchive {
		fmt.Fprintf(o.Out, "Saved %s (%s, %d photos) to %s\n",
			res.Archive, humanize.IBytes(uint64(res.ArchiveSize)), len(res.Files), saver.Dir())
		return nil
	}

	for _, name := range res.Files {
		fmt.Fprintf(o.Out, "Saved %s\n", name)
	}
	fmt.Fprintf(o.Out, "Saved %d photos to %s\n", len(res.Files), saver.Dir())
	return nil
}
