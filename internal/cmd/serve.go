package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/album-export/internal/config"
	"github.com/tomasbasham/album-export/internal/operation"
	"github.com/tomasbasham/album-export/internal/server"
)

type ServeOptions struct {
	root *AlbumOptions
	cfg  config.Config

	Port    int
	Workers int
	Bucket  string
}

var (
	serveLong = templates.LongDesc(`
		Start the album export HTTP server.

		Exports are submitted as JSON manifests and run in the background on
		a bounded worker pool. Results are uploaded back to the store and
		returned as signed artefact URLs.`)

	serveExample = templates.Examples(`
		# Start on the default port with the local store
		album serve

		# Start on a custom port with a specific GCS bucket
		ALBUM_STORAGE_BACKEND=gcs album serve --port 9090 --bucket my-album-bucket`)
)

func NewServeOptions(root *AlbumOptions) *ServeOptions {
	return &ServeOptions{root: root}
}

func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the album export HTTP server",
		Long:    serveLong,
		Example: serveExample,
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

	cmd.Flags().IntVarP(&o.Port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().IntVarP(&o.Workers, "workers", "w", 0, "Exports run concurrently (default from config)")
	cmd.Flags().StringVarP(&o.Bucket, "bucket", "b", "", "Bucket for the gcs and s3 backends")

	return cmd
}

func (o *ServeOptions) Complete(cmd *cobra.Command, args []string) error {
	o.cfg = o.root.config.Merge(config.Config{
		Storage: config.StorageConfig{Bucket: o.Bucket},
		Server:  config.ServerConfig{Port: o.Port, Workers: o.Workers},
	})
	return nil
}

func (o *ServeOptions) Validate() error {
	return o.cfg.Validate()
}

func (o *ServeOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, objects, err := openStore(ctx, o.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialise photo store: %w", err)
	}
	defer store.Close()

	exportOpts, err := exportOptions(o.cfg.Export)
	if err != nil {
		return err
	}

	srv := server.New(operation.NewMemoryStore(), server.Options{
		Signer:        store,
		Uploader:      store,
		Fetcher:       newFetcher(o.cfg.Export),
		ExportOptions: exportOpts,
		Objects:       objects,
		Workers:       o.cfg.Server.Workers,
		Logger:        logrus.StandardLogger(),
	})
	defer srv.Close()

	addr := fmt.Sprintf(":%d", o.cfg.Server.Port)
	logrus.WithFields(logrus.Fields{
		"addr":    addr,
		"backend": o.cfg.Storage.Backend,
		"workers": o.cfg.Server.Workers,
	}).Info("Starting album export server")
	return srv.ListenAndServe(ctx, addr)
}
