package cmd

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomasbasham/album-export/internal/config"
	"github.com/tomasbasham/album-export/internal/export"
	"github.com/tomasbasham/album-export/internal/fetch"
	"github.com/tomasbasham/album-export/internal/storage"
)

// openStore opens the configured photo store. For the local backend the
// returned handler serves its signed URLs and must be mounted at the base
// URL's path; it is nil for hosted backends.
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, http.Handler, error) {
	switch cfg.Backend {
	case config.BackendGCS:
		s, err := storage.NewGCSStore(ctx, cfg.Bucket)
		return s, nil, err
	case config.BackendS3:
		s, err := storage.NewS3Store(storage.S3Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UseSSL:          cfg.S3.UseSSL,
		})
		return s, nil, err
	case config.BackendBlob:
		s, err := storage.OpenBlobStore(ctx, cfg.URL)
		return s, nil, err
	case config.BackendLocal:
		secret := []byte(cfg.Local.Secret)
		if len(secret) == 0 {
			secret = make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return nil, nil, fmt.Errorf("failed to generate signing secret: %w", err)
			}
			logrus.Warn("No local signing secret configured; signed URLs will not survive a restart")
		}
		s, err := storage.NewLocalStore(cfg.Local.Dir, cfg.Local.BaseURL, secret)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// openStoreForCLI opens the configured store for a one-shot command. Local
// stores get a loopback server for their signed URLs that lives until ctx is
// cancelled.
func openStoreForCLI(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Backend != config.BackendLocal {
		s, _, err := openStore(ctx, cfg)
		return s, err
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen for local objects: %w", err)
	}
	cfg.Local.BaseURL = fmt.Sprintf("http://%s/objects", lis.Addr())

	s, objects, err := openStore(ctx, cfg)
	if err != nil {
		lis.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/objects", objects)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		_ = srv.Serve(lis)
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	return s, nil
}

// exportOptions translates configuration into exporter options.
func exportOptions(cfg config.ExportConfig) (export.Options, error) {
	compression, err := export.ParseCompression(cfg.Compression)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		ArchiveThreshold: cfg.ArchiveThreshold,
		PacingDelay:      cfg.PacingDelay,
		URLTTL:           cfg.URLTTL,
		NewArchive:       export.ZipArchiveFactory(compression),
		Logger:           logrus.StandardLogger(),
	}, nil
}

func newFetcher(cfg config.ExportConfig) *fetch.Client {
	return fetch.NewClient(fetch.Options{
		Timeout:     cfg.FetchTimeout,
		MaxBodySize: cfg.MaxFetchSize,
	})
}
