package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/album-export/internal/export"
	"github.com/tomasbasham/album-export/internal/storage"
)

type UploadOptions struct {
	root  *AlbumOptions
	files []string

	UserID string

	iooption.IOStreams
}

var (
	uploadLong = templates.LongDesc(`
		Upload photos to the configured store.

		Only JPEG, PNG, GIF and WebP images up to 10MiB are accepted; the type
		is detected from the file contents. Each photo is stored under a new
		key and existing objects are never overwritten. Manifest entries for
		the uploaded photos are printed as YAML.`)

	uploadExample = templates.Examples(`
		# Upload two photos for a user
		album upload --user user-1 IMG_0001.jpg IMG_0002.jpg

		# Start a manifest from the uploaded photos
		album upload --user user-1 *.jpg > photos.yaml`)
)

func NewUploadOptions(root *AlbumOptions) *UploadOptions {
	return &UploadOptions{
		root:      root,
		IOStreams: root.IOStreams,
	}
}

func NewUploadCommand(o *UploadOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "upload --user ID FILE...",
		DisableFlagsInUseLine: true,
		Short:                 "Upload photos to the configured store",
		Long:                  uploadLong,
		Example:               uploadExample,
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

	cmd.Flags().StringVarP(&o.UserID, "user", "u", "", "Owner of the uploaded photos (required)")

	return cmd
}

func (o *UploadOptions) Complete(cmd *cobra.Command, args []string) error {
	o.files = args
	return nil
}

func (o *UploadOptions) Validate() error {
	if o.UserID == "" {
		return fmt.Errorf("--user is required")
	}
	if len(o.files) == 0 {
		return fmt.Errorf("at least one file is required")
	}
	return o.root.config.Validate()
}

func (o *UploadOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStoreForCLI(ctx, o.root.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to open photo store: %w", err)
	}
	defer store.Close()

	photos := make([]export.Photo, 0, len(o.files))
	for _, path := range o.files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		name := filepath.Base(path)
		res, err := storage.UploadPhoto(ctx, store, o.UserID, name, data)
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", path, err)
		}
		fmt.Fprintf(o.ErrOut, "Uploaded %s as %s\n", path, res.ObjectName)

		photos = append(photos, export.Photo{
			StorageKey: res.ObjectName,
			FileName:   name,
			CreatedAt:  time.Now().UTC().Truncate(time.Second),
		})
	}

	out, err := yaml.Marshal(map[string][]export.Photo{"photos": photos})
	if err != nil {
		return fmt.Errorf("failed to encode manifest entries: %w", err)
	}
	_, err = o.Out.Write(out)
	return err
}
