package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/album-export/internal/config"
	"github.com/tomasbasham/album-export/internal/logging"
)

var (
	rootLong = templates.LongDesc(`
		Export album photos from object storage.

		Small selections are saved as one file per photo; selections at or
		above the archive threshold are bundled into a single ZIP named after
		the album. Configuration is read from --config, then ALBUM_*
		environment variables, then command flags.`)

	rootExamples = templates.Examples(`
		# Export the photos listed in a manifest into ./exports
		album export manifest.yaml --out exports

		# Upload photos and print manifest entries for them
		album upload --user user-1 IMG_0001.jpg IMG_0002.jpg

		# Run the export API
		album serve --config album.yaml`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// AlbumOptions defines the options for the `album` command.
type AlbumOptions struct {
	ConfigPath string
	LogLevel   string

	config config.Config

	iooption.IOStreams
}

// NewAlbumOptions provides an initialised AlbumOptions instance.
func NewAlbumOptions(streams iooption.IOStreams) *AlbumOptions {
	return &AlbumOptions{
		IOStreams: streams,
	}
}

// NewRootCommand creates the `album` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewAlbumOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `album` command and its nested
// children.
func NewRootCommandWithArgs(o *AlbumOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "album [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Album photo export tool",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.loadConfig()
		},
	}

	printerOpts := printer.WarningPrinterOptions{Color: true}
	printer := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(printer))

	pflags := cmd.PersistentFlags()
	pflags.StringVarP(&o.ConfigPath, "config", "c", "", "Path to a YAML configuration file")
	pflags.StringVar(&o.LogLevel, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(NewExportCommand(NewExportOptions(o)))
	cmd.AddCommand(NewUploadCommand(NewUploadOptions(o)))
	cmd.AddCommand(NewServeCommand(NewServeOptions(o)))

	// The globlal normalisation function ensures that all flags specified meet
	// the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

// loadConfig layers defaults, the config file and the environment, then
// configures logging.
func (o *AlbumOptions) loadConfig() error {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		cfg, err = config.LoadFromFile(o.ConfigPath)
		if err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}

	o.config = cfg
	return logging.Setup(cfg.Log.Level, cfg.Log.Dir)
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
