package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendGCS   = "gcs"
	BackendS3    = "s3"
	BackendBlob  = "blob"
	BackendLocal = "local"
)

// Config defines configuration for the album CLI and server.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Export  ExportConfig  `yaml:"export"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects and configures the object store holding photos.
type StorageConfig struct {
	Backend string `yaml:"backend"`

	// Bucket is used by the gcs and s3 backends.
	Bucket string `yaml:"bucket"`

	// URL is the gocloud bucket URL for the blob backend, e.g. gs://photos.
	URL string `yaml:"url"`

	S3    S3Config    `yaml:"s3"`
	Local LocalConfig `yaml:"local"`
}

// S3Config configures an S3-compatible endpoint.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// LocalConfig configures the on-disk store whose URLs are signed and served
// by this program.
type LocalConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url"`
	Secret  string `yaml:"secret"`
}

// ExportConfig tunes the export pipeline.
type ExportConfig struct {
	ArchiveThreshold int           `yaml:"archive_threshold"`
	PacingDelay      time.Duration `yaml:"pacing_delay"`
	URLTTL           time.Duration `yaml:"url_ttl"`
	Compression      string        `yaml:"compression"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	MaxFetchSize     int64         `yaml:"max_fetch_size"`
}

// ServerConfig configures `album serve`.
type ServerConfig struct {
	Port    int `yaml:"port"`
	Workers int `yaml:"workers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend: BackendLocal,
			Local: LocalConfig{
				Dir:     "photos",
				BaseURL: "http://localhost:8080/objects",
			},
		},
		Export: ExportConfig{
			ArchiveThreshold: 10,
			PacingDelay:      300 * time.Millisecond,
			URLTTL:           60 * time.Second,
			Compression:      "store",
			FetchTimeout:     30 * time.Second,
			MaxFetchSize:     64 * 1024 * 1024, // 64MiB
		},
		Server: ServerConfig{
			Port:    8080,
			Workers: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// yamlExportConfig is used for YAML unmarshaling with string durations and
// sizes.
type yamlExportConfig struct {
	ArchiveThreshold int    `yaml:"archive_threshold"`
	PacingDelay      string `yaml:"pacing_delay"`
	URLTTL           string `yaml:"url_ttl"`
	Compression      string `yaml:"compression"`
	FetchTimeout     string `yaml:"fetch_timeout"`
	MaxFetchSize     string `yaml:"max_fetch_size"`
}

type yamlConfig struct {
	Storage StorageConfig    `yaml:"storage"`
	Export  yamlExportConfig `yaml:"export"`
	Server  ServerConfig     `yaml:"server"`
	Log     LogConfig        `yaml:"log"`
}

// LoadFromFile loads configuration from a YAML file. Values absent from the
// file keep their defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()
	cfg.Storage = cfg.Storage.merge(yc.Storage)
	cfg.Server = cfg.Server.merge(yc.Server)
	cfg.Log = cfg.Log.merge(yc.Log)

	if yc.Export.ArchiveThreshold != 0 {
		cfg.Export.ArchiveThreshold = yc.Export.ArchiveThreshold
	}
	if yc.Export.Compression != "" {
		cfg.Export.Compression = yc.Export.Compression
	}
	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"export.pacing_delay", yc.Export.PacingDelay, &cfg.Export.PacingDelay},
		{"export.url_ttl", yc.Export.URLTTL, &cfg.Export.URLTTL},
		{"export.fetch_timeout", yc.Export.FetchTimeout, &cfg.Export.FetchTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}
	if yc.Export.MaxFetchSize != "" {
		size, err := humanize.ParseBytes(yc.Export.MaxFetchSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse export.max_fetch_size: %w", err)
		}
		cfg.Export.MaxFetchSize = int64(size)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ALBUM_ prefix.
func (c *Config) LoadFromEnv() error {
	stringVars := map[string]*string{
		"ALBUM_STORAGE_BACKEND":      &c.Storage.Backend,
		"ALBUM_BUCKET":               &c.Storage.Bucket,
		"ALBUM_BLOB_URL":             &c.Storage.URL,
		"ALBUM_S3_ENDPOINT":          &c.Storage.S3.Endpoint,
		"ALBUM_S3_REGION":            &c.Storage.S3.Region,
		"ALBUM_S3_ACCESS_KEY_ID":     &c.Storage.S3.AccessKeyID,
		"ALBUM_S3_SECRET_ACCESS_KEY": &c.Storage.S3.SecretAccessKey,
		"ALBUM_LOCAL_DIR":            &c.Storage.Local.Dir,
		"ALBUM_LOCAL_BASE_URL":       &c.Storage.Local.BaseURL,
		"ALBUM_LOCAL_SECRET":         &c.Storage.Local.Secret,
		"ALBUM_COMPRESSION":          &c.Export.Compression,
		"ALBUM_LOG_LEVEL":            &c.Log.Level,
		"ALBUM_LOG_DIR":              &c.Log.Dir,
	}
	for key, dst := range stringVars {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("ALBUM_S3_USE_SSL"); v != "" {
		c.Storage.S3.UseSSL = v == "true" || v == "1"
	}

	intVars := map[string]*int{
		"ALBUM_ARCHIVE_THRESHOLD": &c.Export.ArchiveThreshold,
		"ALBUM_PORT":              &c.Server.Port,
		"ALBUM_WORKERS":           &c.Server.Workers,
	}
	for key, dst := range intVars {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = n
		}
	}

	durationVars := map[string]*time.Duration{
		"ALBUM_PACING_DELAY":  &c.Export.PacingDelay,
		"ALBUM_URL_TTL":       &c.Export.URLTTL,
		"ALBUM_FETCH_TIMEOUT": &c.Export.FetchTimeout,
	}
	for key, dst := range durationVars {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("ALBUM_MAX_FETCH_SIZE"); v != "" {
		size, err := humanize.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse ALBUM_MAX_FETCH_SIZE: %w", err)
		}
		c.Export.MaxFetchSize = int64(size)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendGCS, BackendS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: bucket is required for the %s backend", c.Storage.Backend)
		}
	case BackendBlob:
		if c.Storage.URL == "" {
			return errors.New("config: url is required for the blob backend")
		}
	case BackendLocal:
		if c.Storage.Local.Dir == "" {
			return errors.New("config: local.dir is required for the local backend")
		}
		if c.Storage.Local.BaseURL == "" {
			return errors.New("config: local.base_url is required for the local backend")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	if c.Storage.Backend == BackendS3 && c.Storage.S3.Endpoint == "" {
		return errors.New("config: s3.endpoint is required for the s3 backend")
	}
	if c.Export.ArchiveThreshold <= 0 {
		return errors.New("config: archive_threshold must be positive")
	}
	if c.Export.PacingDelay < 0 {
		return errors.New("config: pacing_delay must not be negative")
	}
	if c.Export.URLTTL <= 0 {
		return errors.New("config: url_ttl must be positive")
	}
	if c.Export.FetchTimeout <= 0 {
		return errors.New("config: fetch_timeout must be positive")
	}
	if c.Export.MaxFetchSize < 0 {
		return errors.New("config: max_fetch_size must not be negative")
	}
	switch c.Export.Compression {
	case "store", "deflate":
	default:
		return fmt.Errorf("config: unknown compression %q", c.Export.Compression)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("config: port must be between 1 and 65535")
	}
	if c.Server.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	c.Storage = c.Storage.merge(override.Storage)
	c.Server = c.Server.merge(override.Server)
	c.Log = c.Log.merge(override.Log)

	if override.Export.ArchiveThreshold != 0 {
		c.Export.ArchiveThreshold = override.Export.ArchiveThreshold
	}
	if override.Export.PacingDelay != 0 {
		c.Export.PacingDelay = override.Export.PacingDelay
	}
	if override.Export.URLTTL != 0 {
		c.Export.URLTTL = override.Export.URLTTL
	}
	if override.Export.Compression != "" {
		c.Export.Compression = override.Export.Compression
	}
	if override.Export.FetchTimeout != 0 {
		c.Export.FetchTimeout = override.Export.FetchTimeout
	}
	if override.Export.MaxFetchSize != 0 {
		c.Export.MaxFetchSize = override.Export.MaxFetchSize
	}
	return c
}

func (s StorageConfig) merge(o StorageConfig) StorageConfig {
	if o.Backend != "" {
		s.Backend = o.Backend
	}
	if o.Bucket != "" {
		s.Bucket = o.Bucket
	}
	if o.URL != "" {
		s.URL = o.URL
	}
	if o.S3.Endpoint != "" {
		s.S3.Endpoint = o.S3.Endpoint
	}
	if o.S3.Region != "" {
		s.S3.Region = o.S3.Region
	}
	if o.S3.AccessKeyID != "" {
		s.S3.AccessKeyID = o.S3.AccessKeyID
	}
	if o.S3.SecretAccessKey != "" {
		s.S3.SecretAccessKey = o.S3.SecretAccessKey
	}
	if o.S3.UseSSL {
		s.S3.UseSSL = true
	}
	if o.Local.Dir != "" {
		s.Local.Dir = o.Local.Dir
	}
	if o.Local.BaseURL != "" {
		s.Local.BaseURL = o.Local.BaseURL
	}
	if o.Local.Secret != "" {
		s.Local.Secret = o.Local.Secret
	}
	return s
}

func (s ServerConfig) merge(o ServerConfig) ServerConfig {
	if o.Port != 0 {
		s.Port = o.Port
	}
	if o.Workers != 0 {
		s.Workers = o.Workers
	}
	return s
}

func (l LogConfig) merge(o LogConfig) LogConfig {
	if o.Level != "" {
		l.Level = o.Level
	}
	if o.Dir != "" {
		l.Dir = o.Dir
	}
	return l
}
