package filestore

import "github.com/koustreak/gardien/internal/errs"

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderMinIO Provider = "minio"
)

// Config holds the settings of the store used for CRUD exports and imports.
type Config struct {
	Provider Provider `yaml:"provider"`

	// Root is the base directory of the local provider. Buckets are its
	// subdirectories.
	Root string `yaml:"root"`

	// Endpoint is the host:port of the MinIO server.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`

	// Bucket receives exports when the caller does not name one.
	Bucket string `yaml:"bucket"`
}

// DefaultConfig stores exports under ./data on the local disk.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderLocal,
		Root:     "data",
		Bucket:   "exports",
	}
}

// Validate checks the fields the selected provider needs.
func (c *Config) Validate() error {
	switch c.Provider {
	case "", ProviderLocal:
		if c.Root == "" {
			return errs.New(errs.ErrKindConfiguration, "filestore.root is required for the local provider")
		}
	case ProviderMinIO:
		if c.Endpoint == "" || c.AccessKey == "" || c.SecretKey == "" {
			return errs.New(errs.ErrKindConfiguration, "filestore.endpoint, access_key and secret_key are required for minio")
		}
	default:
		return errs.Newf(errs.ErrKindConfiguration, "unsupported filestore provider %q", c.Provider)
	}
	if c.Bucket == "" {
		return errs.New(errs.ErrKindConfiguration, "filestore.bucket is required")
	}
	return nil
}
