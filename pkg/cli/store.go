package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/haivivi/speakerid/pkg/kv"
	"github.com/haivivi/speakerid/pkg/storage"
)

// Store backend types.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
	StoreLocal  = "local"
	StoreS3     = "s3"
)

// StoreConfig selects the key-value backend behind the speaker registry.
type StoreConfig struct {
	// Type is one of memory, badger, local or s3 (default badger)
	Type string `yaml:"type"`

	// Dir is the directory for badger and local stores
	Dir string `yaml:"dir,omitempty"`

	// Bucket, Prefix, Region and Endpoint configure the s3 store
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`

	// PathStyle forces path-style addressing (MinIO and most
	// self-hosted S3 servers need it)
	PathStyle bool `yaml:"path_style,omitempty"`

	// AccessKey and SecretKey fall back to AWS_ACCESS_KEY_ID and
	// AWS_SECRET_ACCESS_KEY when empty
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
}

// OpenStore opens the configured store. A nil config opens a badger
// store in defaultDir, which is also used when a badger or local config
// names no dir.
func OpenStore(cfg *StoreConfig, defaultDir string, logger *slog.Logger) (kv.Store, error) {
	if cfg == nil {
		cfg = &StoreConfig{}
	}
	dir := cfg.Dir
	if dir == "" {
		dir = defaultDir
	}

	switch cfg.Type {
	case StoreMemory:
		return kv.NewMemory(nil), nil
	case StoreBadger, "":
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		db, err := kv.NewBadger(kv.BadgerOptions{Dir: dir, Logger: logger})
		if err != nil {
			return nil, err
		}
		return db, nil
	case StoreLocal:
		fs, err := storage.NewLocal(dir)
		if err != nil {
			return nil, err
		}
		return kv.NewFiles(fs), nil
	case StoreS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 store requires a bucket")
		}
		return kv.NewFiles(storage.NewS3(cfg.S3Client(), cfg.Bucket, cfg.Prefix)), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

// S3Client builds an S3 client from the config and environment.
func (cfg *StoreConfig) S3Client() *s3.Client {
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		UsePathStyle: cfg.PathStyle,
		Credentials:  aws.NewCredentialsCache(cfg.credentials()),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (cfg *StoreConfig) credentials() aws.CredentialsProvider {
	access, secret := cfg.AccessKey, cfg.SecretKey
	session := ""
	if access == "" {
		access = os.Getenv("AWS_ACCESS_KEY_ID")
		secret = os.Getenv("AWS_SECRET_ACCESS_KEY")
		session = os.Getenv("AWS_SESSION_TOKEN")
	}
	if access == "" {
		return aws.AnonymousCredentials{}
	}
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     access,
			SecretAccessKey: secret,
			SessionToken:    session,
			Source:          "speakerid",
		}, nil
	})
}

// OpenInput resolves an audio input path to a file store and a name
// within it. "s3://bucket/key" reads from S3 with the credentials of
// cfg; anything else is a local file.
func OpenInput(cfg *StoreConfig, path string) (storage.FileStore, string, error) {
	if rest, ok := strings.CutPrefix(path, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return nil, "", fmt.Errorf("invalid s3 path %q", path)
		}
		if cfg == nil {
			cfg = &StoreConfig{}
		}
		return storage.NewS3(cfg.S3Client(), bucket, ""), key, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	fs, err := storage.NewLocal(filepath.Dir(abs))
	if err != nil {
		return nil, "", err
	}
	return fs, filepath.Base(abs), nil
}
