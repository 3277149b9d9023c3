package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-image/pkg/simpleimage"
	catalogmemory "github.com/tendant/simple-image/pkg/simpleimage/catalog/memory"
	catalogpg "github.com/tendant/simple-image/pkg/simpleimage/catalog/postgres"
	"github.com/tendant/simple-image/pkg/simpleimage/convert/local"
	"github.com/tendant/simple-image/pkg/simpleimage/convert/remote"
	"github.com/tendant/simple-image/pkg/simpleimage/metrics"
	"github.com/tendant/simple-image/pkg/simpleimage/objectkey"
	"github.com/tendant/simple-image/pkg/simpleimage/presigned"
	fsstorage "github.com/tendant/simple-image/pkg/simpleimage/storage/fs"
	memorystorage "github.com/tendant/simple-image/pkg/simpleimage/storage/memory"
	s3storage "github.com/tendant/simple-image/pkg/simpleimage/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "memory",
		DBSchema:           "image",
		AutoMigrate:        true,
		Storage:            StorageConfig{Type: "memory"},
		URLTTL:             presigned.DefaultExpiration,
		ConversionTimeout:  remote.DefaultTimeout,
		BulkConcurrency:    simpleimage.DefaultBulkConcurrency,
		MaxBulkIDs:         100,
		MaxUploadBytes:     32 << 20,
		OperationTimeout:   simpleimage.DefaultOperationTimeout,
		KeyLayout:          "flat",
		EnableEventLogging: true,
	}
}

// ServerConfig represents configuration for the image repository server
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Catalog configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema holding the image table
	AutoMigrate  bool

	Storage StorageConfig

	// Resolved URLs
	PublicBaseURL    string
	URLSigningSecret string
	URLTTL           time.Duration

	// Conversion; an empty ConversionURL converts in-process
	ConversionURL     string
	ConversionTimeout time.Duration
	ConversionGzip    bool

	BulkConcurrency  int
	MaxBulkIDs       int
	MaxUploadBytes   int64
	OperationTimeout time.Duration
	KeyLayout        string // "flat", "sharded"

	JWTSecret          string
	EnableMetrics      bool
	EnableEventLogging bool

	Logger *slog.Logger
}

// StorageConfig selects and configures the blob store
type StorageConfig struct {
	Type    string // "memory", "fs", "s3"
	BaseDir string
	S3      s3storage.Config
}

// Components is everything a server needs to expose the repository
type Components struct {
	Service simpleimage.Service
	Store   simpleimage.BlobStore
	Signer  *presigned.Signer

	// Registry is nil unless metrics are enabled
	Registry *prometheus.Registry

	closers []func()
}

// Close releases pooled connections
func (c *Components) Close() {
	for _, fn := range c.closers {
		fn()
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if c.Storage.BaseDir == "" {
			return errors.New("base directory is required for fs storage")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	if _, err := objectkey.New(c.KeyLayout); err != nil {
		return err
	}

	if c.URLTTL <= 0 {
		return errors.New("url_ttl must be positive")
	}
	if c.BulkConcurrency <= 0 {
		return errors.New("bulk_concurrency must be positive")
	}
	if c.MaxBulkIDs <= 0 {
		return errors.New("max_bulk_ids must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	if c.OperationTimeout <= 0 {
		return errors.New("operation_timeout must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// BuildComponents wires catalog, blob store, converter and event sinks into a Service
func (c *ServerConfig) BuildComponents(ctx context.Context) (*Components, error) {
	components := &Components{Signer: c.BuildSigner()}
	logger := c.logger()

	catalog, closeCatalog, err := c.buildCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	if closeCatalog != nil {
		components.closers = append(components.closers, closeCatalog)
	}

	store, err := c.buildStore(components.Signer)
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}
	components.Store = store

	converter, err := c.buildConverter()
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to build converter: %w", err)
	}

	keys, err := objectkey.New(c.KeyLayout)
	if err != nil {
		components.Close()
		return nil, err
	}

	var sinks simpleimage.MultiEventSink
	if c.EnableEventLogging {
		sinks = append(sinks, simpleimage.NewLogEventSink(logger))
	}
	if c.EnableMetrics {
		components.Registry = prometheus.NewRegistry()
		sink, err := metrics.NewEventSink(components.Registry)
		if err != nil {
			components.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		sinks = append(sinks, sink)
	}

	options := []simpleimage.Option{
		simpleimage.WithCatalog(catalog),
		simpleimage.WithBlobStore(c.Storage.Type, store),
		simpleimage.WithConverter(converter),
		simpleimage.WithKeyGenerator(keys),
		simpleimage.WithLogger(logger),
		simpleimage.WithBulkConcurrency(c.BulkConcurrency),
		simpleimage.WithOperationTimeout(c.OperationTimeout),
	}
	if len(sinks) > 0 {
		options = append(options, simpleimage.WithEventSink(sinks))
	}

	svc, err := simpleimage.New(options...)
	if err != nil {
		components.Close()
		return nil, err
	}
	components.Service = svc
	return components, nil
}

// BuildSigner returns the signer shared by resolved URLs and the /blobs route.
// Without a secret it produces unsigned URLs.
func (c *ServerConfig) BuildSigner() *presigned.Signer {
	opts := []presigned.Option{presigned.WithDefaultExpiration(c.URLTTL)}
	if c.URLSigningSecret != "" {
		opts = append(opts, presigned.WithSecretKey(c.URLSigningSecret))
	}
	return presigned.New(opts...)
}

func (c *ServerConfig) buildCatalog(ctx context.Context) (simpleimage.Catalog, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return catalogmemory.New(), nil, nil
	case "postgres":
		pool, err := NewPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		catalog := catalogpg.NewWithPool(pool, c.DBSchema)
		if c.AutoMigrate {
			if err := catalog.Migrate(ctx, c.DBSchema); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("failed to migrate catalog: %w", err)
			}
		}
		return catalog, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// NewPool opens a pgx pool and verifies connectivity
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

func (c *ServerConfig) buildStore(signer *presigned.Signer) (simpleimage.BlobStore, error) {
	resolver := presigned.NewResolver(signer, c.PublicBaseURL)

	switch c.Storage.Type {
	case "memory":
		return memorystorage.New(memorystorage.WithURLResolver(resolver)), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:  c.Storage.BaseDir,
			Resolver: resolver,
		})

	case "s3":
		s3Config := c.Storage.S3
		if s3Config.PresignDuration == 0 {
			s3Config.PresignDuration = int(c.URLTTL / time.Second)
		}
		return s3storage.New(s3Config)

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}

func (c *ServerConfig) buildConverter() (simpleimage.Converter, error) {
	if c.ConversionURL == "" {
		return local.New(), nil
	}
	opts := []remote.Option{remote.WithGzip(c.ConversionGzip)}
	if c.ConversionTimeout > 0 {
		opts = append(opts, remote.WithTimeout(c.ConversionTimeout))
	}
	return remote.New(c.ConversionURL, opts...)
}

func (c *ServerConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
