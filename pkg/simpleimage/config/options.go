package config

import (
	"errors"
	"log/slog"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		c.Environment = env
		return nil
	}
}

// WithDatabase sets the catalog database type and URL
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the Postgres schema of the image table
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate creates the catalog table on startup when enabled
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithMemoryStorage keeps blobs in process memory (for testing)
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageConfig{Type: "memory"}
		return nil
	}
}

// WithFilesystemStorage stores blobs under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return errors.New("base directory is required")
		}
		c.Storage = StorageConfig{Type: "fs", BaseDir: baseDir}
		return nil
	}
}

// WithS3Storage stores blobs in an S3 bucket
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return errors.New("bucket is required")
		}
		s3cfg := c.Storage.S3
		s3cfg.Bucket = bucket
		s3cfg.Region = region
		c.Storage = StorageConfig{Type: "s3", S3: s3cfg}
		return nil
	}
}

// WithS3Credentials sets static AWS credentials for S3 storage
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.Storage.S3.AccessKeyID = accessKeyID
		c.Storage.S3.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithS3Endpoint sets a custom S3 endpoint (for MinIO, LocalStack, etc.)
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		c.Storage.S3.Endpoint = endpoint
		c.Storage.S3.UsePathStyle = usePathStyle
		return nil
	}
}

// WithURLSigning sets the HMAC secret and lifetime of resolved blob URLs
func WithURLSigning(publicBaseURL, secret string, ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		c.PublicBaseURL = publicBaseURL
		c.URLSigningSecret = secret
		if ttl > 0 {
			c.URLTTL = ttl
		}
		return nil
	}
}

// WithConversionURL sends conversions to a remote conversion service.
// An empty URL converts in-process.
func WithConversionURL(url string, timeout time.Duration, gzip bool) Option {
	return func(c *ServerConfig) error {
		c.ConversionURL = url
		c.ConversionGzip = gzip
		if timeout > 0 {
			c.ConversionTimeout = timeout
		}
		return nil
	}
}

// WithBulkConcurrency caps concurrent per-id work in bulk operations
func WithBulkConcurrency(n int) Option {
	return func(c *ServerConfig) error {
		c.BulkConcurrency = n
		return nil
	}
}

// WithMaxBulkIDs caps the number of ids accepted by POST /repository/urls
func WithMaxBulkIDs(n int) Option {
	return func(c *ServerConfig) error {
		c.MaxBulkIDs = n
		return nil
	}
}

// WithOperationTimeout bounds one convert-and-cache run
func WithOperationTimeout(d time.Duration) Option {
	return func(c *ServerConfig) error {
		c.OperationTimeout = d
		return nil
	}
}

// WithKeyLayout sets the storage key layout ("flat" or "sharded")
func WithKeyLayout(layout string) Option {
	return func(c *ServerConfig) error {
		c.KeyLayout = layout
		return nil
	}
}

// WithJWTSecret enables bearer auth on the upload routes
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithMetrics enables the Prometheus event sink and /metrics
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}

// WithEventLogging enables or disables event logging
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithLogger sets the logger handed to the service and event sink
func WithLogger(logger *slog.Logger) Option {
	return func(c *ServerConfig) error {
		c.Logger = logger
		return nil
	}
}
