package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig mirrors the environment. Booleans, numbers and durations are read
// as strings so a variable that is set but empty counts as unset.
type envConfig struct {
	Port        string `env:"PORT"`
	Environment string `env:"ENVIRONMENT"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBSchema    string `env:"DB_SCHEMA"`
	AutoMigrate string `env:"DB_AUTO_MIGRATE"`

	StorageURL         string `env:"STORAGE_URL"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	PublicBaseURL    string `env:"PUBLIC_BASE_URL"`
	URLSigningSecret string `env:"URL_SIGNING_SECRET"`
	URLTTL           string `env:"URL_TTL"`

	ConversionURL     string `env:"CONVERSION_URL"`
	ConversionTimeout string `env:"CONVERSION_TIMEOUT"`
	ConversionGzip    string `env:"CONVERSION_GZIP"`

	BulkConcurrency  string `env:"BULK_CONCURRENCY"`
	MaxBulkIDs       string `env:"MAX_BULK_IDS"`
	MaxUploadBytes   string `env:"MAX_UPLOAD_BYTES"`
	OperationTimeout string `env:"OPERATION_TIMEOUT"`
	KeyLayout        string `env:"KEY_LAYOUT"`

	JWTSecret          string `env:"JWT_SECRET"`
	EnableMetrics      string `env:"ENABLE_METRICS"`
	EnableEventLogging string `env:"ENABLE_EVENT_LOGGING"`
}

// WithEnv overlays environment variables on the configuration. Unset
// variables leave the current value untouched.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}

		setString(&c.Port, env.Port)
		setString(&c.Environment, env.Environment)
		setString(&c.PublicBaseURL, env.PublicBaseURL)
		setString(&c.URLSigningSecret, env.URLSigningSecret)
		setString(&c.ConversionURL, env.ConversionURL)
		setString(&c.KeyLayout, env.KeyLayout)
		setString(&c.JWTSecret, env.JWTSecret)
		setString(&c.DBSchema, env.DBSchema)

		if err := applyDatabaseEnv(c, env.DatabaseURL); err != nil {
			return err
		}
		if env.StorageURL != "" {
			if err := WithStorageURL(env.StorageURL)(c); err != nil {
				return err
			}
		}
		if c.Storage.Type == "s3" {
			setString(&c.Storage.S3.AccessKeyID, env.AWSAccessKeyID)
			setString(&c.Storage.S3.SecretAccessKey, env.AWSSecretAccessKey)
		}

		for name, d := range map[string]struct {
			raw string
			dst *time.Duration
		}{
			"URL_TTL":            {env.URLTTL, &c.URLTTL},
			"CONVERSION_TIMEOUT": {env.ConversionTimeout, &c.ConversionTimeout},
			"OPERATION_TIMEOUT":  {env.OperationTimeout, &c.OperationTimeout},
		} {
			if err := parseDurationEnv(name, d.raw, d.dst); err != nil {
				return err
			}
		}

		var maxUpload int
		if err := parseIntEnv("MAX_UPLOAD_BYTES", env.MaxUploadBytes, &maxUpload); err != nil {
			return err
		}
		if maxUpload > 0 {
			c.MaxUploadBytes = int64(maxUpload)
		}
		if err := parseIntEnv("BULK_CONCURRENCY", env.BulkConcurrency, &c.BulkConcurrency); err != nil {
			return err
		}
		if err := parseIntEnv("MAX_BULK_IDS", env.MaxBulkIDs, &c.MaxBulkIDs); err != nil {
			return err
		}

		for name, flag := range map[string]struct {
			raw string
			dst *bool
		}{
			"DB_AUTO_MIGRATE":      {env.AutoMigrate, &c.AutoMigrate},
			"CONVERSION_GZIP":      {env.ConversionGzip, &c.ConversionGzip},
			"ENABLE_METRICS":       {env.EnableMetrics, &c.EnableMetrics},
			"ENABLE_EVENT_LOGGING": {env.EnableEventLogging, &c.EnableEventLogging},
		} {
			if err := parseBoolEnv(name, flag.raw, flag.dst); err != nil {
				return err
			}
		}

		return nil
	}
}

func applyDatabaseEnv(c *ServerConfig, value string) error {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return nil
	case value == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(value, "postgres://"), strings.HasPrefix(value, "postgresql://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = value
	default:
		return fmt.Errorf("DATABASE_URL must be 'memory' or a postgres:// URL")
	}
	return nil
}

// WithStorageURL selects the blob store from a URL:
//
//	memory://
//	file:///var/lib/simple-image
//	s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true
func WithStorageURL(raw string) Option {
	return func(c *ServerConfig) error {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid STORAGE_URL: %w", err)
		}

		switch u.Scheme {
		case "memory":
			c.Storage = StorageConfig{Type: "memory"}
		case "file":
			dir := u.Path
			if u.Host != "" {
				// file://relative/dir
				dir = u.Host + u.Path
			}
			if dir == "" {
				return fmt.Errorf("STORAGE_URL %q has no directory", raw)
			}
			c.Storage = StorageConfig{Type: "fs", BaseDir: dir}
		case "s3":
			if u.Host == "" {
				return fmt.Errorf("STORAGE_URL %q has no bucket", raw)
			}
			q := u.Query()
			s3cfg := c.Storage.S3
			s3cfg.Bucket = u.Host
			s3cfg.Region = q.Get("region")
			s3cfg.Endpoint = q.Get("endpoint")
			for name, dst := range map[string]*bool{
				"path_style":    &s3cfg.UsePathStyle,
				"create_bucket": &s3cfg.CreateBucketIfNotExist,
				"sse":           &s3cfg.EnableSSE,
			} {
				if err := parseBoolEnv("STORAGE_URL "+name, q.Get(name), dst); err != nil {
					return err
				}
			}
			if alg := q.Get("sse_algorithm"); alg != "" {
				s3cfg.SSEAlgorithm = alg
			} else if s3cfg.EnableSSE && s3cfg.SSEAlgorithm == "" {
				s3cfg.SSEAlgorithm = "AES256"
			}
			s3cfg.SSEKMSKeyID = q.Get("kms_key_id")
			c.Storage = StorageConfig{Type: "s3", S3: s3cfg}
		default:
			return fmt.Errorf("unsupported STORAGE_URL scheme %q", u.Scheme)
		}
		return nil
	}
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func parseBoolEnv(name, value string, dst *bool) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be a boolean: %w", name, err)
	}
	*dst = b
	return nil
}

// parseIntEnv sets dst to a positive value. Empty and non-positive values
// leave dst untouched.
func parseIntEnv(name, value string, dst *int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", name, err)
	}
	if n > 0 {
		*dst = n
	}
	return nil
}

func parseDurationEnv(name, value string, dst *time.Duration) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a duration: %w", name, err)
	}
	if d > 0 {
		*dst = d
	}
	return nil
}
