package config

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tendant/simple-image/pkg/simpleimage"
	"github.com/tendant/simple-image/pkg/simpleimage/metrics"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.DatabaseType != "memory" || cfg.Storage.Type != "memory" {
		t.Errorf("expected memory backends, got %s/%s", cfg.DatabaseType, cfg.Storage.Type)
	}
	if cfg.URLTTL != 24*time.Hour {
		t.Errorf("expected 24h url ttl, got %s", cfg.URLTTL)
	}
	if cfg.ConversionURL != "" {
		t.Errorf("expected in-process conversion, got %q", cfg.ConversionURL)
	}
}

func TestWithPort(t *testing.T) {
	cfg, err := Load(WithPort("9090"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got: %s", cfg.Port)
	}
}

func TestWithPortEmpty(t *testing.T) {
	_, err := Load(WithPort(""))
	if err == nil {
		t.Error("expected error for empty port, got nil")
	}
}

func TestWithDatabase(t *testing.T) {
	tests := []struct {
		name      string
		dbType    string
		dbURL     string
		wantError bool
	}{
		{"memory", "memory", "", false},
		{"postgres with url", "postgres", "postgres://localhost/images", false},
		{"postgres without url", "postgres", "", true},
		{"unknown type", "mysql", "mysql://localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(WithDatabase(tt.dbType, tt.dbURL))
			if tt.wantError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestStorageOptions(t *testing.T) {
	cfg, err := Load(
		WithS3Storage("images", "eu-central-1"),
		WithS3Credentials("key", "secret"),
		WithS3Endpoint("http://minio:9000", true),
	)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Storage.Type != "s3" || cfg.Storage.S3.Bucket != "images" || cfg.Storage.S3.Region != "eu-central-1" {
		t.Errorf("unexpected s3 storage: %+v", cfg.Storage)
	}
	if cfg.Storage.S3.AccessKeyID != "key" || !cfg.Storage.S3.UsePathStyle {
		t.Errorf("unexpected s3 credentials or endpoint: %+v", cfg.Storage.S3)
	}

	if _, err := Load(WithFilesystemStorage("")); err == nil {
		t.Error("expected error for empty base dir")
	}
	if _, err := Load(WithS3Storage("", "us-east-1")); err == nil {
		t.Error("expected error for empty bucket")
	}
}

func TestValidateLimits(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"bulk concurrency", WithBulkConcurrency(0)},
		{"max bulk ids", WithMaxBulkIDs(-1)},
		{"operation timeout", WithOperationTimeout(0)},
		{"key layout", WithKeyLayout("nested")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.opt); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestBuildSigner(t *testing.T) {
	cfg, err := Load(WithURLSigning("https://img.example.com", "secret", time.Hour))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	signer := cfg.BuildSigner()
	if !signer.IsEnabled() {
		t.Error("expected signing to be enabled")
	}
	if signer.DefaultExpiration() != time.Hour {
		t.Errorf("expected 1h expiration, got %s", signer.DefaultExpiration())
	}

	unsigned, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if unsigned.BuildSigner().IsEnabled() {
		t.Error("expected unsigned URLs without a secret")
	}
}

func TestBuildComponentsMemory(t *testing.T) {
	cfg, err := Load(
		WithURLSigning("https://img.example.com", "secret", 0),
		WithMetrics(true),
		WithEventLogging(false),
	)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	ctx := context.Background()
	components, err := cfg.BuildComponents(ctx)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer components.Close()

	if components.Registry == nil {
		t.Fatal("expected a metrics registry")
	}

	id, err := components.Service.Upload(ctx, simpleimage.UploadRequest{FileName: "dot.png", Data: samplePNG(t)})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	url, err := components.Service.GetInFormat(ctx, id, "gif")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !strings.HasPrefix(url, "https://img.example.com/blobs/") || !strings.Contains(url, "signature=") {
		t.Errorf("expected a signed public URL, got %s", url)
	}

	rec := httptest.NewRecorder()
	metrics.Handler(components.Registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `simpleimage_conversions_total{format="gif"} 1`) {
		t.Errorf("expected a gif conversion in metrics, got:\n%s", body)
	}
}

func TestBuildComponentsFilesystem(t *testing.T) {
	cfg, err := Load(WithFilesystemStorage(t.TempDir()), WithKeyLayout("sharded"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	components, err := cfg.BuildComponents(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer components.Close()

	if components.Registry != nil {
		t.Error("expected no registry without metrics")
	}
	if _, err := components.Service.Upload(context.Background(), simpleimage.UploadRequest{FileName: "dot.png", Data: samplePNG(t)}); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
}

func TestBuildComponentsRemoteConverter(t *testing.T) {
	cfg, err := Load(WithConversionURL("not a url", time.Second, false))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if _, err := cfg.BuildComponents(context.Background()); err == nil {
		t.Error("expected error for an invalid conversion URL")
	}
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
