package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultExpiration = 24 * time.Hour
	DefaultURLPattern = "/blobs/{key}"
)

// Signer generates and validates HMAC-signed presigned URLs
type Signer struct {
	secretKey         []byte
	defaultExpiration time.Duration
	urlPattern        string
	now               func() time.Time
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		defaultExpiration: DefaultExpiration,
		urlPattern:        DefaultURLPattern,
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SignURL generates a presigned URL for the given HTTP method and path.
// A zero expiresIn uses the default expiration.
//
//	url, err := signer.SignURL("GET", "/blobs/c53c", 0)
//	// /blobs/c53c?signature=abc123...&expires=1696789012
func (s *Signer) SignURL(method, path string, expiresIn time.Duration) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrNoSecretKey
	}

	if expiresIn == 0 {
		expiresIn = s.defaultExpiration
	}
	expiresAt := s.now().Add(expiresIn).Unix()

	signature := s.generateSignature(s.createPayload(method, path, expiresAt))

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%ssignature=%s&expires=%d", path, separator, signature, expiresAt), nil
}

// SignURLWithBase generates a presigned URL with a base URL prefix
func (s *Signer) SignURLWithBase(baseURL, method, path string, expiresIn time.Duration) (string, error) {
	signedPath, err := s.SignURL(method, path, expiresIn)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(baseURL, "/") + signedPath, nil
}

// ValidateRequest validates the signature and expiration of an HTTP request.
// Requests always pass when no secret key is configured.
func (s *Signer) ValidateRequest(r *http.Request) error {
	if !s.IsEnabled() {
		return nil
	}

	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")

	if signature == "" {
		return ErrMissingSignature
	}
	if expiresStr == "" {
		return ErrMissingExpiration
	}

	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}

	return s.Validate(r.Method, r.URL.Path, signature, expiresAt)
}

// Validate validates the signature and expiration for a given method, path, signature, and expiration timestamp
func (s *Signer) Validate(method, path, signature string, expiresAt int64) error {
	if s.now().Unix() > expiresAt {
		return ErrExpired
	}

	expected := s.generateSignature(s.createPayload(method, path, expiresAt))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// PathFor builds the URL path of key from the configured pattern.
func (s *Signer) PathFor(key string) string {
	return strings.Replace(s.urlPattern, "{key}", key, 1)
}

// ExtractObjectKey extracts the storage key from a URL path based on the configured URL pattern
func (s *Signer) ExtractObjectKey(path string) (string, error) {
	const placeholder = "{key}"

	idx := strings.Index(s.urlPattern, placeholder)
	if idx == -1 {
		return "", fmt.Errorf("URL pattern does not contain {key} placeholder")
	}
	prefix := s.urlPattern[:idx]
	suffix := s.urlPattern[idx+len(placeholder):]

	if !strings.HasPrefix(path, prefix) {
		return "", fmt.Errorf("path does not match URL pattern prefix")
	}

	key := strings.TrimPrefix(path, prefix)
	if suffix != "" {
		key = strings.TrimSuffix(key, suffix)
	}
	if key == "" {
		return "", fmt.Errorf("empty key in path")
	}
	return key, nil
}

// IsEnabled returns true if signature validation is enabled (secret key is set)
func (s *Signer) IsEnabled() bool {
	return len(s.secretKey) > 0
}

// DefaultExpiration returns the lifetime used for signed URLs
func (s *Signer) DefaultExpiration() time.Duration {
	return s.defaultExpiration
}

// createPayload creates the signature payload: METHOD|PATH|EXPIRES
func (s *Signer) createPayload(method, path string, expiresAt int64) string {
	return fmt.Sprintf("%s|%s|%d", method, path, expiresAt)
}

func (s *Signer) generateSignature(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
