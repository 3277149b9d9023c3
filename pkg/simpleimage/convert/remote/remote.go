// Package remote is the HTTP client of the conversion service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/tendant/simple-image/pkg/simpleimage"
)

// DefaultTimeout bounds one conversion request
const DefaultTimeout = 60 * time.Second

// ErrRejected indicates the conversion service answered with an error status
var ErrRejected = errors.New("conversion service rejected the request")

// Converter implements simpleimage.Converter against POST {baseURL}/conversion
type Converter struct {
	baseURL    string
	httpClient *http.Client
	gzip       bool
}

// Option configures the remote converter
type Option func(*Converter)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Converter) {
		c.httpClient = client
	}
}

// WithTimeout sets the request timeout. A client passed through
// WithHTTPClient is copied rather than modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Converter) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithGzip compresses request payloads with Content-Encoding: gzip
func WithGzip(enabled bool) Option {
	return func(c *Converter) {
		c.gzip = enabled
	}
}

// New creates a converter calling the conversion service at baseURL
func New(baseURL string, opts ...Option) (*Converter, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid conversion service URL: %q", baseURL)
	}

	c := &Converter{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Convert posts payload and returns the converted bytes. It does not retry.
func (c *Converter) Convert(ctx context.Context, payload []byte, targetFormat string) ([]byte, error) {
	format := simpleimage.NormalizeFormat(targetFormat)
	endpoint := c.baseURL + "/conversion?format=" + url.QueryEscape(format)

	body, err := c.encodeBody(payload)
	if err != nil {
		return nil, &simpleimage.ConversionError{Format: format, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &simpleimage.ConversionError{Format: format, Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &simpleimage.ConversionError{Format: format, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &simpleimage.ConversionError{Format: format, Err: decodeError(resp)}
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &simpleimage.ConversionError{Format: format, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(out) == 0 {
		return nil, &simpleimage.ConversionError{Format: format, Err: errors.New("empty response body")}
	}
	return out, nil
}

func (c *Converter) encodeBody(payload []byte) ([]byte, error) {
	if !c.gzip {
		return payload, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeError turns an error response into an error wrapping ErrRejected
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body simpleimage.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.ErrorCode != 0 {
		return fmt.Errorf("%w: %s", ErrRejected, body.Error())
	}
	return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(data)))
}
