// Package client is a typed HTTP client of the image repository service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-image/pkg/simpleimage"
)

// DefaultTimeout bounds one request, redirects included
const DefaultTimeout = 2 * time.Minute

// Client calls the repository routes under {baseURL}/repository
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the request timeout. A client passed through
// WithHTTPClient is copied rather than modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithBearerToken sends token on upload requests
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client of the repository service at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid repository URL: %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Upload stores one image and returns its id
func (c *Client) Upload(ctx context.Context, fileName string, data []byte) (string, error) {
	var id string
	err := c.upload(ctx, "/repository/upload", []simpleimage.UploadRequest{{FileName: fileName, Data: data}}, &id)
	return id, err
}

// BulkUpload stores several images and returns their ids in order
func (c *Client) BulkUpload(ctx context.Context, files []simpleimage.UploadRequest) ([]string, error) {
	var ids []string
	err := c.upload(ctx, "/repository/upload/bulk", files, &ids)
	return ids, err
}

// URL returns the access URL of the image in format; an empty format names
// the original. The repository converts on first request.
func (c *Client) URL(ctx context.Context, id, format string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imageURL(id, format), nil)
	if err != nil {
		return "", err
	}

	noFollow := *c.httpClient
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := noFollow.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", decodeError(resp)
	}
	loc, err := resp.Location()
	if err != nil {
		return "", fmt.Errorf("redirect without location: %w", err)
	}
	return loc.String(), nil
}

// BulkURLs resolves every id in format in one call
func (c *Client) BulkURLs(ctx context.Context, ids []string, format string) (map[string]string, error) {
	body, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/repository/urls"
	if format != "" {
		endpoint += "?format=" + url.QueryEscape(format)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var urls map[string]string
	if err := c.do(req, http.StatusOK, &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

// FetchOriginal downloads the original bytes of id
func (c *Client) FetchOriginal(ctx context.Context, id string) ([]byte, error) {
	return c.Fetch(ctx, id, "")
}

// Fetch downloads the image in format, following the repository redirect
func (c *Client) Fetch(ctx context.Context, id, format string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imageURL(id, format), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) imageURL(id, format string) string {
	ref := url.PathEscape(id)
	if format != "" {
		ref += "." + url.PathEscape(format)
	}
	return c.baseURL + "/repository/" + ref
}

func (c *Client) upload(ctx context.Context, path string, files []simpleimage.UploadRequest, out interface{}) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("file", f.FileName)
		if err != nil {
			return err
		}
		if _, err := part.Write(f.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.do(req, http.StatusCreated, out)
}

func (c *Client) do(req *http.Request, want int, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
