// Package directory talks to the destination directory service, which maps
// destination names to scene coordinates, and provides a reference server
// for it.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/1F47E/qr-navigator/pkg/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrStatus is wrapped by StatusError
	ErrStatus = errors.New("directory: unexpected status")
	// ErrMalformedResponse is returned when a response body is not the expected JSON
	ErrMalformedResponse = errors.New("directory: malformed response")
	// ErrNotFound is returned by stores for unknown destinations
	ErrNotFound = errors.New("directory: destination not found")
)

// StatusError reports a non-2xx HTTP response
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("directory: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("directory: unexpected status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// HTTPDoer is the part of *http.Client the client needs
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries a directory service
type Client struct {
	base  *url.URL
	http  HTTPDoer
	cache *lru.Cache[string, models.Vec3]
}

// Option configures a Client
type Option func(*Client) error

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) error {
		c.http = doer
		return nil
	}
}

// WithTimeout uses a dedicated http.Client with the given timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.http = &http.Client{Timeout: d}
		return nil
	}
}

// WithLookupCache memoizes up to size lookup results. size <= 0 disables caching.
func WithLookupCache(size int) Option {
	return func(c *Client) error {
		if size <= 0 {
			c.cache = nil
			return nil
		}
		cache, err := lru.New[string, models.Vec3](size)
		if err != nil {
			return fmt.Errorf("failed to create lookup cache: %w", err)
		}
		c.cache = cache
		return nil
	}
}

// NewClient creates a client for the endpoint at baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid directory url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid directory url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base: base,
		http: http.DefaultClient,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Search returns the destination names matching text, in server order
func (c *Client) Search(ctx context.Context, text string) ([]string, error) {
	body, err := c.get(ctx, "search", text)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}

	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		return nil, fmt.Errorf("search %q: %w: %v", text, ErrMalformedResponse, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// positionData uses pointers so missing fields are detected
type positionData struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// Lookup returns the coordinate of the named destination
func (c *Client) Lookup(ctx context.Context, name string) (models.Vec3, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(name); ok {
			return v, nil
		}
	}

	body, err := c.get(ctx, "destination", name)
	if err != nil {
		return models.Vec3{}, fmt.Errorf("lookup %q: %w", name, err)
	}

	var pos positionData
	if err := json.Unmarshal(body, &pos); err != nil {
		return models.Vec3{}, fmt.Errorf("lookup %q: %w: %v", name, ErrMalformedResponse, err)
	}
	if pos.X == nil || pos.Y == nil || pos.Z == nil {
		return models.Vec3{}, fmt.Errorf("lookup %q: %w: missing coordinate", name, ErrMalformedResponse)
	}

	v := models.Vec3{X: *pos.X, Y: *pos.Y, Z: *pos.Z}
	if c.cache != nil {
		c.cache.Add(name, v)
	}
	return v, nil
}

func (c *Client) get(ctx context.Context, key, value string) ([]byte, error) {
	u := *c.base
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
