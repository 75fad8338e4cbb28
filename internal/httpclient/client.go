package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Client is the HTTP surface the CalDAV transport and store need
type Client interface {
	// DoPOST sends body to urlStr and returns the response status and body.
	DoPOST(ctx context.Context, urlStr string, header http.Header, body []byte) (*Response, error)
	// DoPUT conditionally uploads a calendar object and returns its new ETag.
	DoPUT(ctx context.Context, urlStr string, etag string, data []byte) (string, error)
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type httpClientWrapper struct {
	client  *http.Client
	baseURL url.URL
	logger  *slog.Logger
}

// resolveURL resolves a URL string against the base URL
func (c *httpClientWrapper) resolveURL(urlStr string) (*url.URL, error) {
	ref, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", urlStr, err)
	}
	return c.baseURL.ResolveReference(ref), nil
}

// NewHttpClientWrapper creates a new client wrapper resolving relative URLs
// against baseURL
func NewHttpClientWrapper(client *http.Client, baseURL url.URL, logger *slog.Logger) (Client, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &httpClientWrapper{client: client, baseURL: baseURL, logger: logger}, nil
}

// New creates a client for baseURL, authenticating with basic auth when
// username is set.
func New(baseURL, username, password string, logger *slog.Logger) (Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL %q: %w", baseURL, err)
	}
	client := &http.Client{}
	if username != "" {
		client.Transport = NewBasicAuthTransport(username, password, nil, logger)
	}
	return NewHttpClientWrapper(client, *u, logger)
}
