package httpclient

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// BasicAuthTransport implements http.RoundTripper and adds Basic Auth
// credentials to outgoing requests.
type BasicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// NewBasicAuthTransport creates a new BasicAuthTransport. If transport is nil,
// http.DefaultTransport will be used.
func NewBasicAuthTransport(username, password string, transport http.RoundTripper, logger *slog.Logger) *BasicAuthTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BasicAuthTransport{
		Username:  username,
		Password:  password,
		Transport: transport,
		Logger:    logger,
	}
}

// RoundTrip clones req, sets the credentials on the clone and delegates to the
// underlying transport.
func (t *BasicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Username == "" {
		return nil, errors.New("basic auth username cannot be empty")
	}
	if t.Transport == nil {
		return nil, errors.New("transport cannot be nil")
	}

	authed := req.Clone(req.Context())
	authed.SetBasicAuth(t.Username, t.Password)

	t.Logger.Debug("outgoing request",
		"method", req.Method,
		"url", req.URL.String(),
		"user", t.Username)

	resp, err := t.Transport.RoundTrip(authed)
	if err != nil {
		t.Logger.Debug("request failed", "url", req.URL.String(), "error", err)
		return nil, err
	}
	t.Logger.Debug("incoming response", "status", resp.Status)
	return resp, nil
}
