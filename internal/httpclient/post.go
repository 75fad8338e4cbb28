package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// DoPOST executes a POST request. Any 2xx status is a success; the body of
// other responses is logged and an error returned.
func (c *httpClientWrapper) DoPOST(ctx context.Context, urlStr string, header http.Header, body []byte) (*Response, error) {
	c.logger.Debug("starting POST request",
		"url", urlStr,
		"data_length", len(body))

	resolvedURL, err := c.resolveURL(urlStr)
	if err != nil {
		c.logger.Debug("failed to resolve URL", "url", urlStr, "error", err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resolvedURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("unexpected status code",
			"status_code", resp.StatusCode,
			"body", string(data))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	c.logger.Debug("POST request complete",
		"status", resp.Status,
		"response_length", len(data))
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// StatusError reports a non-2xx response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}
