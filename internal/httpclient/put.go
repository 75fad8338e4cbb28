package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrPreconditionFailed is returned by DoPUT when the server answers 412,
// i.e. the resource changed since etag was read or already exists.
var ErrPreconditionFailed = errors.New("precondition failed")

// DoPUT uploads a calendar object. With an etag the write only succeeds while
// the resource still carries it (If-Match); without one the resource must not
// exist yet (If-None-Match: *). It returns the new ETag, which may be empty
// when the server does not report one.
func (c *httpClientWrapper) DoPUT(ctx context.Context, urlStr string, etag string, data []byte) (newEtag string, err error) {
	c.logger.Debug("starting PUT request",
		"url", urlStr,
		"etag", etag,
		"data_length", len(data))

	resolvedURL, err := c.resolveURL(urlStr)
	if err != nil {
		c.logger.Debug("failed to resolve URL", "url", urlStr, "error", err)
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, resolvedURL.String(), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if etag != "" {
		req.Header.Set("If-Match", etag)
	} else {
		req.Header.Set("If-None-Match", "*")
	}
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("received response", "status", resp.Status)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
	case http.StatusPreconditionFailed:
		return "", fmt.Errorf("%w: %s", ErrPreconditionFailed, resolvedURL.Path)
	default:
		body, _ := io.ReadAll(resp.Body)
		c.logger.Debug("unexpected status code",
			"status_code", resp.StatusCode,
			"status", resp.Status)
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	newEtag = resp.Header.Get("ETag")
	c.logger.Debug("PUT request complete",
		"status", resp.Status,
		"new_etag", newEtag)
	return newEtag, nil
}
