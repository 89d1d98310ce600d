package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// requestTimeout bounds every upstream request end to end.
	requestTimeout = 30 * time.Second

	// maxResponseBytes caps how much of a response body is read. Upstream
	// payloads are small; anything larger indicates a misbehaving endpoint.
	maxResponseBytes = 10 << 20

	// bodySnippetLen is how much of an error body is quoted in diagnostics.
	bodySnippetLen = 200

	// userAgent identifies the collector to upstream APIs.
	userAgent = "traction-metrics-collector"

	headerAuthorization      = "Authorization"
	headerUserAgent          = "User-Agent"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
)

// client is the shared HTTP plumbing of all adapters: one timeout, one
// response size cap, one status-to-error mapping.
type client struct {
	hc *http.Client
}

func newClient() *client {
	return &client{hc: &http.Client{Timeout: requestTimeout}}
}

// getJSON issues a GET and decodes the JSON response into out. Extra headers
// are applied on top of the defaults. Non-2xx statuses map to the sentinel
// taxonomy: 404 to [ErrNotFound], 401 to [ErrAuthRequired], 403 to
// [ErrRateLimited] when the rate-limit budget is exhausted and
// [ErrAuthRequired] otherwise, 429 to [ErrRateLimited].
func (c *client) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if reqErr != nil {
		return fmt.Errorf("build request %s: %w", url, reqErr)
	}

	req.Header.Set(headerUserAgent, userAgent)

	for key, values := range header {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}

	resp, doErr := c.hc.Do(req)
	if doErr != nil {
		return fmt.Errorf("get %s: %w", url, doErr)
	}

	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		return fmt.Errorf("read %s: %w", url, readErr)
	}

	statusErr := statusError(resp, body, url)
	if statusErr != nil {
		return statusErr
	}

	unmarshalErr := json.Unmarshal(body, out)
	if unmarshalErr != nil {
		return fmt.Errorf("decode %s: %w", url, unmarshalErr)
	}

	return nil
}

func statusError(resp *http.Response, body []byte, url string) error {
	status := resp.StatusCode
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return nil
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuthRequired, url)
	case http.StatusForbidden:
		if resp.Header.Get(headerRateLimitRemaining) == "0" {
			return fmt.Errorf("%w: %s", ErrRateLimited, url)
		}

		return fmt.Errorf("%w: %s", ErrAuthRequired, url)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, url)
	}

	return fmt.Errorf("get %s: unexpected status %d: %s", url, status, bodySnippet(body))
}

func bodySnippet(body []byte) string {
	if len(body) > bodySnippetLen {
		body = body[:bodySnippetLen]
	}

	return string(body)
}
