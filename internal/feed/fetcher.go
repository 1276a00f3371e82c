package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	userAgent = "feedsync/1.0 (+https://github.com/feedsync/feedsync)"

	acceptHeader = "application/rss+xml, application/atom+xml, " +
		"application/feed+json, application/json, " +
		"application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

	maxRedirects     = 10
	maxResponseBytes = 10 << 20
)

// Client retrieves raw feed payloads with a fixed timeout and redirect cap.
type Client struct {
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		log: log,
	}
}

// Fetch downloads the feed at url and returns the raw bytes together with the
// Content-Type header value. Every failure comes back as a *FetchError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &FetchError{URL: url, Err: err}
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.WarnContext(ctx, "Failed to close response body",
				"error", err,
				"url", url)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "", &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	return body, resp.Header.Get("Content-Type"), nil
}
