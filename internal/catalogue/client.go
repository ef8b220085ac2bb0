// Package catalogue talks to the publisher's search and content APIs.
package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/aaib-collector/internal/common"
)

// Client issues JSON GETs against the catalogue base URL.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "catalogue base url", err)
	}
	return &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// BaseURL returns the catalogue origin.
func (c *Client) BaseURL() *url.URL {
	return c.base
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	log := common.LoggerFromContext(ctx, c.logger)
	endpoint := c.endpoint(path, q)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Warn("catalogue.http.response_body_close_error", "url", endpoint, "error", err)
		}
	}(resp.Body)

	log.Debug("catalogue.http.response",
		"url", endpoint,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return &common.HTTPError{StatusCode: resp.StatusCode, URL: endpoint}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
