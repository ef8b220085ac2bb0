// Package download is the document fetch stage: attachment URLs in, stored PDFs out.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/joseph-ayodele/aaib-collector/constants"
	"github.com/joseph-ayodele/aaib-collector/internal/checkpoint"
	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/entity"
	"github.com/joseph-ayodele/aaib-collector/internal/pdftext"
	"github.com/joseph-ayodele/aaib-collector/internal/retry"
)

// ErrNoFileName is returned when a URL has no usable final path segment.
var ErrNoFileName = errors.New("cannot derive file name from url")

type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration // per attempt, including the body
	ValidatePDF bool
}

// Stats counts the outcome of a FetchMany call.
type Stats struct {
	Requested int
	Stored    int
	Existing  int
	Failed    int
}

type Downloader struct {
	store   *checkpoint.Store
	http    *http.Client
	policy  retry.Policy
	timeout time.Duration
	verify  func(path string) error
	logger  *slog.Logger
}

func NewDownloader(store *checkpoint.Store, cfg Config, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	d := &Downloader{
		store:   store,
		http:    &http.Client{},
		policy:  retry.Fixed(cfg.MaxAttempts, cfg.RetryDelay),
		timeout: cfg.Timeout,
		logger:  logger,
	}
	if cfg.ValidatePDF {
		d.verify = d.validatePDF
	}
	return d
}

// TargetName derives the stored file name: the URL's final path segment, with ".pdf" appended when missing.
func TargetName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" || checkpoint.IsHidden(name) {
		return "", fmt.Errorf("%w: %s", ErrNoFileName, raw)
	}
	if !strings.HasSuffix(name, constants.PDFExt) {
		name += constants.PDFExt
	}
	return name, nil
}

// Fetch stores the document at u and returns its path. An existing file is returned without a network call.
func (d *Downloader) Fetch(ctx context.Context, u entity.AttachmentURL) (string, error) {
	logger := common.LoggerFromContext(ctx, d.logger)

	name, err := TargetName(string(u))
	if err != nil {
		return "", err
	}
	key := strings.TrimSuffix(name, constants.PDFExt)
	target := d.store.Path(key)
	if d.store.Has(key) {
		logger.Debug("fetch.download.exists", "file", name)
		return target, nil
	}

	err = retry.Do(ctx, d.policy, logger, "download "+name, func(ctx context.Context, attempt int) error {
		return d.download(ctx, logger, string(u), key, attempt)
	})
	if err != nil {
		logger.Error("fetch.download.failed", "url", u, "file", name, "error", err)
		return "", err
	}
	return target, nil
}

func (d *Downloader) download(ctx context.Context, logger *slog.Logger, rawURL, key string, attempt int) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("fetch.download.response_body_close_error", "url", rawURL, "error", err)
		}
	}(resp.Body)

	if resp.StatusCode/100 != 2 {
		return &common.HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	n, err := d.store.WriteFrom(key, resp.Body, d.verify)
	if err != nil {
		return err
	}
	logger.Info("fetch.download.ok",
		"url", rawURL,
		"file", d.store.Path(key),
		"bytes", n,
		"attempt", attempt,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (d *Downloader) validatePDF(p string) error {
	if err := pdftext.Validate(p); err != nil {
		return err
	}
	if pages, err := pdftext.PageCount(p); err == nil {
		d.logger.Debug("fetch.download.validated", "file", p, "pages", pages)
	}
	return nil
}

// FetchMany fetches urls in order and returns the distinct stored paths. Failures are logged and dropped.
func (d *Downloader) FetchMany(ctx context.Context, urls []entity.AttachmentURL) ([]string, Stats) {
	logger := common.LoggerFromContext(ctx, d.logger)
	stats := Stats{Requested: len(urls)}
	if err := d.store.Ensure(); err != nil {
		logger.Error("fetch.download.dir_error", "dir", d.store.Dir, "error", err)
		stats.Failed = len(urls)
		return nil, stats
	}

	paths := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for i, u := range urls {
		if ctx.Err() != nil {
			stats.Failed += len(urls) - i
			break
		}
		logger.Info("fetch.download.item", "n", i+1, "of", len(urls), "url", u)

		existed := false
		if name, err := TargetName(string(u)); err == nil {
			existed = d.store.Has(strings.TrimSuffix(name, constants.PDFExt))
		}
		p, err := d.Fetch(ctx, u)
		if err != nil {
			stats.Failed++
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
		if existed {
			stats.Existing++
		} else {
			stats.Stored++
		}
	}
	logger.Info("fetch.download.done",
		"requested", stats.Requested,
		"stored", stats.Stored,
		"existing", stats.Existing,
		"failed", stats.Failed,
	)
	return paths, stats
}
