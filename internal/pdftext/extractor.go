// Package pdftext decodes the text layer of PDF documents.
package pdftext

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Methods accepted by Config.Method.
const (
	MethodNative    = "native"
	MethodPdftotext = "pdftotext"
)

type Config struct {
	Method    string // MethodNative (default) or MethodPdftotext
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
}

type Result struct {
	Text     string
	Pages    int
	Method   string
	Duration time.Duration
}

// Extractor returns every page's text in page order, joined with "\n".
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Method == "" {
		cfg.Method = MethodNative
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner used by the pdftotext method.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract decodes path with the configured method.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	e.logger.Debug("pdftext.extract.start", "path", path, "method", e.cfg.Method)

	var (
		pages []string
		err   error
	)
	switch e.cfg.Method {
	case MethodNative:
		pages, err = nativePages(path)
	case MethodPdftotext:
		pages, err = e.pdftotextPages(ctx, path)
	default:
		return Result{}, fmt.Errorf("unsupported text method: %q", e.cfg.Method)
	}
	if err != nil {
		return Result{Method: e.cfg.Method, Duration: time.Since(start)}, fmt.Errorf("decode %s: %w", path, err)
	}

	return Result{
		Text:     strings.Join(pages, "\n"),
		Pages:    len(pages),
		Method:   e.cfg.Method,
		Duration: time.Since(start),
	}, nil
}
