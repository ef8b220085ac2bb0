package pdftext

import (
	"context"
	"fmt"
	"strings"
)

func (e *Extractor) pdftotextPages(ctx context.Context, path string) ([]string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", e.cfg.Pdftotext, err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	// Every page, including the last, is terminated by a form feed.
	pages := strings.Split(string(out), "\f")
	if n := len(pages); n > 1 && pages[n-1] == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}
