package catalogue

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/entity"
)

// MaxPageSize is the largest page the search API serves.
const MaxPageSize = 1500

type searchResponse struct {
	Results []struct {
		Link string `json:"link"`
	} `json:"results"`
}

// LinkFetcher pages through the search API, newest first.
type LinkFetcher struct {
	client   *Client
	format   string
	pageSize int
	logger   *slog.Logger
}

func NewLinkFetcher(client *Client, format string, pageSize int, logger *slog.Logger) *LinkFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &LinkFetcher{client: client, format: format, pageSize: pageSize, logger: logger}
}

// Fetch returns up to total report references, most recently published first.
// Paging stops early when the catalogue returns a short or empty page.
func (f *LinkFetcher) Fetch(ctx context.Context, total int) ([]entity.ReportReference, error) {
	log := common.LoggerFromContext(ctx, f.logger)
	links := make([]entity.ReportReference, 0, max(total, 0))
	start := 0
	for len(links) < total {
		count := min(f.pageSize, total-len(links))
		q := url.Values{}
		q.Set("filter_format", f.format)
		q.Set("order", "-public_timestamp")
		q.Set("start", strconv.Itoa(start))
		q.Set("count", strconv.Itoa(count))
		q.Set("fields", "link")

		var page searchResponse
		if err := f.client.getJSON(ctx, "/api/search.json", q, &page); err != nil {
			log.Error("catalogue.links.page_error", "start", start, "count", count, "error", err)
			return nil, fmt.Errorf("search page start=%d: %w", start, err)
		}
		log.Info("catalogue.links.page", "start", start, "count", count, "returned", len(page.Results))

		for _, r := range page.Results {
			links = append(links, entity.ReportReference(r.Link))
		}
		if len(page.Results) < count {
			break
		}
		start += count
	}
	if len(links) > total {
		links = links[:total]
	}
	return links, nil
}
