package catalogue

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/joseph-ayodele/aaib-collector/constants"
	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/entity"
	"github.com/joseph-ayodele/aaib-collector/internal/retry"
)

type contentResponse struct {
	Details struct {
		Attachments []struct {
			URL         string `json:"url"`
			ContentType string `json:"content_type"`
		} `json:"attachments"`
	} `json:"details"`
}

// Resolver maps a report reference to the PDF attachments on its detail page.
type Resolver struct {
	client  *Client
	policy  retry.Policy
	exclude string
	logger  *slog.Logger
}

// NewResolver builds a resolver. Attachments whose URL contains exclude (case-insensitive) are dropped.
func NewResolver(client *Client, policy retry.Policy, exclude string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, policy: policy, exclude: strings.ToLower(exclude), logger: logger}
}

// Resolve returns the PDF attachment URLs of one report in page order.
// A detail page with no attachments yields an empty slice.
func (r *Resolver) Resolve(ctx context.Context, ref entity.ReportReference) ([]entity.AttachmentURL, error) {
	log := common.LoggerFromContext(ctx, r.logger)
	path := "/api/content" + ensureLeadingSlash(string(ref))

	var doc contentResponse
	err := retry.Do(ctx, r.policy, log, "resolve "+string(ref), func(ctx context.Context, _ int) error {
		doc = contentResponse{}
		return r.client.getJSON(ctx, path, nil, &doc)
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.AttachmentURL, 0, len(doc.Details.Attachments))
	for _, a := range doc.Details.Attachments {
		if a.ContentType != constants.PDFContentType || a.URL == "" {
			continue
		}
		if r.exclude != "" && strings.Contains(strings.ToLower(a.URL), r.exclude) {
			log.Debug("catalogue.resolve.excluded", "ref", ref, "url", a.URL)
			continue
		}
		abs, err := r.absolute(a.URL)
		if err != nil {
			log.Warn("catalogue.resolve.bad_url", "ref", ref, "url", a.URL, "error", err)
			continue
		}
		out = append(out, entity.AttachmentURL(abs))
	}
	log.Debug("catalogue.resolve.ok", "ref", ref, "attachments", len(doc.Details.Attachments), "pdfs", len(out))
	return out, nil
}

func (r *Resolver) absolute(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return r.client.BaseURL().ResolveReference(u).String(), nil
}

func ensureLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
