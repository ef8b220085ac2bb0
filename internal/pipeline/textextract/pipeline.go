package textextract

import (
	"context"
	"log/slog"
	"path/filepath"
	"unicode/utf8"

	"github.com/joseph-ayodele/aaib-collector/constants"
	"github.com/joseph-ayodele/aaib-collector/internal/checkpoint"
	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/entity"
	"github.com/joseph-ayodele/aaib-collector/internal/extract"
)

// Result describes one document with usable text.
type Result struct {
	DocumentPath string
	SidecarPath  string
	Text         string
	Reused       bool // read back from an existing sidecar
}

type Stats struct {
	Documents int
	Extracted int
	Reused    int
	Empty     int
	Failed    int
}

type Pipeline struct {
	Docs          *checkpoint.Store
	Texts         *checkpoint.Store
	TextExtractor extract.TextExtractor
	SkipExisting  bool
	Log           *slog.Logger
}

func NewPipeline(docs, texts *checkpoint.Store, tx extract.TextExtractor, skipExisting bool, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{Docs: docs, Texts: texts, TextExtractor: tx, SkipExisting: skipExisting, Log: log}
}

// ExtractAll writes a text sidecar for every stored document that yields text.
// Documents without text get no sidecar. Only a missing document directory is an error.
func (p *Pipeline) ExtractAll(ctx context.Context) ([]Result, Stats, error) {
	log := common.LoggerFromContext(ctx, p.Log)
	var stats Stats

	keys, err := p.Docs.Keys()
	if err != nil {
		log.Error("textextract.scan_failed", "dir", p.Docs.Dir, "error", err)
		return nil, stats, err
	}
	if err := p.Texts.Ensure(); err != nil {
		return nil, stats, err
	}
	stats.Documents = len(keys)
	log.Info("textextract.start", "documents", len(keys), "dir", p.Docs.Dir, "skip_existing", p.SkipExisting)

	results := make([]Result, 0, len(keys))
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}
		docPath := p.Docs.Path(key)
		dlog := log.With("document", key+constants.PDFExt)
		dlog.Info("textextract.item", "n", i+1, "of", len(keys))

		if p.SkipExisting && p.Texts.Has(key) {
			var sc entity.TextSidecar
			if err := p.Texts.ReadJSON(key, &sc); err == nil && !isEmpty(sc.Text) {
				stats.Reused++
				results = append(results, Result{DocumentPath: docPath, SidecarPath: p.Texts.Path(key), Text: sc.Text, Reused: true})
				continue
			} else if err != nil {
				dlog.Warn("textextract.sidecar_unreadable", "error", err)
			}
		}

		res, err := p.TextExtractor.Extract(ctx, docPath)
		if err != nil {
			dlog.Error("textextract.decode_failed", "error", err)
			res.Text = ""
		}
		if isEmpty(res.Text) {
			dlog.Warn("textextract.no_text")
			stats.Empty++
			continue
		}

		abs, err := filepath.Abs(docPath)
		if err != nil {
			abs = docPath
		}
		sc := entity.TextSidecar{
			PDFName:    key + constants.PDFExt,
			PDFPath:    abs,
			TextLength: utf8.RuneCountInString(res.Text),
			Text:       res.Text,
		}
		if err := p.Texts.WriteJSON(key, sc); err != nil {
			dlog.Error("textextract.write_failed", "error", err)
			stats.Failed++
			continue
		}
		stats.Extracted++
		dlog.Info("textextract.ok",
			"chars", sc.TextLength,
			"pages", res.Pages,
			"method", res.Method,
			"elapsed_ms", res.Duration.Milliseconds(),
		)
		results = append(results, Result{DocumentPath: docPath, SidecarPath: p.Texts.Path(key), Text: res.Text})
	}

	log.Info("textextract.done",
		"documents", stats.Documents,
		"extracted", stats.Extracted,
		"reused", stats.Reused,
		"empty", stats.Empty,
		"failed", stats.Failed,
	)
	return results, stats, nil
}

// isEmpty reports a decode that produced no characters. Whitespace-only text is kept.
func isEmpty(text string) bool {
	return text == ""
}
