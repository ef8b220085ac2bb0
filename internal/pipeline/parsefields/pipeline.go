package parsefields

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/aaib-collector/constants"
	"github.com/joseph-ayodele/aaib-collector/internal/checkpoint"
	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/entity"
	"github.com/joseph-ayodele/aaib-collector/internal/extract"
)

// Config holds behavior flags for the parse stage.
type Config struct {
	UseLLM bool
	// Resume keeps existing field records that carry no error.
	Resume bool
}

type Stats struct {
	Sidecars  int
	Extracted int
	Errored   int
	Kept      int
	Failed    int
}

type Pipeline struct {
	Logger    *slog.Logger
	Cfg       Config
	Texts     *checkpoint.Store
	Records   *checkpoint.Store
	Extractor extract.FieldExtractor
}

// NewPipeline selects the extraction strategy once. When the model is requested but
// model is nil (no credential), the stage falls back to the deterministic strategy.
func NewPipeline(logger *slog.Logger, cfg Config, texts, records *checkpoint.Store, model extract.FieldExtractor) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	var fe extract.FieldExtractor = extract.Deterministic{}
	if cfg.UseLLM {
		if model != nil {
			fe = model
		} else {
			logger.Warn("parsefields.llm_unavailable",
				"msg", "LLM extraction requested but no API key is configured; falling back to deterministic extraction")
		}
	}
	return &Pipeline{Logger: logger, Cfg: cfg, Texts: texts, Records: records, Extractor: fe}
}

// ExtractorName reports the selected strategy.
func (p *Pipeline) ExtractorName() string {
	return p.Extractor.Name()
}

// ProcessAll turns every text sidecar into a field record sidecar and returns the records.
func (p *Pipeline) ProcessAll(ctx context.Context) ([]entity.FieldRecord, Stats, error) {
	log := common.LoggerFromContext(ctx, p.Logger)
	var stats Stats

	keys, err := p.Texts.Keys()
	if err != nil {
		log.Error("parsefields.scan_failed", "dir", p.Texts.Dir, "error", err)
		return nil, stats, err
	}
	if err := p.Records.Ensure(); err != nil {
		return nil, stats, err
	}
	stats.Sidecars = len(keys)
	log.Info("parsefields.start", "sidecars", len(keys), "extractor", p.Extractor.Name(), "resume", p.Cfg.Resume)

	out := make([]entity.FieldRecord, 0, len(keys))
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return out, stats, err
		}
		klog := log.With("sidecar", key+constants.TextSuffix)
		klog.Info("parsefields.item", "n", i+1, "of", len(keys))

		if p.Cfg.Resume && p.Records.Has(key) {
			var prev entity.FieldRecord
			if err := p.Records.ReadJSON(key, &prev); err == nil && prev.Error == "" {
				stats.Kept++
				out = append(out, prev)
				continue
			}
		}

		var sc entity.TextSidecar
		if err := p.Texts.ReadJSON(key, &sc); err != nil {
			klog.Error("parsefields.read_failed", "error", err)
			stats.Failed++
			continue
		}

		rec := p.Extractor.Extract(common.WithLogger(ctx, klog), sc.Text)
		rec.SourcePDF = sourceName(sc, key)
		rec.TextLength = utf8.RuneCountInString(sc.Text)

		if err := p.Records.WriteJSON(key, rec); err != nil {
			klog.Error("parsefields.write_failed", "error", err)
			stats.Failed++
			continue
		}
		if rec.Error != "" {
			stats.Errored++
			klog.Warn("parsefields.record_error", "error", rec.Error)
		} else {
			stats.Extracted++
			klog.Info("parsefields.ok", "title", deref(rec.Title), "registration", deref(rec.Registration))
		}
		out = append(out, rec)
	}

	log.Info("parsefields.done",
		"sidecars", stats.Sidecars,
		"extracted", stats.Extracted,
		"errored", stats.Errored,
		"kept", stats.Kept,
		"failed", stats.Failed,
	)
	return out, stats, nil
}

func sourceName(sc entity.TextSidecar, key string) string {
	if name := strings.TrimSpace(sc.PDFName); name != "" {
		return name
	}
	return key + constants.PDFExt
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
