package main

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/aaib-collector/constants"
	"github.com/joseph-ayodele/aaib-collector/internal/catalogue"
	"github.com/joseph-ayodele/aaib-collector/internal/checkpoint"
	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/export"
	"github.com/joseph-ayodele/aaib-collector/internal/extract"
	"github.com/joseph-ayodele/aaib-collector/internal/llm"
	"github.com/joseph-ayodele/aaib-collector/internal/llm/gemini"
	"github.com/joseph-ayodele/aaib-collector/internal/llm/openai"
	"github.com/joseph-ayodele/aaib-collector/internal/pdftext"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/aggregate"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/download"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/parsefields"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/textextract"
	"github.com/joseph-ayodele/aaib-collector/internal/repository"
	"github.com/joseph-ayodele/aaib-collector/internal/retry"
)

type wireOptions struct {
	UseLLM bool
	Resume bool
}

// app is the fully wired pipeline plus the resources it must release.
type app struct {
	Processor *pipeline.Processor
	Extractor string
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

type stores struct {
	PDFs    *checkpoint.Store
	Texts   *checkpoint.Store
	Records *checkpoint.Store
}

func newStores(cfg *common.Config) stores {
	return stores{
		PDFs:    checkpoint.New(cfg.Storage.PDFsDir, constants.PDFExt),
		Texts:   checkpoint.New(cfg.Storage.TextsDir, constants.TextSuffix),
		Records: checkpoint.New(cfg.Storage.ExtractedDir, constants.ExtractedSuffix),
	}
}

func wire(ctx context.Context, cfg *common.Config, wo wireOptions, logger *slog.Logger) (*app, error) {
	a := &app{}
	st := newStores(cfg)

	client, err := catalogue.NewClient(cfg.Catalogue.BaseURL, cfg.Catalogue.Timeout, logger)
	if err != nil {
		return nil, err
	}
	resolvePolicy := retry.Forever(cfg.Catalogue.ResolveRetryDelay)
	if cfg.Catalogue.ResolveMaxAttempts > 0 {
		resolvePolicy = retry.Fixed(cfg.Catalogue.ResolveMaxAttempts, cfg.Catalogue.ResolveRetryDelay)
	}

	downloader := download.NewDownloader(st.PDFs, download.Config{
		MaxAttempts: cfg.Fetch.MaxAttempts,
		RetryDelay:  cfg.Fetch.RetryDelay,
		Timeout:     cfg.Fetch.Timeout,
		ValidatePDF: cfg.Fetch.ValidatePDF,
	}, logger)

	pdf := pdftext.NewExtractor(pdftext.Config{Method: cfg.Text.Method, Pdftotext: cfg.Text.Pdftotext}, logger)
	text := textextract.NewPipeline(st.PDFs, st.Texts, extract.NewPDFAdapter(pdf), cfg.Text.SkipExisting, logger)

	var model extract.FieldExtractor
	if wo.UseLLM {
		provider, closeFn, err := newProvider(ctx, &cfg.LLM, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		if provider != nil {
			model = extract.NewModel(provider, cfg.LLM.MaxInputChars, logger)
		}
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
	}
	fields := parsefields.NewPipeline(logger, parsefields.Config{UseLLM: wo.UseLLM, Resume: wo.Resume}, st.Texts, st.Records, model)
	a.Extractor = fields.ExtractorName()

	agg := aggregate.NewAggregator(st.Records, []aggregate.Output{
		{Writer: export.NewXLSXWriter(logger), Path: cfg.Storage.OutputExcel},
		{Writer: export.NewCSVWriter(logger), Path: cfg.Storage.OutputCSV},
	}, logger)

	var runs pipeline.RunRecorder
	if cfg.LedgerEnabled() {
		db, err := repository.Open(ctx, repository.Config{DSN: cfg.Ledger.DSN}, logger)
		if err != nil {
			logger.Warn("ledger.unavailable", "error", err)
		} else {
			a.closers = append(a.closers, func() error { db.Close(logger); return nil })
			runs = repository.NewRunRepository(db, logger)
		}
	}

	a.Processor = pipeline.NewProcessor(logger, pipeline.Stages{
		Links:     catalogue.NewLinkFetcher(client, cfg.Catalogue.Format, cfg.Catalogue.PageSize, logger),
		Resolver:  catalogue.NewResolver(client, resolvePolicy, cfg.Catalogue.Exclude, logger),
		Documents: downloader,
		Text:      text,
		Fields:    fields,
		Aggregate: agg,
	}, runs)
	return a, nil
}

// newProvider builds the configured model client. A missing credential yields a nil provider
// so the field stage can downgrade to deterministic extraction.
func newProvider(ctx context.Context, cfg *common.LLMConfig, logger *slog.Logger) (llm.FieldExtractor, func() error, error) {
	if !cfg.HasAPIKey() {
		return nil, nil, nil
	}
	p := cfg.ActiveProvider()
	switch cfg.Provider {
	case common.ProviderGemini:
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      p.APIKey,
			Model:       p.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, nil, common.WrapError(err, "create gemini client")
		}
		return c, c.Close, nil
	case common.ProviderOpenAI, "":
		return openai.NewClient(openai.Config{
			APIKey:      p.APIKey,
			BaseURL:     p.BaseURL,
			Model:       p.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil, nil
	default:
		return nil, nil, common.NewAppError("CONFIG_ERROR", "unknown llm provider "+cfg.Provider, common.ErrInvalidInput)
	}
}
