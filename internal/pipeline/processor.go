// Package pipeline runs the collection stages in order and records each run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/aaib-collector/constants"
	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/entity"
	"github.com/joseph-ayodele/aaib-collector/internal/export"
	"github.com/joseph-ayodele/aaib-collector/internal/extract"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/aggregate"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/download"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/parsefields"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/textextract"
	"github.com/joseph-ayodele/aaib-collector/internal/repository"
)

type LinkFetcher interface {
	Fetch(ctx context.Context, total int) ([]entity.ReportReference, error)
}

type AttachmentResolver interface {
	Resolve(ctx context.Context, ref entity.ReportReference) ([]entity.AttachmentURL, error)
}

type DocumentFetcher interface {
	FetchMany(ctx context.Context, urls []entity.AttachmentURL) ([]string, download.Stats)
}

type TextStage interface {
	ExtractAll(ctx context.Context) ([]textextract.Result, textextract.Stats, error)
}

type FieldStage interface {
	ProcessAll(ctx context.Context) ([]entity.FieldRecord, parsefields.Stats, error)
	ExtractorName() string
}

type Aggregator interface {
	Aggregate(ctx context.Context) (export.Table, aggregate.Stats, error)
}

// RunRecorder is the subset of the run ledger the processor writes to.
type RunRecorder interface {
	Start(ctx context.Context, p repository.RunParams) (uuid.UUID, error)
	RecordStage(ctx context.Context, runID uuid.UUID, res entity.StageResult) error
	Finish(ctx context.Context, runID uuid.UUID, status constants.RunStatus) error
}

// Stages groups the stage implementations.
type Stages struct {
	Links     LinkFetcher
	Resolver  AttachmentResolver
	Documents DocumentFetcher
	Text      TextStage
	Fields    FieldStage
	Aggregate Aggregator
}

type Options struct {
	NumReports     int
	SkipDownload   bool
	SkipExtraction bool
}

// Summary is the outcome of one run.
type Summary struct {
	RunID  uuid.UUID
	Status constants.RunStatus
	Stages []entity.StageResult
	Table  export.Table

	recorded bool // run is in the ledger
}

// Rows returns the number of aggregated rows.
func (s Summary) Rows() int { return s.Table.Len() }

// Processor coordinates the five stages: links, documents, text, fields, aggregate.
type Processor struct {
	Logger *slog.Logger
	Stages Stages
	Runs   RunRecorder // optional
}

func NewProcessor(logger *slog.Logger, stages Stages, runs RunRecorder) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Stages: stages, Runs: runs}
}

// Run executes every stage in order. Each stage rediscovers its input from disk, so any stage
// can be re-run on its own. Links are always fetched: an empty catalogue halts the run without
// error, a link fetch failure or cancellation ends it with an error. Per-item failures never stop a stage.
func (p *Processor) Run(ctx context.Context, opts Options) (Summary, error) {
	extractor := p.Stages.Fields.ExtractorName()
	runID, recorded := p.startRun(ctx, repository.RunParams{
		NumReports: opts.NumReports,
		UseLLM:     extractor != extract.Deterministic{}.Name(),
		Extractor:  extractor,
	})
	log := p.Logger.With("run_id", runID.String())
	ctx = common.WithRunID(common.WithLogger(ctx, log), runID.String())
	sum := Summary{RunID: runID, Table: export.NewTable(entity.Columns), recorded: recorded}

	log.Info("pipeline.start",
		"num_reports", opts.NumReports,
		"extractor", extractor,
		"skip_download", opts.SkipDownload,
		"skip_extraction", opts.SkipExtraction,
	)
	started := time.Now()

	finish := func(status constants.RunStatus, err error) (Summary, error) {
		sum.Status = status
		p.finishRun(ctx, &sum, status)
		log.Info("pipeline.done", "status", status, "rows", sum.Rows(), "elapsed", time.Since(started))
		return sum, err
	}

	refs, err := p.fetchLinks(ctx, &sum, opts.NumReports)
	if err != nil {
		log.Error("pipeline.links_failed", "error", err)
		return finish(constants.RunStatusFailed, fmt.Errorf("fetch links: %w", err))
	}
	if len(refs) == 0 {
		log.Error("pipeline.no_links", "msg", "catalogue returned no reports; nothing to do")
		return finish(constants.RunStatusHalted, nil)
	}

	if !opts.SkipDownload {
		p.fetchDocuments(ctx, &sum, refs)
	} else {
		log.Info("pipeline.stage.skipped", "stage", constants.StageFetchDocuments)
	}
	if err := ctx.Err(); err != nil {
		return finish(constants.RunStatusFailed, err)
	}

	if !opts.SkipExtraction {
		p.extractText(ctx, &sum)
	} else {
		log.Info("pipeline.stage.skipped", "stage", constants.StageExtractText)
	}
	if err := ctx.Err(); err != nil {
		return finish(constants.RunStatusFailed, err)
	}

	p.extractFields(ctx, &sum)
	if err := ctx.Err(); err != nil {
		return finish(constants.RunStatusFailed, err)
	}

	p.aggregate(ctx, &sum)
	return finish(constants.RunStatusCompleted, nil)
}

func (p *Processor) fetchLinks(ctx context.Context, sum *Summary, n int) ([]entity.ReportReference, error) {
	res := p.begin(constants.StageFetchLinks)
	refs, err := p.Stages.Links.Fetch(ctx, n)
	res.Inputs = n
	res.Outputs = len(refs)
	if err != nil {
		res.Failures = 1
	}
	p.end(ctx, sum, res)
	return refs, err
}

// fetchDocuments resolves each reference then downloads every attachment found.
// A reference that fails to resolve is logged and skipped.
func (p *Processor) fetchDocuments(ctx context.Context, sum *Summary, refs []entity.ReportReference) {
	log := common.LoggerFromContext(ctx, p.Logger)
	res := p.begin(constants.StageFetchDocuments)
	res.Inputs = len(refs)

	var urls []entity.AttachmentURL
	for i, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		found, err := p.Stages.Resolver.Resolve(ctx, ref)
		if err != nil {
			log.Error("pipeline.resolve_failed", "n", i+1, "of", len(refs), "ref", ref, "error", err)
			res.Failures++
			continue
		}
		if len(found) == 0 {
			log.Warn("pipeline.no_attachments", "ref", ref)
		}
		urls = append(urls, found...)
	}
	log.Info("pipeline.attachments", "references", len(refs), "urls", len(urls))

	paths, stats := p.Stages.Documents.FetchMany(ctx, urls)
	res.Outputs = len(paths)
	res.Failures += stats.Failed
	res.Skipped = stats.Existing
	p.end(ctx, sum, res)
}

func (p *Processor) extractText(ctx context.Context, sum *Summary) {
	res := p.begin(constants.StageExtractText)
	results, stats, err := p.Stages.Text.ExtractAll(ctx)
	res.Inputs = stats.Documents
	res.Outputs = len(results)
	res.Failures = stats.Failed + stats.Empty
	res.Skipped = stats.Reused
	p.abortedIf(ctx, res.Stage, err)
	p.end(ctx, sum, res)
}

func (p *Processor) extractFields(ctx context.Context, sum *Summary) {
	res := p.begin(constants.StageExtractFields)
	records, stats, err := p.Stages.Fields.ProcessAll(ctx)
	res.Inputs = stats.Sidecars
	res.Outputs = len(records)
	res.Failures = stats.Errored + stats.Failed
	res.Skipped = stats.Kept
	p.abortedIf(ctx, res.Stage, err)
	p.end(ctx, sum, res)
}

func (p *Processor) aggregate(ctx context.Context, sum *Summary) {
	res := p.begin(constants.StageAggregate)
	table, stats, err := p.Stages.Aggregate.Aggregate(ctx)
	sum.Table = table
	res.Inputs = stats.Files
	res.Outputs = stats.Rows
	res.Failures = stats.Skipped
	p.abortedIf(ctx, res.Stage, err)
	p.end(ctx, sum, res)
}

// abortedIf logs a stage whose precondition failed. The run continues with the next stage.
func (p *Processor) abortedIf(ctx context.Context, stage string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	common.LoggerFromContext(ctx, p.Logger).Error("pipeline.stage.aborted", "stage", stage, "error", err)
}

func (p *Processor) begin(stage constants.Stage) entity.StageResult {
	return entity.StageResult{Stage: string(stage), StartedAt: time.Now()}
}

func (p *Processor) end(ctx context.Context, sum *Summary, res entity.StageResult) {
	res.Elapsed = time.Since(res.StartedAt)
	sum.Stages = append(sum.Stages, res)
	common.LoggerFromContext(ctx, p.Logger).Info("pipeline.stage.done",
		"stage", res.Stage,
		"inputs", res.Inputs,
		"outputs", res.Outputs,
		"failures", res.Failures,
		"skipped", res.Skipped,
		"elapsed", res.Elapsed,
	)
	if p.Runs == nil || !sum.recorded {
		return
	}
	if err := p.Runs.RecordStage(context.WithoutCancel(ctx), sum.RunID, res); err != nil {
		common.LoggerFromContext(ctx, p.Logger).Warn("pipeline.ledger_failed", "op", "record_stage", "error", err)
	}
}

// startRun registers the run in the ledger. Without a ledger the run still gets a local id.
func (p *Processor) startRun(ctx context.Context, params repository.RunParams) (uuid.UUID, bool) {
	if p.Runs == nil {
		return uuid.New(), false
	}
	id, err := p.Runs.Start(ctx, params)
	if err != nil {
		p.Logger.Warn("pipeline.ledger_failed", "op", "start", "error", err)
		return uuid.New(), false
	}
	return id, true
}

func (p *Processor) finishRun(ctx context.Context, sum *Summary, status constants.RunStatus) {
	if p.Runs == nil || !sum.recorded {
		return
	}
	if err := p.Runs.Finish(context.WithoutCancel(ctx), sum.RunID, status); err != nil {
		common.LoggerFromContext(ctx, p.Logger).Warn("pipeline.ledger_failed", "op", "finish", "error", err)
	}
}
