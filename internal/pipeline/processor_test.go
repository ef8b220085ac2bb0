package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/aaib-collector/constants"
	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/entity"
	"github.com/joseph-ayodele/aaib-collector/internal/export"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/aggregate"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/download"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/parsefields"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline/textextract"
	"github.com/joseph-ayodele/aaib-collector/internal/repository"
)

// calls records the order in which fake stages run.
type calls []string

func (c *calls) add(s string) { *c = append(*c, s) }

type fakeLinks struct {
	log  *calls
	refs []entity.ReportReference
	err  error
}

func (f *fakeLinks) Fetch(_ context.Context, total int) ([]entity.ReportReference, error) {
	f.log.add("links")
	return f.refs, f.err
}

type fakeResolver struct {
	log  *calls
	urls map[entity.ReportReference][]entity.AttachmentURL
}

func (f *fakeResolver) Resolve(_ context.Context, ref entity.ReportReference) ([]entity.AttachmentURL, error) {
	f.log.add("resolve")
	urls, ok := f.urls[ref]
	if !ok {
		return nil, errors.New("detail endpoint unavailable")
	}
	return urls, nil
}

type fakeDocuments struct {
	log *calls
	got []entity.AttachmentURL
}

func (f *fakeDocuments) FetchMany(_ context.Context, urls []entity.AttachmentURL) ([]string, download.Stats) {
	f.log.add("documents")
	f.got = urls
	return []string{"/pdfs/a.pdf"}, download.Stats{Requested: len(urls), Stored: 1, Failed: len(urls) - 1}
}

type fakeText struct {
	log *calls
	err error
}

func (f *fakeText) ExtractAll(context.Context) ([]textextract.Result, textextract.Stats, error) {
	f.log.add("text")
	if f.err != nil {
		return nil, textextract.Stats{}, f.err
	}
	return []textextract.Result{{DocumentPath: "/pdfs/a.pdf"}}, textextract.Stats{Documents: 2, Extracted: 1, Empty: 1}, nil
}

type fakeFields struct {
	log   *calls
	name  string
	runID string
}

func (f *fakeFields) ProcessAll(ctx context.Context) ([]entity.FieldRecord, parsefields.Stats, error) {
	f.log.add("fields")
	f.runID = common.RunIDFromContext(ctx)
	return []entity.FieldRecord{{SourcePDF: "a.pdf"}}, parsefields.Stats{Sidecars: 1, Extracted: 1}, nil
}

func (f *fakeFields) ExtractorName() string { return f.name }

type fakeAggregate struct {
	log *calls
}

func (f *fakeAggregate) Aggregate(context.Context) (export.Table, aggregate.Stats, error) {
	f.log.add("aggregate")
	t := export.NewTable(entity.Columns)
	t.Rows = append(t.Rows, make([]any, len(entity.Columns)))
	return t, aggregate.Stats{Files: 1, Rows: 1}, nil
}

type fakeLedger struct {
	startErr error
	params   repository.RunParams
	id       uuid.UUID
	stages   []entity.StageResult
	status   constants.RunStatus
}

func (f *fakeLedger) Start(_ context.Context, p repository.RunParams) (uuid.UUID, error) {
	if f.startErr != nil {
		return uuid.Nil, f.startErr
	}
	f.params = p
	f.id = uuid.New()
	return f.id, nil
}

func (f *fakeLedger) RecordStage(_ context.Context, _ uuid.UUID, res entity.StageResult) error {
	f.stages = append(f.stages, res)
	return nil
}

func (f *fakeLedger) Finish(_ context.Context, _ uuid.UUID, status constants.RunStatus) error {
	f.status = status
	return nil
}

type fixture struct {
	log    calls
	links  *fakeLinks
	docs   *fakeDocuments
	text   *fakeText
	fields *fakeFields
	ledger *fakeLedger
	buf    bytes.Buffer
	proc   *Processor
}

func newFixture() *fixture {
	f := &fixture{}
	f.links = &fakeLinks{log: &f.log, refs: []entity.ReportReference{"/aaib-reports/one", "/aaib-reports/two"}}
	resolver := &fakeResolver{log: &f.log, urls: map[entity.ReportReference][]entity.AttachmentURL{
		"/aaib-reports/one": {"https://assets/a.pdf", "https://assets/b.pdf"},
	}}
	f.docs = &fakeDocuments{log: &f.log}
	f.text = &fakeText{log: &f.log}
	f.fields = &fakeFields{log: &f.log, name: "deterministic"}
	f.ledger = &fakeLedger{}
	logger := slog.New(slog.NewJSONHandler(&f.buf, nil))
	f.proc = NewProcessor(logger, Stages{
		Links:     f.links,
		Resolver:  resolver,
		Documents: f.docs,
		Text:      f.text,
		Fields:    f.fields,
		Aggregate: &fakeAggregate{log: &f.log},
	}, f.ledger)
	return f
}

func stageNames(res []entity.StageResult) []string {
	out := make([]string, len(res))
	for i, r := range res {
		out[i] = r.Stage
	}
	return out
}

func TestRunAllStages(t *testing.T) {
	f := newFixture()

	sum, err := f.proc.Run(context.Background(), Options{NumReports: 2})

	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusCompleted, sum.Status)
	assert.Equal(t, calls{"links", "resolve", "resolve", "documents", "text", "fields", "aggregate"}, f.log)
	assert.Equal(t, []string{"FETCH_LINKS", "FETCH_DOCUMENTS", "EXTRACT_TEXT", "EXTRACT_FIELDS", "AGGREGATE"}, stageNames(sum.Stages))
	assert.Equal(t, 1, sum.Rows())

	// one unresolvable reference plus one failed download
	docs := sum.Stages[1]
	assert.Equal(t, 2, docs.Inputs)
	assert.Equal(t, 1, docs.Outputs)
	assert.Equal(t, 2, docs.Failures)
	assert.Equal(t, []entity.AttachmentURL{"https://assets/a.pdf", "https://assets/b.pdf"}, f.docs.got)
	assert.Equal(t, 1, sum.Stages[2].Failures)

	assert.Equal(t, f.ledger.id, sum.RunID)
	assert.Equal(t, repository.RunParams{NumReports: 2, Extractor: "deterministic"}, f.ledger.params)
	assert.Len(t, f.ledger.stages, 5)
	assert.Equal(t, constants.RunStatusCompleted, f.ledger.status)
	assert.Equal(t, sum.RunID.String(), f.fields.runID)
	assert.Contains(t, f.buf.String(), `"run_id":"`+sum.RunID.String()+`"`)
}

func TestRunHaltsOnEmptyCatalogue(t *testing.T) {
	f := newFixture()
	f.links.refs = nil

	sum, err := f.proc.Run(context.Background(), Options{NumReports: 5})

	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusHalted, sum.Status)
	assert.Equal(t, calls{"links"}, f.log)
	assert.Equal(t, 0, sum.Rows())
	assert.Equal(t, constants.RunStatusHalted, f.ledger.status)
	assert.Contains(t, f.buf.String(), "pipeline.no_links")
}

func TestRunFailsOnLinkError(t *testing.T) {
	f := newFixture()
	f.links.err = &common.HTTPError{StatusCode: 503, URL: "https://catalogue/api/search.json"}

	sum, err := f.proc.Run(context.Background(), Options{NumReports: 5})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.Equal(t, constants.RunStatusFailed, sum.Status)
	assert.Equal(t, calls{"links"}, f.log)
	assert.Equal(t, constants.RunStatusFailed, f.ledger.status)
}

func TestRunSkipFlags(t *testing.T) {
	f := newFixture()

	sum, err := f.proc.Run(context.Background(), Options{NumReports: 5, SkipDownload: true, SkipExtraction: true})

	require.NoError(t, err)
	assert.Equal(t, calls{"links", "fields", "aggregate"}, f.log)
	assert.Equal(t, []string{"FETCH_LINKS", "EXTRACT_FIELDS", "AGGREGATE"}, stageNames(sum.Stages))
	assert.Equal(t, constants.RunStatusCompleted, sum.Status)
}

func TestRunSkipDownloadStillHaltsOnEmptyCatalogue(t *testing.T) {
	f := newFixture()
	f.links.refs = nil

	sum, err := f.proc.Run(context.Background(), Options{NumReports: 5, SkipDownload: true, SkipExtraction: true})

	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusHalted, sum.Status)
	assert.Equal(t, calls{"links"}, f.log)
	assert.Equal(t, []string{"FETCH_LINKS"}, stageNames(sum.Stages))
}

func TestRunContinuesPastAbortedStage(t *testing.T) {
	f := newFixture()
	f.text.err = errors.New("scan .data/pdfs: no such file or directory")

	sum, err := f.proc.Run(context.Background(), Options{NumReports: 2})

	require.NoError(t, err)
	assert.Equal(t, calls{"links", "resolve", "resolve", "documents", "text", "fields", "aggregate"}, f.log)
	assert.Equal(t, constants.RunStatusCompleted, sum.Status)
	assert.Contains(t, f.buf.String(), "pipeline.stage.aborted")
}

func TestRunWithoutLedger(t *testing.T) {
	f := newFixture()
	f.ledger.startErr = errors.New("database is locked")

	sum, err := f.proc.Run(context.Background(), Options{NumReports: 2})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sum.RunID)
	assert.Empty(t, f.ledger.stages)
	assert.Empty(t, f.ledger.status)
	assert.Equal(t, constants.RunStatusCompleted, sum.Status)

	f.proc.Runs = nil
	sum, err = f.proc.Run(context.Background(), Options{NumReports: 2})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sum.RunID)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := f.proc.Run(ctx, Options{NumReports: 2, SkipDownload: true})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, constants.RunStatusFailed, sum.Status)
	assert.Equal(t, calls{"links"}, f.log)
}
