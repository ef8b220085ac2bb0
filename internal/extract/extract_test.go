package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/aaib-collector/internal/entity"
	"github.com/joseph-ayodele/aaib-collector/internal/llm"
)

type fakeProvider struct {
	got    llm.ExtractRequest
	fields llm.ReportFields
	err    error
}

func (f *fakeProvider) ExtractFields(_ context.Context, req llm.ExtractRequest) (llm.ReportFields, []byte, error) {
	f.got = req
	return f.fields, nil, f.err
}

func (f *fakeProvider) Model() string { return "fake/model" }

func domainValues(r entity.FieldRecord) []*string {
	return []*string{r.Title, r.Date, r.AircraftType, r.Registration, r.Location, r.Summary, r.Cause}
}

func TestDeterministicIsTotal(t *testing.T) {
	inputs := []string{
		"AAIB Bulletin: 4/2024\nPiper PA-28",
		"   \n\n  ",
		"x",
		strings.Repeat("é", 300),
	}
	for _, in := range inputs {
		r := Deterministic{}.Extract(context.Background(), in)
		for i, v := range domainValues(r) {
			require.NotNil(t, v, "field %d for %q", i, in)
		}
		assert.Empty(t, r.Error)
	}
}

func TestDeterministicTitle(t *testing.T) {
	d := Deterministic{}
	assert.Equal(t, "AAIB Bulletin: 4/2024", *d.Extract(context.Background(), "\n  AAIB Bulletin: 4/2024  \nbody").Title)
	assert.Equal(t, "Unknown Report", *d.Extract(context.Background(), " \n ").Title)

	long := *d.Extract(context.Background(), strings.Repeat("é", 300)).Title
	assert.Equal(t, 100, len([]rune(long)))
	assert.Equal(t, "2024-01-15", *d.Extract(context.Background(), "x").Date)
	assert.Equal(t, "G-ABCD", *d.Extract(context.Background(), "x").Registration)
}

func TestModelTruncatesAndMaps(t *testing.T) {
	p := &fakeProvider{fields: llm.ReportFields{Title: entity.Str("T"), Registration: entity.Str("G-EFGH")}}
	m := NewModel(p, 10, nil)

	r := m.Extract(context.Background(), strings.Repeat("a", 25))

	assert.Equal(t, strings.Repeat("a", 10), p.got.Text)
	assert.Equal(t, "T", *r.Title)
	assert.Equal(t, "G-EFGH", *r.Registration)
	assert.Nil(t, r.Cause)
	assert.Empty(t, r.Error)
	assert.Equal(t, "fake/model", m.Name())
}

func TestModelFailureYieldsNullRecordWithError(t *testing.T) {
	p := &fakeProvider{err: errors.New("non-2xx status 500: boom")}

	r := NewModel(p, 0, nil).Extract(context.Background(), "text")

	for _, v := range domainValues(r) {
		assert.Nil(t, v)
	}
	assert.Equal(t, "non-2xx status 500: boom", r.Error)
}
