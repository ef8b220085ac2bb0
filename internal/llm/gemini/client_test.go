package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseTextJoinsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"title":`), genai.Text(`"x"}`)}},
		}},
	}

	got, err := responseText(resp)

	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, got)
}

func TestResponseTextEmpty(t *testing.T) {
	for _, resp := range []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{}}},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text("  ")}}}}},
	} {
		_, err := responseText(resp)
		assert.ErrorIs(t, err, ErrEmptyResponse)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	assert.ErrorContains(t, err, "api key is required")
}
