package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/aaib-collector/internal/llm"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func newServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func newClient(url string) *Client {
	return NewClient(Config{APIKey: "sk-test", BaseURL: url + "/v1", Model: "gpt-4o", Temperature: 0.1}, nil)
}

func TestExtractFieldsSendsJSONModeRequest(t *testing.T) {
	var seen map[string]any
	reply := `{"title":"Piper PA-28, G-ABCD","date":"2024-03-02","aircraft_type":"Piper PA-28","registration":"G-ABCD","location":"Shoreham","summary":"Engine lost power on climb out.","cause":null}`
	srv := newServer(t, http.StatusOK, completion(reply), &seen)
	defer srv.Close()

	out, raw, err := newClient(srv.URL).ExtractFields(context.Background(), llm.ExtractRequest{Text: "REPORT BODY"})

	require.NoError(t, err)
	require.NotNil(t, out.Registration)
	assert.Equal(t, "G-ABCD", *out.Registration)
	assert.Nil(t, out.Cause)
	assert.JSONEq(t, reply, string(raw))

	assert.Equal(t, "gpt-4o", seen["model"])
	assert.InDelta(t, 0.1, seen["temperature"], 1e-6)
	assert.Equal(t, map[string]any{"type": "json_object"}, seen["response_format"])
	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.SystemPrompt, msgs[0].(map[string]any)["content"])
	assert.Equal(t, llm.BuildUserPrompt("REPORT BODY"), msgs[1].(map[string]any)["content"])
}

func TestExtractFieldsNormalizesLooseReply(t *testing.T) {
	reply := "```json\n{\"title\":\"  Report  \",\"date\":2024,\"aircraft_type\":[\"Cessna\",\"172\"],\"registration\":\"\",\"location\":\"N/A\",\"summary\":\"s\",\"confidence\":0.9}\n```"
	srv := newServer(t, http.StatusOK, completion(reply), nil)
	defer srv.Close()

	out, _, err := newClient(srv.URL).ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"})

	require.NoError(t, err)
	assert.Equal(t, "Report", *out.Title)
	assert.Equal(t, "2024", *out.Date)
	assert.Equal(t, "Cessna, 172", *out.AircraftType)
	assert.Nil(t, out.Registration)
	assert.Nil(t, out.Location)
	assert.Nil(t, out.Cause)
}

func TestExtractFieldsErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error", http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`, "rate limited"},
		{"not json", http.StatusOK, `<html>`, "decode openai response"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"reply not json", http.StatusOK, completion("Sorry, I cannot help."), "sanitize failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, tc.status, tc.body, nil)
			defer srv.Close()

			_, _, err := newClient(srv.URL).ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestModelName(t *testing.T) {
	assert.Equal(t, "openai/gpt-4o", NewClient(Config{}, nil).Model())
}
