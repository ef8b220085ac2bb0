package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/llm"
)

// ErrNoChoices is returned when the completion carries no message.
var ErrNoChoices = errors.New("no choices in openai response")

// ExtractFields implements llm.FieldExtractor using text-only chat/completions in JSON mode.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.ReportFields, []byte, error) {
	logger := common.LoggerFromContext(ctx, c.logger)
	rid := uuid.New().String()
	start := time.Now()

	logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.SystemPrompt},
			{"role": "user", "content": llm.BuildUserPrompt(req.Text)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, logger)
	if err != nil {
		logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ReportFields{}, raw, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ReportFields{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		logger.Error("llm.extract.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ReportFields{}, raw, ErrNoChoices
	}

	out, content, err := llm.ParseReportFields(c.schema, cc.Choices[0].Message.Content, logger)
	if err != nil {
		logger.Error("llm.extract.parse_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ReportFields{}, content, err
	}

	logger.Info("llm.extract.ok",
		"req_id", rid,
		"registration", deref(out.Registration),
		"date", deref(out.Date),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
