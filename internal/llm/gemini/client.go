// Package gemini implements llm.FieldExtractor on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/llm"
)

// ErrEmptyResponse is returned when no candidate carries text.
var ErrEmptyResponse = errors.New("gemini returned no text")

type Config struct {
	APIKey      string
	Model       string // e.g., "gemini-2.0-flash"
	Temperature float32
	Timeout     time.Duration // per-request deadline
}

type Client struct {
	cfg    Config
	client *genai.Client
	model  *genai.GenerativeModel
	schema *jsonschema.Schema
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(llm.SystemPrompt)},
	}

	return &Client{
		cfg:    cfg,
		client: client,
		model:  model,
		schema: llm.MustReportSchema(),
		logger: logger,
	}, nil
}

func (c *Client) Model() string {
	return "gemini/" + c.cfg.Model
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// ExtractFields implements llm.FieldExtractor.
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

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(ctx, genai.Text(llm.BuildUserPrompt(req.Text)))
	if err != nil {
		logger.Error("llm.extract.http_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.ReportFields{}, nil, fmt.Errorf("gemini request failed: %w", err)
	}

	content, err := responseText(resp)
	if err != nil {
		logger.Error("llm.extract.no_choices", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.ReportFields{}, nil, err
	}

	out, raw, err := llm.ParseReportFields(c.schema, content, logger)
	if err != nil {
		logger.Error("llm.extract.parse_failed", "req_id", rid, "error", err, "content", content)
		return llm.ReportFields{}, raw, err
	}
	logger.Info("llm.extract.ok", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
	return out, raw, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
