package entity

import (
	"time"

	"github.com/google/uuid"
)

// StageResult is the per-stage outcome recorded for a run.
type StageResult struct {
	Stage     string        `json:"stage"`
	Inputs    int           `json:"inputs"`
	Outputs   int           `json:"outputs"`
	Failures  int           `json:"failures"`
	Skipped   int           `json:"skipped"`
	Elapsed   time.Duration `json:"elapsed"`
	StartedAt time.Time     `json:"started_at"`
}

// Run represents a pipeline run for data transfer between layers.
type Run struct {
	ID         uuid.UUID     `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Status     string        `json:"status"`
	NumReports int           `json:"num_reports"`
	UseLLM     bool          `json:"use_llm"`
	Extractor  string        `json:"extractor"`
	Stages     []StageResult `json:"stages,omitempty"`
}
