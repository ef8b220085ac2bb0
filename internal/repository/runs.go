package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/aaib-collector/constants"
	"github.com/joseph-ayodele/aaib-collector/internal/entity"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// RunParams describes a run at start.
type RunParams struct {
	NumReports int
	UseLLM     bool
	Extractor  string
}

type RunRepository interface {
	Start(ctx context.Context, p RunParams) (uuid.UUID, error)
	RecordStage(ctx context.Context, runID uuid.UUID, res entity.StageResult) error
	Finish(ctx context.Context, runID uuid.UUID, status constants.RunStatus) error
	Recent(ctx context.Context, limit int) ([]entity.Run, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log, now: time.Now}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func (r *runRepo) Start(ctx context.Context, p RunParams) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.SQL.ExecContext(ctx, r.db.rebind(
		`INSERT INTO pipeline_runs (id, started_at, status, num_reports, use_llm, extractor)
		 VALUES ($1, $2, $3, $4, $5, $6)`),
		id.String(), formatTime(r.now()), string(constants.RunStatusRunning), p.NumReports, p.UseLLM, p.Extractor)
	if err != nil {
		r.log.Error("run start failed", "err", err)
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	r.log.Debug("run started", "run_id", id)
	return id, nil
}

func (r *runRepo) RecordStage(ctx context.Context, runID uuid.UUID, res entity.StageResult) error {
	started := res.StartedAt
	if started.IsZero() {
		started = r.now()
	}
	_, err := r.db.SQL.ExecContext(ctx, r.db.rebind(
		`INSERT INTO pipeline_stages (run_id, stage, inputs, outputs, failures, skipped, elapsed_ms, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`),
		runID.String(), res.Stage, res.Inputs, res.Outputs, res.Failures, res.Skipped,
		res.Elapsed.Milliseconds(), formatTime(started))
	if err != nil {
		r.log.Error("run stage insert failed", "run_id", runID, "stage", res.Stage, "err", err)
		return fmt.Errorf("insert stage: %w", err)
	}
	return nil
}

func (r *runRepo) Finish(ctx context.Context, runID uuid.UUID, status constants.RunStatus) error {
	out, err := r.db.SQL.ExecContext(ctx, r.db.rebind(
		`UPDATE pipeline_runs SET finished_at = $1, status = $2 WHERE id = $3`),
		formatTime(r.now()), string(status), runID.String())
	if err != nil {
		r.log.Error("run finish failed", "run_id", runID, "err", err)
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := out.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	r.log.Debug("run finished", "run_id", runID, "status", status)
	return nil
}

// Recent returns the latest runs, newest first, each with its stages in execution order.
func (r *runRepo) Recent(ctx context.Context, limit int) ([]entity.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(
		`SELECT id, started_at, finished_at, status, num_reports, use_llm, extractor
		 FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []entity.Run
	for rows.Next() {
		var (
			run         entity.Run
			id, started string
			finished    sql.NullString
		)
		if err := rows.Scan(&id, &started, &finished, &run.Status, &run.NumReports, &run.UseLLM, &run.Extractor); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", id, err)
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, fmt.Errorf("run %s finished_at: %w", id, err)
			}
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		stages, err := r.stages(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Stages = stages
	}
	return runs, nil
}

func (r *runRepo) stages(ctx context.Context, runID uuid.UUID) ([]entity.StageResult, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(
		`SELECT stage, inputs, outputs, failures, skipped, elapsed_ms, started_at
		 FROM pipeline_stages WHERE run_id = $1 ORDER BY started_at`), runID.String())
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var out []entity.StageResult
	for rows.Next() {
		var (
			s         entity.StageResult
			elapsedMS int64
			started   string
		)
		if err := rows.Scan(&s.Stage, &s.Inputs, &s.Outputs, &s.Failures, &s.Skipped, &elapsedMS, &started); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		s.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if s.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("stage %s started_at: %w", s.Stage, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
