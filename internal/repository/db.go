package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Config tunes the Postgres pool. Ignored for the embedded SQLite ledger.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// DB is a database/sql handle plus the dialect it speaks.
type DB struct {
	SQL     *sql.DB
	Dialect string
	pool    *pgxpool.Pool
}

// Open connects to the ledger database. postgres:// and postgresql:// DSNs go through a pgx pool;
// anything else is treated as a SQLite file path.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if isPostgres(cfg.DSN) {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(ctx, cfg.DSN, logger)
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "dialect", DialectPostgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "aaib-collector"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	db := &DB{SQL: stdlib.OpenDBFromPool(pool), Dialect: DialectPostgres, pool: pool}
	if err := db.migrate(ctx); err != nil {
		db.Close(logger)
		return nil, err
	}
	logger.Info("successfully connected to database")
	return db, nil
}

func openSQLite(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	logger.Info("opening database", "dialect", DialectSQLite, "path", path)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, err
	}
	// one writer; also keeps an in-memory database alive across calls
	sqldb.SetMaxOpenConns(1)

	db := &DB{SQL: sqldb, Dialect: DialectSQLite}
	if err := db.migrate(ctx); err != nil {
		db.Close(logger)
		return nil, err
	}
	return db, nil
}

// Close closes the database connections gracefully
func (d *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if d.SQL != nil {
		if err := d.SQL.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
	logger.Debug("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func HealthCheck(ctx context.Context, d *DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.SQL.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id          TEXT PRIMARY KEY,
		started_at  TEXT NOT NULL,
		finished_at TEXT,
		status      TEXT NOT NULL,
		num_reports INTEGER NOT NULL,
		use_llm     BOOLEAN NOT NULL,
		extractor   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_stages (
		run_id     TEXT NOT NULL REFERENCES pipeline_runs(id),
		stage      TEXT NOT NULL,
		inputs     INTEGER NOT NULL,
		outputs    INTEGER NOT NULL,
		failures   INTEGER NOT NULL,
		skipped    INTEGER NOT NULL,
		elapsed_ms BIGINT NOT NULL,
		started_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS pipeline_stages_run_idx ON pipeline_stages (run_id, started_at)`,
}

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var placeholder = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders for SQLite. Queries must use each placeholder once, in order.
func (d *DB) rebind(q string) string {
	if d.Dialect == DialectPostgres {
		return q
	}
	return placeholder.ReplaceAllString(q, "?")
}
