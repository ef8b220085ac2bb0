package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/aaib-collector/internal/entity"
	"github.com/joseph-ayodele/aaib-collector/internal/repository"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent pipeline runs from the run ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger(os.Stderr, opts.logFormat, opts.debug)
		slog.SetDefault(logger)

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !cfg.LedgerEnabled() {
			return fmt.Errorf("run ledger is disabled (LEDGER_DSN=%q)", cfg.Ledger.DSN)
		}
		ctx, stop := signalContext()
		defer stop()

		db, err := repository.Open(ctx, repository.Config{DSN: cfg.Ledger.DSN, DialTimeout: 3 * time.Second}, logger)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer db.Close(logger)

		if err := repository.HealthCheck(ctx, db, time.Second); err != nil {
			return fmt.Errorf("ledger health: %w", err)
		}
		runs, err := repository.NewRunRepository(db, logger).Recent(ctx, runsLimit)
		if err != nil {
			return err
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "number of runs to show")
}

func printRuns(w io.Writer, runs []entity.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	for _, r := range runs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s  %s  %-9s  n=%d  extractor=%s  took=%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.NumReports, r.Extractor, finished)
		for _, s := range r.Stages {
			fmt.Fprintf(w, "    %-16s in=%d out=%d failed=%d skipped=%d\n", s.Stage, s.Inputs, s.Outputs, s.Failures, s.Skipped)
		}
	}
}
