package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/aaib-collector/internal/catalogue"
	"github.com/joseph-ayodele/aaib-collector/internal/retry"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Print the PDF attachment URLs of the latest reports",
	Long: `Lists the latest report links and resolves each to its PDF attachments without
downloading anything. Unlike the pipeline, a failing detail request is not retried.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger(os.Stderr, opts.logFormat, opts.debug)
		slog.SetDefault(logger)

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		client, err := catalogue.NewClient(cfg.Catalogue.BaseURL, cfg.Catalogue.Timeout, logger)
		if err != nil {
			return err
		}
		refs, err := catalogue.NewLinkFetcher(client, cfg.Catalogue.Format, cfg.Catalogue.PageSize, logger).
			Fetch(ctx, cfg.NumReports)
		if err != nil {
			return fmt.Errorf("fetch links: %w", err)
		}
		resolver := catalogue.NewResolver(client, retry.FailFast(), cfg.Catalogue.Exclude, logger)

		out := cmd.OutOrStdout()
		failed := 0
		for _, ref := range refs {
			urls, err := resolver.Resolve(ctx, ref)
			if err != nil {
				logger.Error("links.resolve_failed", "ref", ref, "error", err)
				failed++
				continue
			}
			for _, u := range urls {
				fmt.Fprintln(out, u)
			}
		}
		logger.Info("links.done", "references", len(refs), "failed", failed)
		return nil
	},
}
