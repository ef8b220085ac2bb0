package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/pipeline"
)

// flags holds the command-line overrides shared by every command.
type flags struct {
	configFile     string
	numReports     int
	useLLM         bool
	llmModel       string
	llmProvider    string
	skipDownload   bool
	skipExtraction bool
	resume         bool
	debug          bool
	logFormat      string
}

var opts flags

var rootCmd = &cobra.Command{
	Use:   "aaib-collector",
	Short: "Collect AAIB accident reports into a spreadsheet",
	Long: `Fetches the latest AAIB report links from GOV.UK, downloads their PDF attachments,
extracts the text layer, pulls out structured incident fields and writes
aaib_reports.xlsx and aaib_reports.csv.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPipeline,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", os.Getenv("AAIB_CONFIG"), "YAML settings file overlaid on the environment")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log output format: text or json")
	pf.IntVarP(&opts.numReports, "num-reports", "n", 0, "number of reports to fetch (default NUM_REPORTS or 10)")

	f := rootCmd.Flags()
	f.BoolVar(&opts.useLLM, "use-llm", false, "extract fields with the language model instead of the deterministic extractor")
	f.StringVar(&opts.llmModel, "llm-model", "", "model name for the selected provider")
	f.StringVar(&opts.llmProvider, "llm-provider", "", "language model provider: openai or gemini")
	f.BoolVar(&opts.skipDownload, "skip-download", false, "skip PDF download and use PDFs already on disk; links are still fetched")
	f.BoolVar(&opts.skipExtraction, "skip-extraction", false, "skip text extraction; use text files already on disk")
	f.BoolVar(&opts.resume, "resume", false, "keep existing field records that have no error")

	rootCmd.AddCommand(linksCmd, runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// loadConfig reads .env, the environment, the optional settings file and then the flags, in that order.
func loadConfig(cmd *cobra.Command) (*common.Config, error) {
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if opts.configFile != "" {
		if err := cfg.LoadFile(opts.configFile); err != nil {
			return nil, err
		}
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overlays only the flags the user set.
func applyFlags(cmd *cobra.Command, cfg *common.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("num-reports") {
		cfg.NumReports = opts.numReports
	}
	if changed("llm-provider") {
		cfg.LLM.Provider = strings.ToLower(opts.llmProvider)
	}
	if changed("llm-model") {
		cfg.LLM.ActiveProvider().Model = opts.llmModel
	}
}

func newLogger(w io.Writer, format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// time adds noise to interactive output
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	logger := newLogger(os.Stdout, opts.logFormat, opts.debug)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	app, err := wire(ctx, cfg, wireOptions{UseLLM: opts.useLLM, Resume: opts.resume}, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	logConfig(logger, cfg, app)

	sum, err := app.Processor.Run(ctx, pipeline.Options{
		NumReports:     cfg.NumReports,
		SkipDownload:   opts.skipDownload,
		SkipExtraction: opts.skipExtraction,
	})
	printSummary(os.Stdout, cfg, sum)
	return err
}

func logConfig(logger *slog.Logger, cfg *common.Config, app *app) {
	logger.Info("config",
		"num_reports", cfg.NumReports,
		"extractor", app.Extractor,
		"text_method", cfg.Text.Method,
		"pdfs_dir", cfg.Storage.PDFsDir,
		"texts_dir", cfg.Storage.TextsDir,
		"extracted_dir", cfg.Storage.ExtractedDir,
		"ledger", cfg.LedgerEnabled(),
	)
}

func printSummary(w io.Writer, cfg *common.Config, sum pipeline.Summary) {
	fmt.Fprintf(w, "Run %s: %s\n", sum.RunID, sum.Status)
	for _, s := range sum.Stages {
		fmt.Fprintf(w, "- %-16s in=%d out=%d failed=%d skipped=%d (%s)\n",
			s.Stage, s.Inputs, s.Outputs, s.Failures, s.Skipped, s.Elapsed.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "- Rows: %d\n", sum.Rows())
	if sum.Rows() > 0 {
		fmt.Fprintf(w, "- Excel: %s\n", cfg.Storage.OutputExcel)
		fmt.Fprintf(w, "- CSV: %s\n", cfg.Storage.OutputCSV)
	}
}
