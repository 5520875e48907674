package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
	collyfetcher "github.com/JakeFAU/gamecatalog/internal/fetcher/colly"
	"github.com/JakeFAU/gamecatalog/internal/logging"
	"github.com/JakeFAU/gamecatalog/internal/metrics"
)

// newCaptureCmd creates the 'capture' subcommand.
func newCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture [targets...]",
		Short: "Capture game pages by slug or URL",
		Long: `Fetches each target (a bare slug such as "snake-io" or a detail page URL),
resolves its metadata, saves its cover image, and merges the record into the
output dataset. Failed targets are recorded with their error; the run goes on.`,
		RunE: runCapture,
	}

	flags := cmd.Flags()
	flags.String("input-file", "", "text file listing targets, one per line (# starts a comment)")
	flags.String("output", "games.jsonl", "dataset file to merge into")
	flags.String("format", "jsonl", "dataset format: jsonl or json")
	flags.String("img-dir", "img", "directory for downloaded cover images")
	flags.Duration("timeout", 30*time.Second, "per-request timeout")
	flags.Duration("rate-limit", 700*time.Millisecond, "minimum delay between requests")
	flags.Int("retries", 3, "maximum attempts per request")
	flags.Float64("backoff", 2.0, "backoff multiplier between attempts")
	flags.String("user-agent", collyfetcher.DefaultUserAgent, "User-Agent header and robots.txt agent")
	flags.String("base-url", catalog.DefaultBaseURL, "catalog site used to expand bare slugs")
	flags.Bool("dev", false, "human-friendly development logging")

	return cmd
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	targets, err := collectTargets(args, cfg.Targets.InputFile)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return catalog.ErrNoTargets
	}

	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer syncLogger(logger)

	appInstance, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize capture services: %w", err)
	}
	defer appInstance.Close()

	summary, runErr := appInstance.Pipeline.Run(cmd.Context(), targets, appInstance.Dataset)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("Failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(),
		"captured %d, failed %d, skipped %d, images %d; wrote %s\n",
		summary.Succeeded, summary.Failed, summary.Skipped, summary.Assets, appInstance.Dataset.Path(),
	)
	return nil
}

// collectTargets returns positional targets followed by those in inputFile.
func collectTargets(args []string, inputFile string) ([]string, error) {
	var targets []string
	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg != "" {
			targets = append(targets, arg)
		}
	}
	if inputFile == "" {
		return targets, nil
	}

	f, err := os.Open(inputFile) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	fromFile, err := catalog.ParseTargets(f)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", inputFile, err)
	}
	return append(targets, fromFile...), nil
}
