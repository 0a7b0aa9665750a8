package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"photoclean/internal/config"
	"photoclean/internal/engine"
)

var (
	scanJSON    bool
	scanVerbose bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <folder>",
	Short: "Detect near-duplicate images and print the cleanup plan",
	Long: `Scan a folder recursively, fingerprint every supported image, group
near-duplicates, rank each group by quality, and print the resulting
plan. Nothing is deleted or moved; run 'photoclean clean' for that.

Example:
  photoclean scan ./photos
  photoclean scan ./photos --threshold 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output the plan in JSON format")
	scanCmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "Show per-signal quality components")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(args[0], config.ModeDelete, "")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := detect(ctx, cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	interrupted := errors.Is(err, context.Canceled)

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if interrupted {
		fmt.Println("Interrupted — partial results:")
		fmt.Println()
	}
	printResult(result, scanVerbose)

	if len(result.Plans) > 0 {
		fmt.Println("Run 'photoclean clean --dry-run' on this folder to preview the cleanup")
	}
	return nil
}

// buildConfig assembles the engine configuration from the global flags.
func buildConfig(folder string, mode config.Mode, moveDest string) (config.Config, error) {
	absFolder, err := filepath.Abs(folder)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to resolve path: %w", err)
	}

	cfg := config.Default(absFolder)
	cfg.Threshold = threshold
	if workers > 0 {
		cfg.Workers = workers
	}
	cfg.MinFileSize = minSize
	if len(extensions) > 0 {
		cfg.Extensions = extensions
	}
	cfg.CachePath = cachePath
	cfg.FileTimeout = fileTimeout
	cfg.Mode = mode
	cfg.MoveDest = moveDest
	return cfg, nil
}

func detect(ctx context.Context, cfg config.Config) (*engine.Result, error) {
	eng, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	return eng.Detect(ctx)
}
