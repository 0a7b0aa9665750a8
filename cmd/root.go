package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	threshold   int
	workers     int
	minSize     int64
	extensions  []string
	cachePath   string
	fileTimeout time.Duration
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "photoclean",
	Short: "Find near-duplicate photos and keep only the best copy",
	Long: `photoclean scans a photo collection for near-duplicate images,
ranks each duplicate cluster by quality (sharpness, exposure, contrast,
resolution), and plans which copy to keep.

Detection and cleanup are separate steps: scan prints the plan, clean
applies it — with a dry-run preview, trash-based deletion, and per-file
failure isolation.

Example usage:
  photoclean scan ./photos              # Detect duplicates and print the plan
  photoclean clean ./photos --dry-run   # Preview what clean would do
  photoclean clean ./photos             # Move lower quality duplicates to trash
  photoclean clean ./photos --move-to=./dupes`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging() {
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func init() {
	rootCmd.PersistentFlags().IntVar(&threshold, "threshold", 10, "Hamming distance threshold (0-64, lower = stricter)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Parallel workers for hashing and scoring (0 = number of CPUs)")
	rootCmd.PersistentFlags().Int64Var(&minSize, "min-size", 1, "Ignore files smaller than this many bytes")
	rootCmd.PersistentFlags().StringSliceVar(&extensions, "ext", nil, "Accepted file extensions (default jpg,jpeg,png,gif,webp,bmp,tif,tiff)")
	rootCmd.PersistentFlags().StringVar(&cachePath, "cache", "", "Path to an optional SQLite fingerprint cache")
	rootCmd.PersistentFlags().DurationVar(&fileTimeout, "file-timeout", 30*time.Second, "Per-file decode timeout (for slow network mounts)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}
