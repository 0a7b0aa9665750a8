package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"photoclean/internal/config"
	"photoclean/internal/execute"
	"photoclean/internal/models"
)

var (
	cleanDryRun    bool
	cleanPermanent bool
	cleanMoveTo    string
	cleanYes       bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <folder>",
	Short: "Remove or relocate near-duplicate images",
	Long: `Detect duplicates, keep the highest quality copy of each group, and
remove the rest. The plan is shown and confirmed before anything is
touched; entries fail independently, so one locked or vanished file
never aborts the batch.

Options:
  --dry-run     Predict the outcome without touching the filesystem
  --permanent   Delete permanently instead of moving to trash
  --move-to     Move duplicates into a folder instead of deleting
  --yes         Skip the confirmation prompt

Example:
  photoclean clean ./photos                    # Move duplicates to trash
  photoclean clean ./photos --dry-run          # Preview only
  photoclean clean ./photos --permanent        # Delete permanently
  photoclean clean ./photos --move-to=./dupes  # Quarantine instead`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Preview without removing")
	cleanCmd.Flags().BoolVar(&cleanPermanent, "permanent", false, "Delete permanently instead of moving to trash")
	cleanCmd.Flags().StringVar(&cleanMoveTo, "move-to", "", "Move duplicates to this folder")
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	mode := config.ModeDelete
	if cleanMoveTo != "" {
		mode = config.ModeMove
	}

	cfg, err := buildConfig(args[0], mode, cleanMoveTo)
	if err != nil {
		return err
	}
	cfg.UseTrash = !cleanPermanent

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := detect(ctx, cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Interrupted before execution; nothing was changed.")
			return nil
		}
		return err
	}

	if len(result.Plans) == 0 {
		fmt.Println("No duplicate clusters found.")
		return nil
	}

	printResult(result, false)

	if !cleanDryRun && !cleanYes {
		if !confirm(result.Duplicates(), cfg) {
			fmt.Println("Aborted. Nothing was changed.")
			return nil
		}
	}

	opts := execute.Options{
		DryRun:   cleanDryRun,
		UseTrash: cfg.UseTrash,
	}
	report, err := execute.RunAll(ctx, result.Plans, opts)

	sizes := make(map[string]int64)
	for _, p := range result.Plans {
		for _, e := range p.Entries {
			sizes[e.Record.Path] = e.Record.FileSize
		}
	}
	printExecution(report, cfg, sizes)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func confirm(count int, cfg config.Config) bool {
	var verb string
	switch {
	case cfg.Mode == config.ModeMove:
		verb = fmt.Sprintf("move %d files to %s", count, cfg.MoveDest)
	case cfg.UseTrash:
		verb = fmt.Sprintf("move %d files to trash", count)
	default:
		verb = fmt.Sprintf("permanently delete %d files", count)
	}

	fmt.Printf("About to %s. Continue? [y/N] ", verb)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func printExecution(report *models.ExecutionResult, cfg config.Config, sizes map[string]int64) {
	prefix := ""
	if report.DryRun {
		prefix = "[dry-run] "
	}

	fmt.Println()
	switch {
	case cfg.Mode == config.ModeMove:
		fmt.Printf("%sMoved %d files to %s\n", prefix, len(report.Succeeded), cfg.MoveDest)
		srcs := make([]string, 0, len(report.Moves))
		for src := range report.Moves {
			srcs = append(srcs, src)
		}
		sort.Strings(srcs)
		for _, src := range srcs {
			fmt.Printf("  %s -> %s\n", shortenPath(src, 40), report.Moves[src])
		}
	case cfg.UseTrash:
		fmt.Printf("%sMoved %d files to trash\n", prefix, len(report.Succeeded))
	default:
		fmt.Printf("%sPermanently deleted %d files\n", prefix, len(report.Succeeded))
	}
	if len(report.Failed) > 0 {
		fmt.Printf("%sFailed: %d files\n", prefix, len(report.Failed))
		for _, f := range report.Failed {
			fmt.Printf("  %s: %s\n", f.Path, f.Err)
		}
	}

	var reclaimed int64
	for _, path := range report.Succeeded {
		reclaimed += sizes[path]
	}
	fmt.Printf("%sSpace reclaimed: %s\n", prefix, humanize.Bytes(uint64(reclaimed)))
}
