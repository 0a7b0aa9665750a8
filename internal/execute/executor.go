// Package execute applies action plans to the filesystem.
//
// Execution is strictly separated from detection: a plan is built and
// reviewed first, then handed here. Entries run sequentially and
// independently; one entry failing (permission denied, file vanished,
// disk full) is recorded and never aborts the rest of the batch. In
// dry-run mode the result predicts outcomes with zero mutations.
package execute

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"photoclean/internal/fileutil"
	"photoclean/internal/models"
)

// Options control how a plan is applied.
type Options struct {
	// DryRun predicts the outcome of every entry without touching the
	// filesystem.
	DryRun bool
	// UseTrash routes deletions through the system trash so they can be
	// undone; false unlinks permanently.
	UseTrash bool
}

// Run applies one plan. Keep entries are never acted on; they are
// reported under Skipped so the result accounts for every entry.
// Cancelling ctx stops before the next entry; entries not reached are
// reported as skipped and ctx.Err() is returned with the partial result.
func Run(ctx context.Context, plan *models.ActionPlan, opts Options) (*models.ExecutionResult, error) {
	result := &models.ExecutionResult{DryRun: opts.DryRun}

	for i, entry := range plan.Entries {
		if err := ctx.Err(); err != nil {
			for _, rest := range plan.Entries[i:] {
				result.Skipped = append(result.Skipped, models.SkippedEntry{
					Path:   rest.Record.Path,
					Reason: "cancelled",
				})
			}
			return result, err
		}
		apply(entry, opts, result)
	}

	return result, nil
}

// RunAll applies a sequence of plans, merging their reports. Execution
// stays sequential across plans: concurrent renames into one trash or
// destination directory are not worth the race conditions.
func RunAll(ctx context.Context, plans []*models.ActionPlan, opts Options) (*models.ExecutionResult, error) {
	merged := &models.ExecutionResult{DryRun: opts.DryRun}
	for _, plan := range plans {
		res, err := Run(ctx, plan, opts)
		merged.Succeeded = append(merged.Succeeded, res.Succeeded...)
		merged.Failed = append(merged.Failed, res.Failed...)
		merged.Skipped = append(merged.Skipped, res.Skipped...)
		for src, dest := range res.Moves {
			noteMove(merged, src, dest)
		}
		if err != nil {
			return merged, err
		}
	}
	return merged, nil
}

func apply(entry models.PlanEntry, opts Options, result *models.ExecutionResult) {
	path := entry.Record.Path

	switch entry.Action {
	case models.ActionKeep:
		result.Skipped = append(result.Skipped, models.SkippedEntry{
			Path:   path,
			Reason: "keeper retained",
		})

	case models.ActionSkip:
		result.Skipped = append(result.Skipped, models.SkippedEntry{
			Path:   path,
			Reason: entry.Reason,
		})

	case models.ActionDelete:
		if opts.DryRun {
			predict(path, result)
			return
		}
		var err error
		if opts.UseTrash {
			err = fileutil.MoveToTrash(path)
		} else {
			err = os.Remove(path)
		}
		record(path, err, result)

	case models.ActionMove:
		if opts.DryRun {
			predictMove(path, entry.Dest, result)
			return
		}
		dest, err := fileutil.MoveFile(path, entry.Dest)
		record(path, err, result)
		if err == nil {
			noteMove(result, path, dest)
		}
	}
}

// predict reports what a real run would do with this entry right now.
func predict(path string, result *models.ExecutionResult) {
	if _, err := os.Stat(path); err != nil {
		result.Failed = append(result.Failed, models.EntryError{Path: path, Err: err.Error()})
		return
	}
	result.Succeeded = append(result.Succeeded, path)
}

// predictMove additionally reports the destination name a real run would
// pick, collision suffix included.
func predictMove(path, destDir string, result *models.ExecutionResult) {
	if _, err := os.Stat(path); err != nil {
		result.Failed = append(result.Failed, models.EntryError{Path: path, Err: err.Error()})
		return
	}
	result.Succeeded = append(result.Succeeded, path)
	noteMove(result, path, filepath.Join(destDir, fileutil.PredictDestName(path, destDir)))
}

func noteMove(result *models.ExecutionResult, src, dest string) {
	if result.Moves == nil {
		result.Moves = make(map[string]string)
	}
	result.Moves[src] = dest
}

func record(path string, err error, result *models.ExecutionResult) {
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("plan entry failed")
		result.Failed = append(result.Failed, models.EntryError{Path: path, Err: err.Error()})
		return
	}
	result.Succeeded = append(result.Succeeded, path)
}
