package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"photoclean/internal/engine"
	"photoclean/internal/models"
)

// printResult renders the detection result: one block per cluster with
// the keeper marked, followed by the run summary.
func printResult(result *engine.Result, verbose bool) {
	if len(result.Plans) == 0 {
		fmt.Printf("Scanned %d images, no near-duplicates found.\n", len(result.Records))
		printIssues(result.Issues)
		return
	}

	fmt.Printf("Found %d duplicate clusters (%d duplicates, %s reclaimable)\n\n",
		len(result.Plans), result.Duplicates(), humanize.Bytes(uint64(result.Reclaimable())))

	for _, plan := range result.Plans {
		printPlan(plan, verbose)
	}

	fmt.Printf("Scanned: %d images, %d clusters, %d issues\n",
		len(result.Records), len(result.Clusters), len(result.Issues))
	printIssues(result.Issues)
}

func printPlan(plan *models.ActionPlan, verbose bool) {
	fmt.Printf("Cluster #%d (%d images)\n", plan.ClusterID, len(plan.Entries))
	fmt.Println(strings.Repeat("-", 60))

	for _, entry := range plan.Entries {
		r := entry.Record
		marker := actionMarker(entry.Action)

		score := "  n/a"
		if r.Quality != nil {
			score = fmt.Sprintf("%.3f", r.Quality.Total)
		}

		fmt.Printf("  %s %-40s  %dx%d  %8s  score %s\n",
			marker, shortenPath(r.Path, 40), r.Width, r.Height,
			humanize.Bytes(uint64(r.FileSize)), score)
		if entry.Action != models.ActionKeep {
			fmt.Printf("      %s: %s\n", entry.Action, entry.Reason)
		}
		if verbose && r.Quality != nil {
			for _, name := range sortedSignals(r.Quality.Components) {
				fmt.Printf("      %-10s %.3f\n", name, r.Quality.Components[name])
			}
		}
	}
	fmt.Println()
}

// sortedSignals returns the component names in alphabetical order so
// verbose output is identical between runs.
func sortedSignals(components map[string]float64) []string {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func actionMarker(a models.Action) string {
	switch a {
	case models.ActionKeep:
		return "✓"
	case models.ActionSkip:
		return "-"
	default:
		return "✗"
	}
}

func printIssues(issues []models.ScanIssue) {
	if len(issues) == 0 {
		return
	}
	fmt.Printf("\n%d files could not be processed:\n", len(issues))
	for _, issue := range issues {
		fmt.Printf("  %s: %s\n", issue.Path, issue.Reason)
	}
}

func shortenPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}

	dir, file := filepath.Split(path)
	if len(file) >= maxLen-3 {
		return "..." + file[len(file)-(maxLen-3):]
	}

	remaining := maxLen - len(file) - 4 // 4 for ".../"
	if remaining > 0 && len(dir) > remaining {
		dir = dir[len(dir)-remaining:]
	}
	return "..." + dir + file
}
