package models

import (
	"fmt"
	"time"
)

// ImageRecord holds everything the engine knows about one scanned file.
// The record is created by the scanner and never shared across runs; the
// Fingerprint and Quality fields are filled in lazily, at most once.
type ImageRecord struct {
	Path     string    `json:"path"`
	FileSize int64     `json:"file_size"`
	ModTime  time.Time `json:"mod_time"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Format   string    `json:"format"`

	Fingerprint *uint64       `json:"fingerprint,omitempty"`
	Quality     *QualityScore `json:"quality,omitempty"`
}

// Pixels returns the pixel count, the planner's resolution tie-break.
func (r *ImageRecord) Pixels() int64 {
	return int64(r.Width) * int64(r.Height)
}

// QualityScore is the combined quality of one image. Components keeps the
// per-signal values so a plan reason can name the signal that lost.
type QualityScore struct {
	Total      float64            `json:"total"`
	Components map[string]float64 `json:"components"`
}

// Cluster is a group of >=2 records connected under the active Hamming
// threshold. Connectivity is transitive: two members may sit further
// apart than the threshold if an intermediate image links them.
type Cluster struct {
	ID      int            `json:"id"`
	Records []*ImageRecord `json:"records"`
}

// Action is what the executor should do with one plan entry.
type Action int

const (
	ActionKeep Action = iota
	ActionDelete
	ActionMove
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionDelete:
		return "delete"
	case ActionMove:
		return "move"
	case ActionSkip:
		return "skip"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ReasonQualityIndeterminate marks entries of a cluster where no member
// could be scored; such clusters are never auto-deleted.
const ReasonQualityIndeterminate = "quality-indeterminate"

// PlanEntry is one record's fate within an ActionPlan.
type PlanEntry struct {
	Record *ImageRecord `json:"record"`
	Action Action       `json:"action"`
	Dest   string       `json:"dest,omitempty"` // move destination directory
	Reason string       `json:"reason"`
}

// ActionPlan covers exactly the records of one cluster, keeper first.
// A plan is built once and read-only afterwards; changing a decision
// means rebuilding the plan, never editing it in place.
type ActionPlan struct {
	ClusterID int         `json:"cluster_id"`
	Entries   []PlanEntry `json:"entries"`
}

// Keeper returns the entry marked keep, or nil for indeterminate plans.
func (p *ActionPlan) Keeper() *PlanEntry {
	for i := range p.Entries {
		if p.Entries[i].Action == ActionKeep {
			return &p.Entries[i]
		}
	}
	return nil
}

// Reclaimable sums the file sizes of delete and move entries.
func (p *ActionPlan) Reclaimable() int64 {
	var n int64
	for _, e := range p.Entries {
		if e.Action == ActionDelete || e.Action == ActionMove {
			n += e.Record.FileSize
		}
	}
	return n
}

// EntryError is one failed plan entry with its cause.
type EntryError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// SkippedEntry is one plan entry the executor deliberately did not act on.
type SkippedEntry struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ExecutionResult reports what one Execute call did (or, in dry-run mode,
// predicts it would do). Immutable once returned. Moves maps each moved
// source to the destination path chosen (or, in dry-run mode, the path a
// real run would choose right now), collision suffix included.
type ExecutionResult struct {
	DryRun    bool              `json:"dry_run"`
	Succeeded []string          `json:"succeeded"`
	Failed    []EntryError      `json:"failed"`
	Skipped   []SkippedEntry    `json:"skipped"`
	Moves     map[string]string `json:"moves,omitempty"`
}

// ScanIssue is a non-fatal per-file problem found while scanning.
type ScanIssue struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}
