// Package config holds the immutable engine configuration. A Config value
// is built once by the driver and passed into each engine call; the core
// keeps no process-wide mutable settings.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Mode selects what happens to non-keeper cluster members.
type Mode int

const (
	// ModeDryRun plans and predicts but never touches the filesystem.
	ModeDryRun Mode = iota
	// ModeDelete removes non-keepers (trash by default, see UseTrash).
	ModeDelete
	// ModeMove relocates non-keepers into MoveDest.
	ModeMove
)

func (m Mode) String() string {
	switch m {
	case ModeDryRun:
		return "dry-run"
	case ModeDelete:
		return "delete"
	case ModeMove:
		return "move"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Config is the full engine configuration with documented defaults.
type Config struct {
	// Root is the directory to scan. Must exist and be a directory;
	// anything else aborts the run before any per-file work.
	Root string

	// Extensions accepted by the scanner, lowercase without the dot.
	Extensions []string

	// MinFileSize excludes files below this many bytes.
	MinFileSize int64

	// Threshold is the maximum Hamming distance (out of 64 bits) for two
	// fingerprints to count as near-duplicates. Default 10.
	Threshold int

	// Workers bounds the hashing/scoring pool. Default runtime.NumCPU().
	Workers int

	// FileTimeout bounds decode work on a single file, so a stalled
	// network mount cannot hang a phase. Default 30s.
	FileTimeout time.Duration

	// Weights maps quality signal names to their weight in the combined
	// score. Signals absent from the map contribute nothing.
	Weights map[string]float64

	// ReferencePixels is the pixel count at which the resolution signal
	// saturates at 1.0. Default 12 megapixels.
	ReferencePixels int64

	// Mode, MoveDest select the planned action for non-keepers.
	Mode     Mode
	MoveDest string

	// UseTrash routes deletions through the system trash instead of
	// unlinking permanently. Default true.
	UseTrash bool

	// CachePath, when non-empty, enables the SQLite fingerprint cache.
	CachePath string
}

// DefaultExtensions is the scanner's accepted set when none is given.
var DefaultExtensions = []string{"jpg", "jpeg", "png", "gif", "webp", "bmp", "tif", "tiff"}

// DefaultWeights is the quality signal weighting when none is given.
var DefaultWeights = map[string]float64{
	"sharpness":  0.35,
	"exposure":   0.15,
	"contrast":   0.10,
	"resolution": 0.40,
}

// Default returns the documented default configuration for a root.
func Default(root string) Config {
	return Config{
		Root:            root,
		Extensions:      DefaultExtensions,
		MinFileSize:     1,
		Threshold:       10,
		Workers:         runtime.NumCPU(),
		FileTimeout:     30 * time.Second,
		Weights:         DefaultWeights,
		ReferencePixels: 12_000_000,
		Mode:            ModeDryRun,
		UseTrash:        true,
	}
}

// Normalize fills zero-valued fields with their defaults and clamps
// nonsense values. It returns a copy; the receiver is not modified.
func (c Config) Normalize() Config {
	d := Default(c.Root)
	if len(c.Extensions) == 0 {
		c.Extensions = d.Extensions
	}
	if c.MinFileSize < 1 {
		c.MinFileSize = d.MinFileSize
	}
	if c.Threshold < 0 {
		c.Threshold = d.Threshold
	}
	if c.Workers < 1 {
		c.Workers = d.Workers
	}
	if c.FileTimeout <= 0 {
		c.FileTimeout = d.FileTimeout
	}
	if len(c.Weights) == 0 {
		c.Weights = d.Weights
	}
	if c.ReferencePixels < 1 {
		c.ReferencePixels = d.ReferencePixels
	}
	return c
}

// Validate reports configuration errors the engine cannot work around.
func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("config: root directory is required")
	}
	if c.Threshold > 64 {
		return fmt.Errorf("config: threshold %d exceeds 64 bits", c.Threshold)
	}
	if c.Mode == ModeMove && c.MoveDest == "" {
		return fmt.Errorf("config: move mode requires a destination directory")
	}
	return nil
}
