// Package scan enumerates candidate image files under a root directory.
//
// The walk is lazy (records are emitted as they are found) and ordered:
// fs.WalkDir visits entries in lexical order, so re-scanning an
// unchanged tree always yields the same sequence regardless of the
// filesystem's native iteration order. Unreadable entries are collected
// as issues instead of aborting the scan.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"photoclean/internal/models"
)

// Scanner filters directory entries down to candidate image records.
type Scanner struct {
	extensions map[string]bool
	minSize    int64
}

// NewScanner creates a Scanner accepting the given extensions (lowercase,
// without the dot) and a minimum file size in bytes.
func NewScanner(extensions []string, minSize int64) *Scanner {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	return &Scanner{extensions: exts, minSize: minSize}
}

// Accepts reports whether the path's extension is in the accepted set.
func (s *Scanner) Accepts(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return s.extensions[ext]
}

// Scan walks root and calls emit for every accepted file, in stable
// lexical path order. It returns the per-file issues encountered along
// the way. Only a root that does not exist or is not a directory is
// fatal; everything else is skipped and reported.
//
// Cancelling ctx stops the walk promptly; issues gathered so far are
// still returned alongside ctx.Err().
func (s *Scanner) Scan(ctx context.Context, root string, emit func(*models.ImageRecord) error) ([]models.ScanIssue, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root: not a directory: %s", root)
	}

	var issues []models.ScanIssue
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			issues = append(issues, models.ScanIssue{Path: path, Reason: walkErr.Error()})
			log.Warn().Str("path", path).Err(walkErr).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !s.Accepts(path) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			issues = append(issues, models.ScanIssue{Path: path, Reason: err.Error()})
			log.Warn().Str("path", path).Err(err).Msg("skipping unstatable file")
			return nil
		}
		if fi.Size() < s.minSize {
			return nil
		}

		return emit(&models.ImageRecord{
			Path:     path,
			FileSize: fi.Size(),
			ModTime:  fi.ModTime(),
		})
	})
	if err != nil {
		return issues, err
	}
	return issues, nil
}
