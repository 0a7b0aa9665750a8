// Package exact groups byte-identical files by content hash so each
// unique payload is decoded and fingerprinted only once.
//
// Files are pre-bucketed by size: a file whose size is unique in the
// input cannot have an exact duplicate, so its bytes are never read
// here. Only same-size candidates are hashed (SHA-256), on a bounded
// worker pool.
package exact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"photoclean/internal/models"
)

// ContentHash returns the hex-encoded SHA-256 digest of the file's bytes.
func ContentHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("content hash: %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Group partitions records into groups of byte-identical files. Every
// input record lands in exactly one group; records with no exact
// duplicate form groups of one. Groups and their members are ordered by
// path, so the output is reproducible for a fixed input.
//
// A file whose bytes cannot be read becomes its own group; the decode
// that follows downstream will report it.
func Group(ctx context.Context, records []*models.ImageRecord, workers int) ([][]*models.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bySize := make(map[int64][]*models.ImageRecord)
	for _, r := range records {
		bySize[r.FileSize] = append(bySize[r.FileSize], r)
	}

	var groups [][]*models.ImageRecord
	var candidates []*models.ImageRecord
	for _, rs := range bySize {
		if len(rs) == 1 {
			groups = append(groups, rs)
			continue
		}
		candidates = append(candidates, rs...)
	}

	if len(candidates) > 0 {
		if workers < 1 {
			workers = 1
		}
		g, gctx := errgroup.WithContext(ctx)
		work := make(chan *models.ImageRecord)
		g.Go(func() error {
			defer close(work)
			for _, r := range candidates {
				select {
				case work <- r:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})

		var mu sync.Mutex
		byDigest := make(map[string][]*models.ImageRecord)
		var unhashed []*models.ImageRecord
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				for r := range work {
					if err := gctx.Err(); err != nil {
						return err
					}
					digest, err := ContentHash(r.Path)
					mu.Lock()
					if err != nil {
						unhashed = append(unhashed, r)
						mu.Unlock()
						log.Warn().Str("path", r.Path).Err(err).Msg("cannot hash file contents")
						continue
					}
					byDigest[digest] = append(byDigest[digest], r)
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, rs := range byDigest {
			groups = append(groups, rs)
		}
		for _, r := range unhashed {
			groups = append(groups, []*models.ImageRecord{r})
		}
	}

	for _, grp := range groups {
		sort.Slice(grp, func(i, j int) bool { return grp[i].Path < grp[j].Path })
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0].Path < groups[j][0].Path })
	return groups, nil
}
