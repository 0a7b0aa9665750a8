// Package engine wires the detection pipeline together: scan the root,
// fingerprint candidates on a bounded worker pool, cluster the
// fingerprints, score the cluster members, and build one action plan
// per cluster. The engine only detects and plans; applying a plan is
// the executor's job, after the driver has had a chance to review it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"photoclean/internal/cache"
	"photoclean/internal/cluster"
	"photoclean/internal/config"
	"photoclean/internal/exact"
	"photoclean/internal/hash"
	"photoclean/internal/models"
	"photoclean/internal/plan"
	"photoclean/internal/quality"
	"photoclean/internal/scan"
)

// Result is everything one detection run produced. On cancellation the
// result holds whatever had been gathered when the run stopped.
type Result struct {
	Records  []*models.ImageRecord
	Clusters []*models.Cluster
	Plans    []*models.ActionPlan
	Issues   []models.ScanIssue
}

// Duplicates counts the records planned for deletion or relocation.
func (r *Result) Duplicates() int {
	n := 0
	for _, p := range r.Plans {
		for _, e := range p.Entries {
			if e.Action == models.ActionDelete || e.Action == models.ActionMove {
				n++
			}
		}
	}
	return n
}

// Reclaimable sums the bytes the plans would free.
func (r *Result) Reclaimable() int64 {
	var n int64
	for _, p := range r.Plans {
		n += p.Reclaimable()
	}
	return n
}

// Engine runs detection under one immutable configuration.
type Engine struct {
	cfg     config.Config
	scanner *scan.Scanner
	codec   *hash.Codec
	scorer  *quality.Scorer
	planner *plan.Planner
	store   *cache.Cache
}

// New builds an Engine. Extra quality signals (a learned model, say)
// participate in scoring under their configured weight; none are
// required. Close the engine when done if a cache path is configured.
func New(cfg config.Config, extraSignals ...quality.Signal) (*Engine, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		scanner: scan.NewScanner(cfg.Extensions, cfg.MinFileSize),
		codec:   hash.NewCodec(),
		scorer:  quality.NewScorer(cfg.Weights, cfg.ReferencePixels, extraSignals...),
		planner: plan.NewPlanner(cfg),
	}

	if cfg.CachePath != "" {
		store, err := cache.Open(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		if n, err := store.Prune(); err != nil {
			log.Warn().Err(err).Msg("failed to prune fingerprint cache")
		} else if n > 0 {
			log.Debug().Int64("pruned", n).Msg("dropped cache entries for missing files")
		}
		e.store = store
	}

	return e, nil
}

// Close releases the fingerprint cache, if one is open.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Config returns the normalized configuration the engine runs under.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Detect runs the full pipeline: scan, fingerprint, cluster, score,
// plan. A root that does not exist or is not a directory aborts before
// any per-file work; per-file problems are isolated into Result.Issues.
//
// On cancellation Detect returns the partial Result built so far
// together with ctx.Err().
func (e *Engine) Detect(ctx context.Context) (*Result, error) {
	info, err := os.Stat(e.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", e.cfg.Root)
	}

	result := &Result{}

	cancelled, err := e.fingerprintPhase(ctx, result)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if err := e.store.Put(result.Records); err != nil {
			log.Warn().Err(err).Msg("failed to persist fingerprints to cache")
		}
	}

	if cancelled != nil {
		return result, cancelled
	}

	clusters, err := cluster.FindClusters(ctx, result.Records, e.cfg.Threshold)
	result.Clusters = clusters
	if err != nil {
		return result, err
	}
	log.Info().Int("records", len(result.Records)).Int("clusters", len(clusters)).Msg("clustering complete")

	if err := e.scorePhase(ctx, result); err != nil {
		return result, err
	}

	for _, c := range result.Clusters {
		result.Plans = append(result.Plans, e.planner.Build(c))
	}

	return result, nil
}

// fingerprintPhase scans the root, groups byte-identical files, and
// fingerprints one representative per group on the worker pool, copying
// the result to the rest. The size pre-bucket inside exact.Group keeps
// unique files from being read twice, and identical copies share a
// single decode. The returned error is fatal; cancellation comes back as
// the first return value so partial results survive.
func (e *Engine) fingerprintPhase(ctx context.Context, result *Result) (cancelled, fatal error) {
	var pending []*models.ImageRecord
	scanIssues, err := e.scanner.Scan(ctx, e.cfg.Root, func(r *models.ImageRecord) error {
		pending = append(pending, r)
		return nil
	})
	result.Issues = append(result.Issues, scanIssues...)
	if err != nil {
		sortResult(result)
		return splitErr(err)
	}

	groups, err := exact.Group(ctx, pending, e.cfg.Workers)
	if err != nil {
		sortResult(result)
		return splitErr(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	work := make(chan []*models.ImageRecord)
	g.Go(func() error {
		defer close(work)
		for _, grp := range groups {
			select {
			case work <- grp:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var mu sync.Mutex
	for i := 0; i < e.cfg.Workers; i++ {
		g.Go(func() error {
			for grp := range work {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := e.fingerprint(grp[0])
				mu.Lock()
				if err != nil {
					// Identical bytes fail identically; exclude the
					// whole group.
					for _, r := range grp {
						result.Issues = append(result.Issues, models.ScanIssue{Path: r.Path, Reason: err.Error()})
					}
					mu.Unlock()
					log.Warn().Str("path", grp[0].Path).Err(err).Msg("excluding file from detection")
					continue
				}
				for _, r := range grp {
					h := res.Hash
					r.Fingerprint = &h
					r.Width = res.Width
					r.Height = res.Height
					r.Format = res.Format
					result.Records = append(result.Records, r)
				}
				mu.Unlock()
			}
			return nil
		})
	}

	err = g.Wait()
	sortResult(result)
	return splitErr(err)
}

// sortResult re-establishes the scanner's deterministic ordering:
// workers finish out of order, and clustering must see a reproducible
// sequence.
func sortResult(result *Result) {
	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].Path < result.Records[j].Path
	})
	sort.Slice(result.Issues, func(i, j int) bool {
		return result.Issues[i].Path < result.Issues[j].Path
	})
}

// splitErr separates cancellation, which leaves partial results usable,
// from fatal failure.
func splitErr(err error) (cancelled, fatal error) {
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err, nil
	default:
		return nil, err
	}
}

// fingerprint consults the cache before decoding.
func (e *Engine) fingerprint(r *models.ImageRecord) (*hash.Result, error) {
	if e.store != nil {
		if entry, ok := e.store.Get(r.Path, r.FileSize, r.ModTime); ok {
			return &hash.Result{
				Hash:   entry.Hash,
				Width:  entry.Width,
				Height: entry.Height,
				Format: entry.Format,
			}, nil
		}
	}
	return e.codec.FingerprintWithTimeout(r.Path, e.cfg.FileTimeout)
}

// scorePhase computes quality scores for cluster members only; files
// outside any cluster never need a score. A member that fails to score
// stays in its cluster unscored, where the planner will refuse to
// delete it.
func (e *Engine) scorePhase(ctx context.Context, result *Result) error {
	var members []*models.ImageRecord
	for _, c := range result.Clusters {
		for _, r := range c.Records {
			if r.Quality == nil {
				members = append(members, r)
			}
		}
	}
	if len(members) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	work := make(chan *models.ImageRecord)

	g.Go(func() error {
		defer close(work)
		for _, r := range members {
			select {
			case work <- r:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var mu sync.Mutex
	for i := 0; i < e.cfg.Workers; i++ {
		g.Go(func() error {
			for r := range work {
				score, err := e.scorer.ScoreWithTimeout(r.Path, e.cfg.FileTimeout)
				if err != nil {
					mu.Lock()
					result.Issues = append(result.Issues, models.ScanIssue{Path: r.Path, Reason: err.Error()})
					mu.Unlock()
					log.Warn().Str("path", r.Path).Err(err).Msg("excluding file from quality ranking")
					continue
				}
				r.Quality = score
			}
			return nil
		})
	}

	return g.Wait()
}
