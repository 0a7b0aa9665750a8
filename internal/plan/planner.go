// Package plan ranks a cluster's members and decides each one's fate.
//
// Within a cluster the scored members are ranked by quality, the top
// record becomes the keeper, and every other record is planned for
// deletion or relocation with a reason naming the signal (or tie-break)
// it lost on. Plans are built whole and never edited in place, so a
// reviewed plan is exactly the plan that gets executed.
package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"photoclean/internal/config"
	"photoclean/internal/meta"
	"photoclean/internal/models"
)

// Planner builds action plans under one configuration.
type Planner struct {
	mode     config.Mode
	moveDest string

	// captureTime is swappable so tests do not need EXIF fixtures.
	captureTime func(path string) (time.Time, bool)
}

// NewPlanner creates a Planner for the configured mode.
func NewPlanner(cfg config.Config) *Planner {
	return &Planner{
		mode:        cfg.Mode,
		moveDest:    cfg.MoveDest,
		captureTime: meta.CaptureTime,
	}
}

// Build constructs the plan for one cluster. The keeper is first, ranked
// losers follow, unscorable members come last as skip entries.
//
// A cluster with no scorable member is never guessed at: every entry is
// marked skip with reason quality-indeterminate.
func (p *Planner) Build(c *models.Cluster) *models.ActionPlan {
	var scored, unscored []*models.ImageRecord
	for _, r := range c.Records {
		if r.Quality != nil {
			scored = append(scored, r)
		} else {
			unscored = append(unscored, r)
		}
	}
	sort.Slice(unscored, func(i, j int) bool { return unscored[i].Path < unscored[j].Path })

	plan := &models.ActionPlan{ClusterID: c.ID}

	if len(scored) == 0 {
		log.Warn().Int("cluster", c.ID).Msg("no scorable member, skipping whole cluster")
		for _, r := range c.Records {
			plan.Entries = append(plan.Entries, models.PlanEntry{
				Record: r,
				Action: models.ActionSkip,
				Reason: models.ReasonQualityIndeterminate,
			})
		}
		return plan
	}

	p.rank(scored)

	keeper := scored[0]
	plan.Entries = append(plan.Entries, models.PlanEntry{
		Record: keeper,
		Action: models.ActionKeep,
		Reason: "highest quality score in cluster",
	})

	for _, loser := range scored[1:] {
		entry := models.PlanEntry{
			Record: loser,
			Reason: p.reason(keeper, loser),
		}
		if p.mode == config.ModeMove {
			entry.Action = models.ActionMove
			entry.Dest = p.moveDest
		} else {
			entry.Action = models.ActionDelete
		}
		plan.Entries = append(plan.Entries, entry)
	}

	// Unscorable siblings are skipped, not deleted: with no score there
	// is no evidence the keeper is actually the better copy.
	for _, r := range unscored {
		plan.Entries = append(plan.Entries, models.PlanEntry{
			Record: r,
			Action: models.ActionSkip,
			Reason: models.ReasonQualityIndeterminate,
		})
	}

	return plan
}

// rank sorts scored records best-first: quality total, then pixel count,
// then capture time (EXIF, falling back to mtime) newest-first, then
// path. Every step is deterministic, so the keeper is reproducible.
func (p *Planner) rank(records []*models.ImageRecord) {
	times := make(map[string]time.Time, len(records))
	for _, r := range records {
		times[r.Path] = p.effectiveTime(r)
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Quality.Total != b.Quality.Total {
			return a.Quality.Total > b.Quality.Total
		}
		if a.Pixels() != b.Pixels() {
			return a.Pixels() > b.Pixels()
		}
		at, bt := times[a.Path], times[b.Path]
		if !at.Equal(bt) {
			return at.After(bt)
		}
		return a.Path < b.Path
	})
}

func (p *Planner) effectiveTime(r *models.ImageRecord) time.Time {
	if t, ok := p.captureTime(r.Path); ok {
		return t
	}
	return r.ModTime
}

// reason names what the loser lost on, for auditability: the weakest
// quality signal relative to the keeper, or the deciding tie-break.
func (p *Planner) reason(keeper, loser *models.ImageRecord) string {
	const epsilon = 1e-9

	if keeper.Quality.Total-loser.Quality.Total > epsilon {
		name, gap := "", 0.0
		for sig, kv := range keeper.Quality.Components {
			lv, ok := loser.Quality.Components[sig]
			if !ok {
				continue
			}
			if d := kv - lv; d > gap {
				name, gap = sig, d
			}
		}
		if name != "" {
			return fmt.Sprintf("lower %s score than kept image", name)
		}
		return "lower quality score than kept image"
	}

	if loser.Pixels() < keeper.Pixels() {
		return "lower resolution than kept image"
	}
	if p.effectiveTime(loser).Before(p.effectiveTime(keeper)) {
		return "older than kept image"
	}
	return "duplicate of kept image"
}
