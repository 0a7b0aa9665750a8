package engine

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photoclean/internal/cache"
	"photoclean/internal/config"
	"photoclean/internal/models"
)

// writeGradientPNG writes a smooth horizontal ramp. Its fingerprint is
// dominated by low-frequency structure, far from the checkerboard's.
func writeGradientPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 256 / width)})
		}
	}
	encodePNG(t, path, img)
}

func writeCheckerboardPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 256, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 256; x++ {
			if (x/32+y/32)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	encodePNG(t, path, img)
}

func encodePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

func copyFixture(t *testing.T, src, dest string) {
	t.Helper()
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("failed to read %s: %v", src, err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", dest, err)
	}
}

// duplicateDir builds a collection with an identical pair (a, b) and one
// unrelated image (c), all with the same mtime so ranking falls through
// to the path tie-break.
func duplicateDir(t *testing.T) (dir, a, b, c string) {
	t.Helper()
	dir = t.TempDir()
	a = filepath.Join(dir, "a.png")
	b = filepath.Join(dir, "b.png")
	c = filepath.Join(dir, "c.png")
	writeGradientPNG(t, a, 256, 200)
	copyFixture(t, a, b)
	writeCheckerboardPNG(t, c)

	when := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, p := range []string{a, b, c} {
		if err := os.Chtimes(p, when, when); err != nil {
			t.Fatalf("failed to set mtime on %s: %v", p, err)
		}
	}
	return dir, a, b, c
}

func newTestEngine(t *testing.T, cfg config.Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestDetect_IdenticalPairClusters(t *testing.T) {
	dir, a, b, c := duplicateDir(t)

	cfg := config.Default(dir)
	cfg.Mode = config.ModeDelete
	cfg.Workers = 2
	e := newTestEngine(t, cfg)

	result, err := e.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(result.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(result.Records))
	}
	if len(result.Clusters) != 1 {
		t.Fatalf("got %d clusters, want 1", len(result.Clusters))
	}
	members := result.Clusters[0].Records
	if len(members) != 2 || members[0].Path != a || members[1].Path != b {
		t.Fatalf("cluster members = %v, want [%s %s]", members, a, b)
	}
	for _, m := range members {
		if m.Path == c {
			t.Errorf("unrelated image %s joined the cluster", c)
		}
	}

	if len(result.Plans) != 1 {
		t.Fatalf("got %d plans, want 1", len(result.Plans))
	}
	plan := result.Plans[0]
	keeper := plan.Keeper()
	if keeper == nil || keeper.Record.Path != a {
		t.Fatalf("keeper = %v, want %s via path tie-break", keeper, a)
	}
	var loser *models.PlanEntry
	for i := range plan.Entries {
		if plan.Entries[i].Action == models.ActionDelete {
			loser = &plan.Entries[i]
		}
	}
	if loser == nil || loser.Record.Path != b {
		t.Fatalf("expected %s planned for deletion, plan = %+v", b, plan.Entries)
	}
	if loser.Reason != "duplicate of kept image" {
		t.Errorf("reason = %q, want exact-duplicate reason", loser.Reason)
	}

	if result.Duplicates() != 1 {
		t.Errorf("Duplicates() = %d, want 1", result.Duplicates())
	}
	if result.Reclaimable() <= 0 {
		t.Errorf("Reclaimable() = %d, want positive", result.Reclaimable())
	}
}

func TestDetect_ResizedCopyClusters(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.png")
	small := filepath.Join(dir, "small.png")
	writeGradientPNG(t, full, 256, 200)
	writeGradientPNG(t, small, 128, 100)

	cfg := config.Default(dir)
	cfg.Workers = 2
	e := newTestEngine(t, cfg)

	result, err := e.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(result.Clusters) != 1 || len(result.Clusters[0].Records) != 2 {
		t.Fatalf("resized copy should cluster with the original, got %v", result.Clusters)
	}

	// The larger rendition wins on the resolution tie-break.
	keeper := result.Plans[0].Keeper()
	if keeper == nil || keeper.Record.Path != full {
		t.Errorf("keeper = %v, want %s", keeper, full)
	}
}

func TestDetect_BadRoot(t *testing.T) {
	cfg := config.Default(filepath.Join(t.TempDir(), "missing"))
	e := newTestEngine(t, cfg)

	if _, err := e.Detect(context.Background()); err == nil {
		t.Fatal("expected an error for a missing root")
	}

	file := filepath.Join(t.TempDir(), "not-a-dir.jpg")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	e2 := newTestEngine(t, config.Default(file))
	if _, err := e2.Detect(context.Background()); err == nil {
		t.Fatal("expected an error for a file root")
	}
}

func TestDetect_UnreadableFileIsolated(t *testing.T) {
	dir, a, b, _ := duplicateDir(t)
	garbage := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(garbage, []byte("not an image at all"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg := config.Default(dir)
	cfg.Workers = 2
	e := newTestEngine(t, cfg)

	result, err := e.Detect(context.Background())
	if err != nil {
		t.Fatalf("an unreadable file must not abort the run: %v", err)
	}

	found := false
	for _, issue := range result.Issues {
		if issue.Path == garbage {
			found = true
		}
	}
	if !found {
		t.Errorf("unreadable file missing from issues: %+v", result.Issues)
	}
	if len(result.Clusters) != 1 {
		t.Fatalf("pair should still cluster, got %d clusters", len(result.Clusters))
	}
	got := result.Clusters[0].Records
	if got[0].Path != a || got[1].Path != b {
		t.Errorf("cluster = %v, want [%s %s]", got, a, b)
	}
}

func TestDetect_CachedRunMatches(t *testing.T) {
	dir, _, _, _ := duplicateDir(t)

	cfg := config.Default(dir)
	cfg.Workers = 2
	cfg.CachePath = filepath.Join(t.TempDir(), "cache", "fingerprints.db")
	e := newTestEngine(t, cfg)

	first, err := e.Detect(context.Background())
	if err != nil {
		t.Fatalf("first Detect failed: %v", err)
	}
	second, err := e.Detect(context.Background())
	if err != nil {
		t.Fatalf("cached Detect failed: %v", err)
	}

	if len(first.Clusters) != len(second.Clusters) {
		t.Fatalf("cluster counts differ across runs: %d vs %d", len(first.Clusters), len(second.Clusters))
	}
	for i := range first.Clusters {
		fp, sp := first.Clusters[i].Records, second.Clusters[i].Records
		if len(fp) != len(sp) {
			t.Fatalf("cluster %d sizes differ", i)
		}
		for j := range fp {
			if fp[j].Path != sp[j].Path || *fp[j].Fingerprint != *sp[j].Fingerprint {
				t.Errorf("cluster %d member %d differs between runs", i, j)
			}
		}
	}
}

func TestDetect_IdenticalUnreadablePair(t *testing.T) {
	// Byte-identical files share one decode attempt; when it fails, every
	// copy must be excluded and reported, not just the one decoded.
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(a, []byte("not an image at all"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	copyFixture(t, a, filepath.Join(dir, "b.jpg"))

	cfg := config.Default(dir)
	cfg.Workers = 2
	e := newTestEngine(t, cfg)

	result, err := e.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("unreadable files must not become records, got %d", len(result.Records))
	}
	if len(result.Issues) != 2 {
		t.Fatalf("got %d issues, want one per copy: %+v", len(result.Issues), result.Issues)
	}
}

func TestNew_PrunesStaleCacheEntries(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "fingerprints.db")
	gone := filepath.Join(t.TempDir(), "gone.jpg")

	c, err := cache.Open(cachePath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	h := uint64(42)
	err = c.Put([]*models.ImageRecord{{
		Path:        gone,
		FileSize:    1,
		ModTime:     time.Now(),
		Fingerprint: &h,
	}})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	c.Close()

	cfg := config.Default(t.TempDir())
	cfg.CachePath = cachePath
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.Close()

	// The engine pruned on open, so nothing stale remains.
	c2, err := cache.Open(cachePath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer c2.Close()
	n, err := c2.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 0 {
		t.Errorf("stale entry survived engine startup, Prune removed %d rows", n)
	}
}

func TestDetect_Cancelled(t *testing.T) {
	dir, _, _, _ := duplicateDir(t)

	cfg := config.Default(dir)
	cfg.Workers = 2
	e := newTestEngine(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Detect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result == nil {
		t.Fatal("cancellation must still return the partial result")
	}
	if len(result.Plans) != 0 {
		t.Errorf("cancelled run should not have planned, got %d plans", len(result.Plans))
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Mode = config.ModeMove // no destination
	if _, err := New(cfg); err == nil {
		t.Fatal("move mode without a destination must be rejected")
	}

	cfg = config.Default("")
	if _, err := New(cfg); err == nil {
		t.Fatal("empty root must be rejected")
	}
}
