package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"photoclean/internal/models"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "fingerprints.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func fingerprinted(path string, hash uint64, size int64, modTime time.Time) *models.ImageRecord {
	h := hash
	return &models.ImageRecord{
		Path:        path,
		FileSize:    size,
		ModTime:     modTime,
		Width:       1920,
		Height:      1080,
		Format:      "jpeg",
		Fingerprint: &h,
	}
}

func TestCache_RoundTrip(t *testing.T) {
	c := openTestCache(t)
	modTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	records := []*models.ImageRecord{
		fingerprinted("/photos/a.jpg", 0xDEADBEEF, 1000, modTime),
		fingerprinted("/photos/b.jpg", 0xCAFEBABE, 2000, modTime),
	}
	if err := c.Put(records); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, ok := c.Get("/photos/a.jpg", 1000, modTime)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.Hash != 0xDEADBEEF {
		t.Errorf("hash = %x, want deadbeef", entry.Hash)
	}
	if entry.Width != 1920 || entry.Height != 1080 || entry.Format != "jpeg" {
		t.Errorf("metadata wrong: %+v", entry)
	}
}

func TestCache_MissOnChangedFile(t *testing.T) {
	c := openTestCache(t)
	modTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := c.Put([]*models.ImageRecord{
		fingerprinted("/photos/a.jpg", 1, 1000, modTime),
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, ok := c.Get("/photos/a.jpg", 1001, modTime); ok {
		t.Error("size change should invalidate the entry")
	}
	if _, ok := c.Get("/photos/a.jpg", 1000, modTime.Add(time.Second)); ok {
		t.Error("mtime change should invalidate the entry")
	}
	if _, ok := c.Get("/photos/other.jpg", 1000, modTime); ok {
		t.Error("unknown path should miss")
	}
}

func TestCache_PutOverwrites(t *testing.T) {
	c := openTestCache(t)
	modTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := c.Put([]*models.ImageRecord{fingerprinted("/photos/a.jpg", 1, 1000, modTime)}); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := c.Put([]*models.ImageRecord{fingerprinted("/photos/a.jpg", 2, 1000, modTime)}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	entry, ok := c.Get("/photos/a.jpg", 1000, modTime)
	if !ok || entry.Hash != 2 {
		t.Errorf("entry = %+v, want updated hash 2", entry)
	}
}

func TestCache_SkipsUnfingerprinted(t *testing.T) {
	c := openTestCache(t)

	err := c.Put([]*models.ImageRecord{{Path: "/photos/broken.jpg"}})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := c.Get("/photos/broken.jpg", 0, time.Time{}); ok {
		t.Error("record without fingerprint must not be cached")
	}
}

func TestCache_Prune(t *testing.T) {
	c := openTestCache(t)
	modTime := time.Now()

	// One path that exists on disk, one that does not.
	dir := t.TempDir()
	alive := filepath.Join(dir, "alive.jpg")
	if err := os.WriteFile(alive, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	gone := filepath.Join(dir, "gone.jpg")

	if err := c.Put([]*models.ImageRecord{
		fingerprinted(alive, 1, 1, modTime),
		fingerprinted(gone, 2, 1, modTime),
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	pruned, err := c.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned %d rows, want 1", pruned)
	}
	if _, ok := c.Get(alive, 1, modTime); !ok {
		t.Error("live entry was pruned")
	}
}
