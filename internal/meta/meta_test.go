package meta

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestCaptureTime_NoExif(t *testing.T) {
	// PNG carries no EXIF block; the caller falls back to mtime.
	path := filepath.Join(t.TempDir(), "plain.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	f.Close()

	if _, ok := CaptureTime(path); ok {
		t.Error("a file without EXIF must not report a capture time")
	}
}

func TestCaptureTime_MissingFile(t *testing.T) {
	if _, ok := CaptureTime(filepath.Join(t.TempDir(), "gone.jpg")); ok {
		t.Error("a missing file must not report a capture time")
	}
}
