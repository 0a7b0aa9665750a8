// Package meta reads the little EXIF metadata the engine cares about.
package meta

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureTime returns the EXIF capture timestamp of the image, if the
// file carries one. Absence of EXIF data is not an error; callers fall
// back to the filesystem modification time.
func CaptureTime(path string) (time.Time, bool) {
	file, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer file.Close()

	x, err := exif.Decode(file)
	if err != nil {
		return time.Time{}, false
	}

	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
