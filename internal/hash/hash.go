// Package hash computes perceptual fingerprints for image files.
//
// The fingerprint is a 64-bit DCT perceptual hash (pHash): the decoder
// output is scaled to a fixed 64x64 grayscale plane before the DCT, so
// resizing and recompression artifacts do not disturb the hash. Two
// fingerprints are compared by Hamming distance.
package hash

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"os"
	"strings"
	"time"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnreadableImage marks files that cannot be decoded: corrupt data,
// unsupported formats, zero-byte files. Match with errors.Is.
var ErrUnreadableImage = errors.New("unreadable image")

// Result carries the fingerprint plus the decode metadata the planner
// and quality scorer need, so callers decode each file only once here.
type Result struct {
	Hash   uint64
	Width  int
	Height int
	Format string
}

// Codec computes fingerprints. Stateless and safe for concurrent use.
type Codec struct{}

// NewCodec creates a Codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Fingerprint decodes the file and computes its perceptual hash.
// Deterministic: identical bytes always produce the identical hash.
func (c *Codec) Fingerprint(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableImage, path, err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %v", ErrUnreadableImage, path, err)
	}

	ph, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: phash: %v", ErrUnreadableImage, path, err)
	}

	bounds := img.Bounds()
	return &Result{
		Hash:   ph.GetHash(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: strings.ToLower(format),
	}, nil
}

// FingerprintWithTimeout bounds the decode work on one file so a stalled
// network mount cannot hang the whole hashing phase.
func (c *Codec) FingerprintWithTimeout(path string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		return c.Fingerprint(path)
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.Fingerprint(path)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: %s: timed out after %s", ErrUnreadableImage, path, timeout)
	}
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
