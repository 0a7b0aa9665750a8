// Package quality scores images on a 0..1 scale from independent signals.
//
// Each signal looks at a normalized sample: the image fitted into a
// 256x256 box with Lanczos resampling and reduced to luminance. The
// combined score is the weighted mean of the signals that responded,
// clamped to [0,1]. Signals a caller does not weight, or that abstain,
// simply drop out of the sum.
package quality

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"photoclean/internal/hash"
	"photoclean/internal/models"
)

// Signal names used in the weight configuration.
const (
	SignalSharpness  = "sharpness"
	SignalExposure   = "exposure"
	SignalContrast   = "contrast"
	SignalResolution = "resolution"
	SignalModel      = "model"
)

const sampleEdge = 256

// Sample is the normalized view of one image that signals score against.
type Sample struct {
	Path   string
	Width  int // original dimensions, before sampling
	Height int

	Luma []float64 // row-major luminance, 0..255
	Cols int
	Rows int
}

// Signal produces one quality component. Returning ok=false abstains:
// the signal is left out of the weighted sum for this image, which is
// how an absent learned model degrades instead of failing.
type Signal interface {
	Name() string
	Score(s *Sample) (value float64, ok bool)
}

// SignalFunc adapts a path-based provider, such as an externally
// supplied learned quality model, into a Signal.
func SignalFunc(name string, fn func(path string) (float64, bool)) Signal {
	return funcSignal{name: name, fn: fn}
}

type funcSignal struct {
	name string
	fn   func(string) (float64, bool)
}

func (f funcSignal) Name() string { return f.name }

func (f funcSignal) Score(s *Sample) (float64, bool) { return f.fn(s.Path) }

// Scorer combines registered signals under configured weights.
// Safe for concurrent use.
type Scorer struct {
	weights map[string]float64
	signals []Signal
}

// NewScorer builds a Scorer with the built-in signals plus any extras
// (e.g. a learned model registered under the "model" weight).
func NewScorer(weights map[string]float64, referencePixels int64, extra ...Signal) *Scorer {
	signals := []Signal{
		sharpnessSignal{},
		exposureSignal{},
		contrastSignal{},
		resolutionSignal{reference: referencePixels},
	}
	signals = append(signals, extra...)
	return &Scorer{weights: weights, signals: signals}
}

// Score decodes the file and computes the combined quality score.
// Decode failures wrap hash.ErrUnreadableImage, mirroring the codec.
func (sc *Scorer) Score(path string) (*models.QualityScore, error) {
	sample, err := loadSample(path)
	if err != nil {
		return nil, err
	}

	components := make(map[string]float64)
	var sum, weightSum float64
	for _, sig := range sc.signals {
		w := sc.weights[sig.Name()]
		if w <= 0 {
			continue
		}
		v, ok := sig.Score(sample)
		if !ok {
			continue
		}
		v = clamp01(v)
		components[sig.Name()] = v
		sum += w * v
		weightSum += w
	}

	if weightSum == 0 {
		return nil, fmt.Errorf("no weighted quality signal responded for %s", path)
	}

	return &models.QualityScore{
		Total:      clamp01(sum / weightSum),
		Components: components,
	}, nil
}

// ScoreWithTimeout bounds the decode and signal work on one file.
func (sc *Scorer) ScoreWithTimeout(path string, timeout time.Duration) (*models.QualityScore, error) {
	if timeout <= 0 {
		return sc.Score(path)
	}

	type outcome struct {
		score *models.QualityScore
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		s, err := sc.Score(path)
		done <- outcome{s, err}
	}()

	select {
	case o := <-done:
		return o.score, o.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: %s: scoring timed out after %s", hash.ErrUnreadableImage, path, timeout)
	}
}

// loadSample decodes and normalizes one image for signal computation.
func loadSample(path string) (*Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", hash.ErrUnreadableImage, path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %v", hash.ErrUnreadableImage, path, err)
	}

	bounds := img.Bounds()
	small := imaging.Fit(img, sampleEdge, sampleEdge, imaging.Lanczos)
	gray := imaging.Grayscale(small)

	cols := gray.Bounds().Dx()
	rows := gray.Bounds().Dy()
	luma := make([]float64, cols*rows)
	for y := 0; y < rows; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+cols*4]
		for x := 0; x < cols; x++ {
			// Grayscale output has R==G==B, so one channel is enough.
			luma[y*cols+x] = float64(row[x*4])
		}
	}

	return &Sample{
		Path:   path,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Luma:   luma,
		Cols:   cols,
		Rows:   rows,
	}, nil
}

// sharpnessSignal measures edge energy as the variance of the Laplacian
// response over luminance. Blurred images have low high-frequency
// variance. The reference variance maps a moderately sharp photo to 1.0.
type sharpnessSignal struct{}

const sharpnessReferenceVariance = 100.0

func (sharpnessSignal) Name() string { return SignalSharpness }

func (sharpnessSignal) Score(s *Sample) (float64, bool) {
	if s.Cols < 3 || s.Rows < 3 {
		return 0, false
	}

	n := (s.Cols - 2) * (s.Rows - 2)
	responses := make([]float64, 0, n)
	var mean float64
	for y := 1; y < s.Rows-1; y++ {
		for x := 1; x < s.Cols-1; x++ {
			c := s.Luma[y*s.Cols+x]
			lap := 4*c - s.Luma[(y-1)*s.Cols+x] - s.Luma[(y+1)*s.Cols+x] -
				s.Luma[y*s.Cols+x-1] - s.Luma[y*s.Cols+x+1]
			responses = append(responses, lap)
			mean += lap
		}
	}
	mean /= float64(n)

	var variance float64
	for _, r := range responses {
		d := r - mean
		variance += d * d
	}
	variance /= float64(n)

	return clamp01(variance / sharpnessReferenceVariance), true
}

// exposureSignal scores how close mean luminance sits to mid-gray and
// penalizes histograms dominated by crushed blacks or blown highlights.
type exposureSignal struct{}

func (exposureSignal) Name() string { return SignalExposure }

func (exposureSignal) Score(s *Sample) (float64, bool) {
	if len(s.Luma) == 0 {
		return 0, false
	}

	var mean float64
	var dark, bright int
	for _, v := range s.Luma {
		mean += v
		if v < 50 {
			dark++
		} else if v > 205 {
			bright++
		}
	}
	mean /= float64(len(s.Luma))

	score := 1 - math.Abs(mean-128)/128

	// A histogram with more than half its mass in one extreme means the
	// shot is under- or over-exposed regardless of where the mean lands.
	if frac := float64(dark) / float64(len(s.Luma)); frac > 0.5 {
		score *= 0.5
	}
	if frac := float64(bright) / float64(len(s.Luma)); frac > 0.5 {
		score *= 0.5
	}

	return clamp01(score), true
}

// contrastSignal scores the luminance standard deviation against an
// ideal band of roughly 30..80, flat images and harshly clipped images
// both losing points.
type contrastSignal struct{}

func (contrastSignal) Name() string { return SignalContrast }

func (contrastSignal) Score(s *Sample) (float64, bool) {
	if len(s.Luma) == 0 {
		return 0, false
	}

	var mean float64
	for _, v := range s.Luma {
		mean += v
	}
	mean /= float64(len(s.Luma))

	var variance float64
	for _, v := range s.Luma {
		d := v - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(len(s.Luma)))

	var score float64
	switch {
	case sd < 30:
		score = sd / 30 * 0.5
	case sd <= 80:
		score = 0.5 + (sd-30)/50*0.5
	default:
		score = 1 - (sd-80)/500
	}
	return clamp01(score), true
}

// resolutionSignal normalizes the pixel count against a reference,
// saturating at 1.0 so giant files do not dominate every other signal.
type resolutionSignal struct {
	reference int64
}

func (resolutionSignal) Name() string { return SignalResolution }

func (r resolutionSignal) Score(s *Sample) (float64, bool) {
	if r.reference <= 0 {
		return 0, false
	}
	pixels := int64(s.Width) * int64(s.Height)
	return clamp01(float64(pixels) / float64(r.reference)), true
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
