// Package transform implements per-sample image preprocessing for training
// and evaluation. Transforms operate on float32 images in HWC layout with
// values already scaled to [0, 1].
//
// Randomized transforms draw from the *rand.Rand they are handed, so the data
// loader can keep one generator per worker. Deterministic transforms ignore
// it; evaluation pipelines are built exclusively from deterministic transforms
// so repeated passes over the same partition produce identical tensors.
package transform

import (
	"math/rand"

	"github.com/chewxy/math32"
)

// Transform mutates or replaces a single image. Implementations must not
// retain img across calls. rng may be nil when the transform is deterministic.
type Transform interface {
	Apply(rng *rand.Rand, img []float32, h, w, c int) []float32
}

// Compose applies a sequence of transforms in order.
type Compose []Transform

func (cs Compose) Apply(rng *rand.Rand, img []float32, h, w, c int) []float32 {
	for _, t := range cs {
		img = t.Apply(rng, img, h, w, c)
	}
	return img
}

// Normalize shifts and scales each channel: out = (in - mean) / std.
type Normalize struct {
	Mean [3]float32
	Std  [3]float32
}

func (n Normalize) Apply(_ *rand.Rand, img []float32, h, w, c int) []float32 {
	for i := 0; i < h*w; i++ {
		for ch := 0; ch < c; ch++ {
			idx := i*c + ch
			img[idx] = (img[idx] - n.Mean[ch]) / n.Std[ch]
		}
	}
	return img
}

// RandomHorizontalFlip mirrors the image left-right with probability P.
type RandomHorizontalFlip struct {
	P float32
}

func (f RandomHorizontalFlip) Apply(rng *rand.Rand, img []float32, h, w, c int) []float32 {
	if rng == nil || rng.Float32() >= f.P {
		return img
	}
	for y := 0; y < h; y++ {
		row := img[y*w*c : (y+1)*w*c]
		for x := 0; x < w/2; x++ {
			xr := w - 1 - x
			for ch := 0; ch < c; ch++ {
				row[x*c+ch], row[xr*c+ch] = row[xr*c+ch], row[x*c+ch]
			}
		}
	}
	return img
}

// RandomRotation rotates the image around its center by a uniform angle in
// [-MaxDegrees, MaxDegrees], using nearest-neighbor sampling. Pixels rotated
// in from outside the frame are zero.
type RandomRotation struct {
	MaxDegrees float32
}

func (r RandomRotation) Apply(rng *rand.Rand, img []float32, h, w, c int) []float32 {
	if rng == nil || r.MaxDegrees == 0 {
		return img
	}
	deg := (rng.Float32()*2 - 1) * r.MaxDegrees
	return rotate(img, h, w, c, deg)
}

// rotate resamples img rotated by deg degrees. A positive angle rotates
// counter-clockwise.
func rotate(img []float32, h, w, c int, deg float32) []float32 {
	rad := deg * math32.Pi / 180
	sin, cos := math32.Sin(rad), math32.Cos(rad)
	cy := float32(h-1) / 2
	cx := float32(w-1) / 2

	out := make([]float32, len(img))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Inverse mapping: where in the source does this output
			// pixel come from?
			dy := float32(y) - cy
			dx := float32(x) - cx
			sy := cos*dy - sin*dx + cy
			sx := sin*dy + cos*dx + cx

			iy := int(math32.Round(sy))
			ix := int(math32.Round(sx))
			if iy < 0 || iy >= h || ix < 0 || ix >= w {
				continue
			}
			copy(out[(y*w+x)*c:(y*w+x+1)*c], img[(iy*w+ix)*c:(iy*w+ix+1)*c])
		}
	}
	return out
}
