package dataset

import (
	"math/rand"

	"github.com/seehuhn/mt19937"
)

// TrainFraction is the share of the training partition used for parameter
// updates; the remainder is held out for validation.
const TrainFraction = 0.8

// Split partitions [0, total) into disjoint train and validation index sets.
// The train set holds floor(TrainFraction*total) indices; validation gets the
// rest. The permutation is drawn from a Mersenne-Twister generator seeded
// with seed, so a given seed always yields the same split.
func Split(total int, seed int64) (trainIdx, valIdx []int) {
	src := mt19937.New()
	src.Seed(seed)
	rng := rand.New(src)

	perm := rng.Perm(total)
	trainSize := int(TrainFraction * float64(total))
	return perm[:trainSize], perm[trainSize:]
}

// Subset exposes a fixed index view of an underlying dataset, used for the
// train and validation halves of the split.
type Subset struct {
	base    Dataset
	indices []int
}

// NewSubset creates a view of base restricted to the given indices.
func NewSubset(base Dataset, indices []int) *Subset {
	return &Subset{base: base, indices: indices}
}

// Len returns the number of samples in the view.
func (s *Subset) Len() int { return len(s.indices) }

// Image returns the raw pixels of view sample i.
func (s *Subset) Image(i int) []byte { return s.base.Image(s.indices[i]) }

// Label returns the label of view sample i.
func (s *Subset) Label(i int) int32 { return s.base.Label(s.indices[i]) }

// Labeled reports whether the underlying dataset carries ground truth.
func (s *Subset) Labeled() bool { return s.base.Labeled() }
