package dataset

import (
	"math/rand"
	"sync"

	"github.com/gomlx/gomlx/types/tensors"
	"github.com/seehuhn/mt19937"

	"github.com/tsawler/go-cifar/transform"
)

// Batch is one fixed-size group of samples, already transformed and packed
// into host tensors. Its lifetime is one training or validation step.
type Batch struct {
	Images *tensors.Tensor // [n, ImageSize, ImageSize, Channels] float32
	Labels *tensors.Tensor // [n, 1] int32; nil when the dataset is unlabeled
	Size   int
}

// Loader iterates a dataset in batches, optionally shuffling between epochs,
// and applies the transform pipeline to every sample. Sample conversion is
// spread over a fixed set of workers; batch order is always deterministic for
// a given seed, shuffle setting and epoch.
type Loader struct {
	ds        Dataset
	batchSize int
	shuffle   bool
	workers   int
	pipeline  transform.Transform
	seed      int64

	epoch   int
	indices []int
	pos     int
	rngs    []*rand.Rand
}

// NewLoader creates a loader over ds. pipeline may be nil, in which case
// samples are only scaled to [0, 1]. The loader starts positioned at the
// beginning of an unshuffled first epoch; call Reset before each epoch.
func NewLoader(ds Dataset, batchSize int, shuffle bool, workers int, pipeline transform.Transform, seed int64) *Loader {
	if workers <= 0 {
		workers = 1
	}
	indices := make([]int, ds.Len())
	for i := range indices {
		indices[i] = i
	}

	// One generator per worker so randomized transforms never share state
	// across goroutines.
	rngs := make([]*rand.Rand, workers)
	for w := range rngs {
		src := mt19937.New()
		src.Seed(seed + int64(w) + 1)
		rngs[w] = rand.New(src)
	}

	return &Loader{
		ds:        ds,
		batchSize: batchSize,
		shuffle:   shuffle,
		workers:   workers,
		pipeline:  pipeline,
		seed:      seed,
		indices:   indices,
		rngs:      rngs,
	}
}

// Batches returns the number of batches in one epoch.
func (l *Loader) Batches() int {
	return (len(l.indices) + l.batchSize - 1) / l.batchSize
}

// Samples returns the number of samples in one epoch.
func (l *Loader) Samples() int { return len(l.indices) }

// Reset rewinds the loader for a new epoch, reshuffling the sample order when
// shuffling is enabled. The shuffle is keyed on (seed, epoch) so epochs are
// reproducible.
func (l *Loader) Reset() {
	l.pos = 0
	if l.shuffle {
		src := mt19937.New()
		src.Seed(l.seed + int64(l.epoch))
		rng := rand.New(src)
		rng.Shuffle(len(l.indices), func(i, j int) {
			l.indices[i], l.indices[j] = l.indices[j], l.indices[i]
		})
	}
	l.epoch++
}

// Next returns the next batch of the epoch, or (nil, nil) once the epoch is
// exhausted.
func (l *Loader) Next() (*Batch, error) {
	if l.pos >= len(l.indices) {
		return nil, nil
	}
	end := l.pos + l.batchSize
	if end > len(l.indices) {
		end = len(l.indices)
	}
	batchIndices := l.indices[l.pos:end]
	l.pos = end
	return l.loadBatch(batchIndices)
}

// loadBatch converts the chosen samples into one image tensor (and one label
// tensor for labeled datasets). Workers each own a deterministic stripe of
// the batch.
func (l *Loader) loadBatch(batchIndices []int) (*Batch, error) {
	n := len(batchIndices)
	images := make([]float32, n*PixelBytes)

	var wg sync.WaitGroup
	for w := 0; w < l.workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := l.rngs[w]
			for j := w; j < n; j += l.workers {
				img := toHWC(l.ds.Image(batchIndices[j]))
				if l.pipeline != nil {
					img = l.pipeline.Apply(rng, img, ImageSize, ImageSize, Channels)
				}
				copy(images[j*PixelBytes:(j+1)*PixelBytes], img)
			}
		}(w)
	}
	wg.Wait()

	batch := &Batch{
		Images: tensors.FromFlatDataAndDimensions(images, n, ImageSize, ImageSize, Channels),
		Size:   n,
	}
	if l.ds.Labeled() {
		labels := make([]int32, n)
		for j, idx := range batchIndices {
			labels[j] = l.ds.Label(idx)
		}
		batch.Labels = tensors.FromFlatDataAndDimensions(labels, n, 1)
	}
	return batch, nil
}

// toHWC converts a raw CIFAR record (three channel planes) into an HWC
// float32 image scaled to [0, 1].
func toHWC(raw []byte) []float32 {
	const plane = ImageSize * ImageSize
	out := make([]float32, PixelBytes)
	for c := 0; c < Channels; c++ {
		for p := 0; p < plane; p++ {
			out[p*Channels+c] = float32(raw[c*plane+p]) / 255.0
		}
	}
	return out
}
