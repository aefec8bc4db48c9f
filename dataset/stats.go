package dataset

import (
	"gonum.org/v1/gonum/stat"
)

// ChannelStats estimates the per-channel pixel mean and standard deviation of
// a dataset, for use as normalization constants. stride > 1 samples every
// stride-th image to bound memory; stride <= 1 uses every image.
func ChannelStats(ds Dataset, stride int) (mean, std [Channels]float64) {
	if stride <= 0 {
		stride = 1
	}
	const plane = ImageSize * ImageSize

	sampled := (ds.Len() + stride - 1) / stride
	values := make([][]float64, Channels)
	for c := range values {
		values[c] = make([]float64, 0, sampled*plane)
	}

	for i := 0; i < ds.Len(); i += stride {
		raw := ds.Image(i)
		for c := 0; c < Channels; c++ {
			for p := 0; p < plane; p++ {
				values[c] = append(values[c], float64(raw[c*plane+p])/255.0)
			}
		}
	}

	for c := 0; c < Channels; c++ {
		m, s := stat.MeanStdDev(values[c], nil)
		mean[c], std[c] = m, s
	}
	return mean, std
}
