package models

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/models/inceptionv3"

	"github.com/tsawler/go-cifar/dataset"
)

// transferInputSize is the edge length CIFAR images are upsampled to before
// entering the pretrained base, which requires inputs of at least
// inceptionv3.MinimalImageSize per side.
const transferInputSize = 96

// TransferInception returns the fine-tuning variant: a frozen pretrained
// InceptionV3 base with a fresh dense classifier head. weightsDir must hold
// the unpacked pretrained weights (see inceptionv3.DownloadAndUnpackWeights).
func TransferInception(weightsDir string) BuildFn {
	return func(ctx *context.Context, spec any, inputs []*graph.Node) []*graph.Node {
		images := inputs[0]
		batchSize := images.Shape().Dimensions[0]
		nextCtx := scoped(ctx)

		// The base consumes larger images than CIFAR's 32x32.
		x := graph.Interpolate(images, -1, transferInputSize, transferInputSize, -1).Done()

		x = inceptionv3.BuildGraph(nextCtx("inception"), x).
			PreTrained(weightsDir).
			SetPooling(inceptionv3.MeanPooling).
			Trainable(false).
			Done()

		// Only the head trains.
		x = layers.Dense(nextCtx("dense"), x, true, dataset.NumClasses)
		x.AssertDims(batchSize, dataset.NumClasses)
		return []*graph.Node{x}
	}
}
