package models

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/batchnorm"

	"github.com/tsawler/go-cifar/dataset"
)

// DeepCNN is the randomly-initialized deep variant: three batch-normalized
// convolution stacks with progressive dropout, then a dense head. No
// pretrained weights are involved.
func DeepCNN(ctx *context.Context, spec any, inputs []*graph.Node) []*graph.Node {
	images := inputs[0]
	g := images.Graph()
	dtype := images.DType()
	batchSize := images.Shape().Dimensions[0]
	nextCtx := scoped(ctx)

	convBlock := func(x *graph.Node, channels int) *graph.Node {
		x = layers.Convolution(nextCtx("conv"), x).Channels(channels).KernelSize(3).PadSame().Done()
		x = activations.Relu(x)
		x = batchnorm.New(nextCtx("norm"), x, -1).Done()
		return x
	}

	x := images
	stacks := []struct {
		channels int
		dropout  float64
	}{
		{64, 0.25},
		{128, 0.25},
		{256, 0.5},
	}
	size := dataset.ImageSize
	for _, stack := range stacks {
		x = convBlock(x, stack.channels)
		x = convBlock(x, stack.channels)
		x = graph.MaxPool(x).Window(2).Done()
		x = layers.DropoutNormalize(nextCtx("dropout"), x, graph.Scalar(g, dtype, stack.dropout), true)
		size /= 2
		x.AssertDims(batchSize, size, size, stack.channels)
	}

	x = graph.Reshape(x, batchSize, -1)
	x = layers.Dense(nextCtx("dense"), x, true, 512)
	x = activations.Relu(x)
	x = batchnorm.New(nextCtx("norm"), x, -1).Done()
	x = layers.DropoutNormalize(nextCtx("dropout"), x, graph.Scalar(g, dtype, 0.5), true)
	x = layers.Dense(nextCtx("dense"), x, true, dataset.NumClasses)
	x.AssertDims(batchSize, dataset.NumClasses)
	return []*graph.Node{x}
}
