package models

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/batchnorm"

	"github.com/tsawler/go-cifar/dataset"
)

// SimpleCNN is the hand-written convolutional variant: two conv stacks with
// max pooling, then a batch-normalized dense head with dropout.
func SimpleCNN(ctx *context.Context, spec any, inputs []*graph.Node) []*graph.Node {
	images := inputs[0]
	g := images.Graph()
	dtype := images.DType()
	batchSize := images.Shape().Dimensions[0]
	nextCtx := scoped(ctx)

	x := images

	// Stack 1
	x = layers.Convolution(nextCtx("conv"), x).Channels(128).KernelSize(3).PadSame().Done()
	x = activations.Relu(x)
	x = layers.Convolution(nextCtx("conv"), x).Channels(128).KernelSize(3).PadSame().Done()
	x = activations.Relu(x)
	x = graph.MaxPool(x).Window(2).Done()
	x.AssertDims(batchSize, 16, 16, 128)

	// Stack 2
	x = layers.Convolution(nextCtx("conv"), x).Channels(256).KernelSize(3).PadSame().Done()
	x = activations.Relu(x)
	x = layers.Convolution(nextCtx("conv"), x).Channels(256).KernelSize(3).PadSame().Done()
	x = activations.Relu(x)
	x = graph.MaxPool(x).Window(2).Done()
	x.AssertDims(batchSize, 8, 8, 256)

	// Classifier head
	x = graph.Reshape(x, batchSize, -1)
	x = layers.Dense(nextCtx("dense"), x, true, 512)
	x = activations.Relu(x)
	x = batchnorm.New(nextCtx("norm"), x, -1).Done()
	x = layers.DropoutNormalize(nextCtx("dropout"), x, graph.Scalar(g, dtype, 0.2), true)
	x = layers.Dense(nextCtx("dense"), x, true, dataset.NumClasses)
	x.AssertDims(batchSize, dataset.NumClasses)
	return []*graph.Node{x}
}
