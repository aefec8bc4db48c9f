// Package models defines the three classifier variants as gomlx graph
// builders. All builders share the train.ModelFn shape: they take the batched
// image node and return a single logits node with one column per class.
package models

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
)

// BuildFn is the shared model-builder signature. inputs[0] is the batched
// image tensor [batch, 32, 32, 3]; the result holds the logits node
// [batch, NumClasses].
type BuildFn func(ctx *context.Context, spec any, inputs []*graph.Node) []*graph.Node

// Model identifiers used for run naming and checkpoints.
const (
	SimpleCNNName = "SimpleCNN"
	DeepCNNName   = "DeepCNN"
	TransferName  = "TransferInceptionV3"
)

// scoped returns consecutive numbered context scopes ("000_conv",
// "001_norm", ...) so each layer's variables land in a distinct scope.
func scoped(ctx *context.Context) func(name string) *context.Context {
	layerIdx := 0
	return func(name string) *context.Context {
		newCtx := ctx.Inf("%03d_%s", layerIdx, name)
		layerIdx++
		return newCtx
	}
}
