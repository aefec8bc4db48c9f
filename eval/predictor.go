// Package eval runs trained models over held-out data: clean test-set
// accuracy, out-of-distribution prediction, and submission files.
package eval

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/tsawler/go-cifar/dataset"
	"github.com/tsawler/go-cifar/models"
)

// Predictor executes a model's forward pass in inference mode and returns
// class predictions. The context must already hold the trained variables,
// normally restored from a checkpoint.
type Predictor struct {
	exec *context.Exec
}

// NewPredictor compiles an inference executor for the model.
func NewPredictor(backend backends.Backend, ctx *context.Context, build models.BuildFn) (*Predictor, error) {
	var exec *context.Exec
	err := exceptions.TryCatch[error](func() {
		exec = context.NewExec(backend, ctx.Reuse(), func(ctx *context.Context, images *graph.Node) *graph.Node {
			logits := build(ctx, nil, []*graph.Node{images})[0]
			return graph.ArgMax(logits, -1, dtypes.Int32)
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile inference executor")
	}
	return &Predictor{exec: exec}, nil
}

// Predict returns the predicted class for every sample in the batch.
func (p *Predictor) Predict(batch *dataset.Batch) ([]int32, error) {
	var preds []int32
	err := exceptions.TryCatch[error](func() {
		outputs := p.exec.Call(batch.Images)
		preds = outputs[0].Value().([]int32)
	})
	if err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}
	return preds, nil
}
