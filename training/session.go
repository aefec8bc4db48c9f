package training

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/tsawler/go-cifar/dataset"
)

// Stepper executes one gradient or evaluation step. *train.Trainer from gomlx
// satisfies it; tests substitute a fake. Steppers report failure by panicking,
// which the session converts back into an error.
type Stepper interface {
	TrainStep(spec any, inputs, labels []*tensors.Tensor) []*tensors.Tensor
	EvalStep(spec any, inputs, labels []*tensors.Tensor) []*tensors.Tensor
}

// BatchSource yields the batches of one epoch. *dataset.Loader satisfies it.
type BatchSource interface {
	Reset()
	Next() (*dataset.Batch, error)
	Batches() int
	Samples() int
}

// EpochLogger receives the per-epoch metric row. *track.Run satisfies it.
type EpochLogger interface {
	LogEpoch(epoch int, trainLoss, trainAcc, valLoss, valAcc, lr float64) error
}

// CheckpointObserver is notified after every validated epoch and decides
// whether to persist model state. It reports whether a checkpoint was written.
type CheckpointObserver interface {
	Observe(ctx *context.Context, epoch int, valLoss, valAcc, lr float64) (bool, error)
}

// Session drives the train/validate loop for one model: per-epoch learning
// rate scheduling, metric tracking, checkpointing and early stopping.
type Session struct {
	Stepper     Stepper
	Ctx         *context.Context
	Name        string
	Epochs      int
	BaseLR      float64
	Scheduler   LRScheduler        // nil keeps BaseLR constant
	Early       *EarlyStopping     // nil disables early stopping
	Tracker     EpochLogger        // nil disables tracking
	Checkpoints CheckpointObserver // nil disables checkpointing
	Verbose     bool
}

// FitResult summarizes a completed training run.
type FitResult struct {
	EpochsRun    int
	StoppedEarly bool
	FinalValLoss float64
	FinalValAcc  float64
}

// Fit trains for up to Epochs epochs, validating after each one. It stops
// early when the early-stopping criterion fires.
func (s *Session) Fit(train, val BatchSource) (*FitResult, error) {
	result := &FitResult{}

	for epoch := 0; epoch < s.Epochs; epoch++ {
		lr := s.BaseLR
		if s.Scheduler != nil {
			lr = s.Scheduler.GetLR(epoch, s.BaseLR)
		}
		s.Ctx.SetParam(optimizers.ParamLearningRate, lr)

		trainLoss, trainAcc, err := s.TrainEpoch(train, epoch)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d training", epoch)
		}

		valLoss, valAcc, err := s.Validate(val)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d validation", epoch)
		}

		klog.Infof("%s epoch %d/%d: train_loss=%.4f train_acc=%.2f%% val_loss=%.4f val_acc=%.2f%% lr=%g",
			s.Name, epoch+1, s.Epochs, trainLoss, trainAcc, valLoss, valAcc, lr)

		if s.Tracker != nil {
			if err := s.Tracker.LogEpoch(epoch, trainLoss, trainAcc, valLoss, valAcc, lr); err != nil {
				return nil, errors.Wrapf(err, "epoch %d tracking", epoch)
			}
		}

		if s.Checkpoints != nil {
			saved, err := s.Checkpoints.Observe(s.Ctx, epoch, valLoss, valAcc, lr)
			if err != nil {
				return nil, errors.Wrapf(err, "epoch %d checkpoint", epoch)
			}
			if saved {
				klog.V(1).Infof("%s epoch %d: checkpoint saved (val_acc=%.2f%%)", s.Name, epoch+1, valAcc)
			}
		}

		result.EpochsRun = epoch + 1
		result.FinalValLoss = valLoss
		result.FinalValAcc = valAcc

		if s.Early != nil && s.Early.Check(valLoss) {
			klog.Infof("%s: early stopping after epoch %d (no val_loss improvement for %d epochs)",
				s.Name, epoch+1, s.Early.Tolerance)
			result.StoppedEarly = true
			break
		}
	}
	return result, nil
}

// TrainEpoch runs one full pass over the training loader in train mode and
// returns the mean batch loss and the accuracy percentage.
func (s *Session) TrainEpoch(loader BatchSource, epoch int) (float64, float64, error) {
	loader.Reset()
	meter := &RunningMeter{}

	var bar *ProgressBar
	if s.Verbose {
		bar = NewProgressBar(fmt.Sprintf("Epoch %d/%d", epoch+1, s.Epochs), loader.Batches())
	}

	step := 0
	for {
		batch, err := loader.Next()
		if err != nil {
			return 0, 0, err
		}
		if batch == nil {
			break
		}
		var metrics []*tensors.Tensor
		err = exceptions.TryCatch[error](func() {
			metrics = s.Stepper.TrainStep(nil, []*tensors.Tensor{batch.Images}, []*tensors.Tensor{batch.Labels})
		})
		if err != nil {
			return 0, 0, err
		}
		loss, acc, err := stepScalars(metrics)
		if err != nil {
			return 0, 0, err
		}
		meter.AddBatch(loss, correctCount(acc, batch.Size), batch.Size)

		step++
		if bar != nil {
			bar.Update(step, map[string]float64{
				"loss": meter.MeanLoss(),
				"acc":  meter.AccuracyPct(),
			})
		}
	}
	if bar != nil {
		bar.Finish()
	}
	return meter.MeanLoss(), meter.AccuracyPct(), nil
}

// Validate runs one full pass over the validation loader in evaluation mode:
// no gradient updates, dropout disabled.
func (s *Session) Validate(loader BatchSource) (float64, float64, error) {
	loader.Reset()
	meter := &RunningMeter{}

	for {
		batch, err := loader.Next()
		if err != nil {
			return 0, 0, err
		}
		if batch == nil {
			break
		}
		var metrics []*tensors.Tensor
		err = exceptions.TryCatch[error](func() {
			metrics = s.Stepper.EvalStep(nil, []*tensors.Tensor{batch.Images}, []*tensors.Tensor{batch.Labels})
		})
		if err != nil {
			return 0, 0, err
		}
		loss, acc, err := stepScalars(metrics)
		if err != nil {
			return 0, 0, err
		}
		meter.AddBatch(loss, correctCount(acc, batch.Size), batch.Size)
	}
	return meter.MeanLoss(), meter.AccuracyPct(), nil
}

// stepScalars extracts the batch loss and accuracy fraction from a step's
// metric tensors. The trainer reports the loss first and the accuracy last.
func stepScalars(metrics []*tensors.Tensor) (loss, acc float64, err error) {
	if len(metrics) < 2 {
		return 0, 0, errors.Errorf("expected at least 2 step metrics, got %d", len(metrics))
	}
	loss, err = scalarFloat(metrics[0])
	if err != nil {
		return 0, 0, errors.Wrap(err, "step loss")
	}
	acc, err = scalarFloat(metrics[len(metrics)-1])
	if err != nil {
		return 0, 0, errors.Wrap(err, "step accuracy")
	}
	return loss, acc, nil
}

// scalarFloat reads a scalar tensor as float64.
func scalarFloat(t *tensors.Tensor) (float64, error) {
	switch v := t.Value().(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, errors.Errorf("unexpected scalar type %T", v)
	}
}

// correctCount converts an accuracy fraction back into a hit count for the
// running meter.
func correctCount(accFraction float64, batchSize int) int {
	return int(accFraction*float64(batchSize) + 0.5)
}
