package eval

import (
	"github.com/pkg/errors"

	"github.com/tsawler/go-cifar/dataset"
)

// Classifier predicts a class per sample of a batch. *Predictor satisfies it;
// tests substitute a fake.
type Classifier interface {
	Predict(batch *dataset.Batch) ([]int32, error)
}

// BatchSource yields the batches of one deterministic pass over a dataset.
// *dataset.Loader satisfies it.
type BatchSource interface {
	Reset()
	Next() (*dataset.Batch, error)
}

// CleanResult holds the outcome of a labeled evaluation pass.
type CleanResult struct {
	Predictions []int32
	Correct     int
	Total       int
	Confusion   *ConfusionMatrix
}

// Accuracy returns the accuracy percentage over the full pass.
func (r *CleanResult) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return 100 * float64(r.Correct) / float64(r.Total)
}

// EvaluateClean runs one pass over a labeled loader, collecting predictions,
// accuracy and a confusion matrix.
func EvaluateClean(c Classifier, loader BatchSource) (*CleanResult, error) {
	result := &CleanResult{Confusion: NewConfusionMatrix(dataset.NumClasses)}
	loader.Reset()

	for {
		batch, err := loader.Next()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			break
		}
		if batch.Labels == nil {
			return nil, errors.New("clean evaluation requires a labeled dataset")
		}

		preds, err := c.Predict(batch)
		if err != nil {
			return nil, err
		}

		labels := make([]int32, batch.Size)
		for i, row := range batch.Labels.Value().([][]int32) {
			labels[i] = row[0]
		}
		if err := result.Confusion.Update(preds, labels); err != nil {
			return nil, err
		}

		for i, pred := range preds {
			if pred == labels[i] {
				result.Correct++
			}
		}
		result.Predictions = append(result.Predictions, preds...)
		result.Total += batch.Size
	}
	return result, nil
}

// EvaluateOOD runs one pass over an unlabeled loader and returns the
// predictions in iteration order.
func EvaluateOOD(c Classifier, loader BatchSource) ([]int32, error) {
	var predictions []int32
	loader.Reset()

	for {
		batch, err := loader.Next()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			break
		}
		preds, err := c.Predict(batch)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, preds...)
	}
	return predictions, nil
}
