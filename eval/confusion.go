package eval

import (
	"github.com/pkg/errors"
)

// ConfusionMatrix accumulates prediction outcomes per (true, predicted)
// class pair.
type ConfusionMatrix struct {
	NumClasses int
	Matrix     [][]int // [true class][predicted class]
	Total      int
}

// NewConfusionMatrix creates an empty numClasses x numClasses matrix.
func NewConfusionMatrix(numClasses int) *ConfusionMatrix {
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}
	return &ConfusionMatrix{
		NumClasses: numClasses,
		Matrix:     matrix,
	}
}

// Update folds one batch of predictions into the matrix.
func (cm *ConfusionMatrix) Update(predictions, labels []int32) error {
	if len(predictions) != len(labels) {
		return errors.Errorf("prediction/label length mismatch: %d vs %d", len(predictions), len(labels))
	}
	for i, pred := range predictions {
		label := labels[i]
		if pred < 0 || int(pred) >= cm.NumClasses || label < 0 || int(label) >= cm.NumClasses {
			return errors.Errorf("class out of range: pred=%d label=%d", pred, label)
		}
		cm.Matrix[label][pred]++
		cm.Total++
	}
	return nil
}

// Accuracy returns the overall accuracy percentage.
func (cm *ConfusionMatrix) Accuracy() float64 {
	if cm.Total == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < cm.NumClasses; i++ {
		correct += cm.Matrix[i][i]
	}
	return 100 * float64(correct) / float64(cm.Total)
}

// ClassRecall returns the recall percentage for one class, or 0 when the
// class never occurred.
func (cm *ConfusionMatrix) ClassRecall(class int) float64 {
	if class < 0 || class >= cm.NumClasses {
		return 0
	}
	total := 0
	for _, n := range cm.Matrix[class] {
		total += n
	}
	if total == 0 {
		return 0
	}
	return 100 * float64(cm.Matrix[class][class]) / float64(total)
}
