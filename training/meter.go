package training

// RunningMeter accumulates loss and classification accuracy over the batches
// of one epoch. It is reset at the start of every epoch and consumed at epoch
// end for the epoch-level numbers.
type RunningMeter struct {
	lossSum float64
	correct int
	total   int
	batches int
}

// AddBatch folds one batch into the meter: its mean loss, the number of
// correctly classified samples, and the batch size.
func (m *RunningMeter) AddBatch(loss float64, correct, n int) {
	m.lossSum += loss
	m.correct += correct
	m.total += n
	m.batches++
}

// MeanLoss returns the mean of the per-batch losses seen so far.
func (m *RunningMeter) MeanLoss() float64 {
	if m.batches == 0 {
		return 0
	}
	return m.lossSum / float64(m.batches)
}

// AccuracyPct returns the running accuracy as a percentage.
func (m *RunningMeter) AccuracyPct() float64 {
	if m.total == 0 {
		return 0
	}
	return 100 * float64(m.correct) / float64(m.total)
}

// Total returns the number of samples seen so far.
func (m *RunningMeter) Total() int { return m.total }

// Reset clears the meter for a new epoch.
func (m *RunningMeter) Reset() {
	*m = RunningMeter{}
}
