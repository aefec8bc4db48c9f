package training

import (
	"math"
)

// EarlyStopping tracks validation loss across epochs and signals when it has
// stopped improving. A loss improves only when it undercuts the best seen by
// more than MinDelta; every other value bumps a consecutive-miss counter, and
// once that counter reaches Tolerance the check reports true. The signal is
// advisory: the caller decides whether to halt.
type EarlyStopping struct {
	Tolerance int
	MinDelta  float64

	counter  int
	bestLoss float64
}

// NewEarlyStopping creates an EarlyStopping policy. Tolerance is the number
// of consecutive non-improving epochs allowed before the stop signal fires.
func NewEarlyStopping(tolerance int, minDelta float64) *EarlyStopping {
	return &EarlyStopping{
		Tolerance: tolerance,
		MinDelta:  minDelta,
		bestLoss:  math.Inf(1),
	}
}

// Check feeds one validation loss into the policy and reports whether the
// stop signal is raised.
func (es *EarlyStopping) Check(validationLoss float64) bool {
	if validationLoss+es.MinDelta < es.bestLoss {
		es.bestLoss = validationLoss
		es.counter = 0
		return false
	}
	es.counter++
	return es.counter >= es.Tolerance
}

// Counter returns the current consecutive-non-improvement count.
func (es *EarlyStopping) Counter() int { return es.counter }

// BestLoss returns the best validation loss seen so far.
func (es *EarlyStopping) BestLoss() float64 { return es.bestLoss }
