package training

import (
	"testing"
)

func TestEarlyStoppingNeverFiresOnImprovement(t *testing.T) {
	es := NewEarlyStopping(3, 0.0)

	losses := []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5}
	for i, loss := range losses {
		if es.Check(loss) {
			t.Errorf("stop signal fired at epoch %d despite strictly decreasing loss", i)
		}
	}
	if es.Counter() != 0 {
		t.Errorf("expected counter 0, got %d", es.Counter())
	}
	if es.BestLoss() != 0.5 {
		t.Errorf("expected best loss 0.5, got %g", es.BestLoss())
	}
}

func TestEarlyStoppingFiresAfterTolerance(t *testing.T) {
	tests := []struct {
		name      string
		tolerance int
		minDelta  float64
		losses    []float64
		wantStops []bool
	}{
		{
			name:      "plateau after single improvement",
			tolerance: 3,
			minDelta:  0.0,
			losses:    []float64{1.0, 0.9, 0.95, 0.95, 0.95},
			wantStops: []bool{false, false, false, false, true},
		},
		{
			name:      "constant losses",
			tolerance: 2,
			minDelta:  0.0,
			losses:    []float64{0.5, 0.5, 0.5},
			wantStops: []bool{false, false, true},
		},
		{
			name:      "counter resets on improvement",
			tolerance: 2,
			minDelta:  0.0,
			losses:    []float64{1.0, 1.0, 0.8, 0.8, 0.8},
			wantStops: []bool{false, false, false, false, true},
		},
		{
			name:      "equal to best is not an improvement",
			tolerance: 1,
			minDelta:  0.0,
			losses:    []float64{0.7, 0.7},
			wantStops: []bool{false, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := NewEarlyStopping(tt.tolerance, tt.minDelta)
			for i, loss := range tt.losses {
				got := es.Check(loss)
				if got != tt.wantStops[i] {
					t.Errorf("epoch %d: Check(%g) = %v, want %v", i, loss, got, tt.wantStops[i])
				}
			}
		})
	}
}

func TestEarlyStoppingMinDelta(t *testing.T) {
	// Improvements smaller than MinDelta count as non-improving epochs.
	es := NewEarlyStopping(2, 0.1)

	if es.Check(1.0) {
		t.Fatal("first loss should never fire the stop signal with tolerance 2")
	}
	if es.Check(0.95) {
		t.Fatal("sub-delta improvement should not fire yet")
	}
	if !es.Check(0.91) {
		t.Fatal("second consecutive sub-delta improvement should fire")
	}

	// Best loss stays at the first value: no later loss beat it by MinDelta.
	if es.BestLoss() != 1.0 {
		t.Errorf("expected best loss 1.0, got %g", es.BestLoss())
	}
}
