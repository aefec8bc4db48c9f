package training

import (
	"math"
)

// LRScheduler computes the learning rate for an epoch. Schedulers are pure:
// the same (epoch, baseLR) pair always yields the same rate.
type LRScheduler interface {
	GetLR(epoch int, baseLR float64) float64
	Name() string
}

// StepLR multiplies the learning rate by Gamma every StepSize epochs.
type StepLR struct {
	StepSize int
	Gamma    float64
}

// NewStepLR creates a step-decay scheduler.
func NewStepLR(stepSize int, gamma float64) *StepLR {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLR{StepSize: stepSize, Gamma: gamma}
}

func (s *StepLR) GetLR(epoch int, baseLR float64) float64 {
	times := epoch / s.StepSize
	return baseLR * math.Pow(s.Gamma, float64(times))
}

func (s *StepLR) Name() string { return "StepLR" }

// ExponentialLR decays the learning rate by Gamma every epoch.
type ExponentialLR struct {
	Gamma float64
}

// NewExponentialLR creates an exponential-decay scheduler.
func NewExponentialLR(gamma float64) *ExponentialLR {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95
	}
	return &ExponentialLR{Gamma: gamma}
}

func (s *ExponentialLR) GetLR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch))
}

func (s *ExponentialLR) Name() string { return "ExponentialLR" }

// CosineAnnealingLR anneals the learning rate along a cosine curve from
// baseLR down to EtaMin over TMax epochs.
type CosineAnnealingLR struct {
	TMax   int
	EtaMin float64
}

// NewCosineAnnealingLR creates a cosine-annealing scheduler.
func NewCosineAnnealingLR(tMax int, etaMin float64) *CosineAnnealingLR {
	if tMax <= 0 {
		tMax = 100
	}
	if etaMin < 0 {
		etaMin = 0
	}
	return &CosineAnnealingLR{TMax: tMax, EtaMin: etaMin}
}

func (s *CosineAnnealingLR) GetLR(epoch int, baseLR float64) float64 {
	if epoch >= s.TMax {
		return s.EtaMin
	}
	return s.EtaMin + (baseLR-s.EtaMin)*(1+math.Cos(math.Pi*float64(epoch)/float64(s.TMax)))/2
}

func (s *CosineAnnealingLR) Name() string { return "CosineAnnealingLR" }

// ConstantLR keeps the base learning rate for the whole run.
type ConstantLR struct{}

func (s ConstantLR) GetLR(epoch int, baseLR float64) float64 { return baseLR }

func (s ConstantLR) Name() string { return "ConstantLR" }
