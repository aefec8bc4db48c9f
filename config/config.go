package config

import (
	"fmt"
	"strings"
)

// Config holds every runtime knob for a training run. It mirrors the single
// configuration mapping the run is driven by: built once in the app, read-only
// afterwards, and forwarded verbatim to the experiment tracker.
type Config struct {
	Model        string // Model identifier, used for run naming and checkpoints
	BatchSize    int
	LearningRate float64
	Epochs       int
	NumWorkers   int // Batch assembly workers in the data loader

	// Device selects the compute backend. "auto" probes the preference
	// order in DevicePreference; anything else is passed to the backend
	// factory as-is.
	Device string

	DataDir       string // Root directory for the CIFAR-100 binary set
	OODDir        string // Directory holding the unlabeled OOD images
	CheckpointDir string // Where the best-model artifact is written

	TrackerProject string
	TrackerURL     string // Empty disables tracking

	Seed int64
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model must be set")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.Device == "" {
		c.Device = "auto"
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory must be set")
	}
	if c.CheckpointDir == "" {
		c.CheckpointDir = "checkpoints"
	}
	return nil
}

// String renders the config one key per line, for logging at startup.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  model:           %s\n", c.Model)
	fmt.Fprintf(&b, "  batch_size:      %d\n", c.BatchSize)
	fmt.Fprintf(&b, "  learning_rate:   %g\n", c.LearningRate)
	fmt.Fprintf(&b, "  epochs:          %d\n", c.Epochs)
	fmt.Fprintf(&b, "  num_workers:     %d\n", c.NumWorkers)
	fmt.Fprintf(&b, "  device:          %s\n", c.Device)
	fmt.Fprintf(&b, "  data_dir:        %s\n", c.DataDir)
	fmt.Fprintf(&b, "  ood_dir:         %s\n", c.OODDir)
	fmt.Fprintf(&b, "  checkpoint_dir:  %s\n", c.CheckpointDir)
	fmt.Fprintf(&b, "  tracker_project: %s\n", c.TrackerProject)
	fmt.Fprintf(&b, "  seed:            %d", c.Seed)
	return b.String()
}

// Map returns the config as a flat mapping, in the shape the tracker's run
// registration endpoint expects.
func (c *Config) Map() map[string]any {
	return map[string]any{
		"model":         c.Model,
		"batch_size":    c.BatchSize,
		"learning_rate": c.LearningRate,
		"epochs":        c.Epochs,
		"num_workers":   c.NumWorkers,
		"device":        c.Device,
		"data_dir":      c.DataDir,
		"ood_dir":       c.OODDir,
		"seed":          c.Seed,
	}
}
