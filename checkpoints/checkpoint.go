package checkpoints

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gomlx/gomlx/ml/context"
	ckptstore "github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Mode selects when checkpoints are written.
type Mode int

const (
	// BestAccuracy writes a checkpoint only when the validation accuracy
	// strictly exceeds the best value seen so far in the run.
	BestAccuracy Mode = iota
	// EveryEpoch writes a checkpoint after every validated epoch.
	EveryEpoch
)

func (m Mode) String() string {
	switch m {
	case BestAccuracy:
		return "BestAccuracy"
	case EveryEpoch:
		return "EveryEpoch"
	default:
		return "Unknown"
	}
}

// TrainingState captures the training progress at save time.
type TrainingState struct {
	Epoch        int     `json:"epoch"`
	LearningRate float64 `json:"learning_rate"`
	ValLoss      float64 `json:"val_loss"`
	ValAccuracy  float64 `json:"val_accuracy"`
	BestAccuracy float64 `json:"best_accuracy"`
}

// Metadata describes the checkpoint itself.
type Metadata struct {
	Model     string    `json:"model"`
	Version   string    `json:"version"`
	Framework string    `json:"framework"`
	CreatedAt time.Time `json:"created_at"`
}

// State is the sidecar record written next to every checkpoint.
type State struct {
	TrainingState TrainingState `json:"training_state"`
	Metadata      Metadata      `json:"metadata"`
}

// stateFile is the sidecar file name inside the checkpoint directory.
const stateFile = "training_state.json"

// ArtifactUploader mirrors saved checkpoint files to an external tracker.
type ArtifactUploader interface {
	UploadArtifact(name, path string) error
}

// BestSaver persists model state according to its Mode. It satisfies
// training.CheckpointObserver.
type BestSaver struct {
	Dir      string
	Model    string
	Mode     Mode
	Uploader ArtifactUploader // nil disables artifact mirroring

	best    float64
	handler *ckptstore.Handler
	save    func(ctx *context.Context) error
}

// NewBestSaver creates a saver writing checkpoints for model under dir.
func NewBestSaver(dir, model string, mode Mode) *BestSaver {
	s := &BestSaver{
		Dir:   dir,
		Model: model,
		Mode:  mode,
		best:  -1,
	}
	s.save = s.saveContext
	return s
}

// Observe decides whether this epoch's model state should be persisted and,
// if so, writes the checkpoint plus its sidecar. It reports whether a
// checkpoint was written.
func (s *BestSaver) Observe(ctx *context.Context, epoch int, valLoss, valAcc, lr float64) (bool, error) {
	if s.Mode == BestAccuracy && valAcc <= s.best {
		return false, nil
	}
	if valAcc > s.best {
		s.best = valAcc
	}

	if err := s.save(ctx); err != nil {
		return false, errors.Wrap(err, "failed to save checkpoint")
	}

	state := &State{
		TrainingState: TrainingState{
			Epoch:        epoch,
			LearningRate: lr,
			ValLoss:      valLoss,
			ValAccuracy:  valAcc,
			BestAccuracy: s.best,
		},
		Metadata: Metadata{
			Model:     s.Model,
			Version:   "1.0.0",
			Framework: "gomlx",
			CreatedAt: time.Now(),
		},
	}
	if err := writeState(s.Dir, state); err != nil {
		return false, err
	}

	if s.Uploader != nil {
		if err := s.upload(); err != nil {
			// The checkpoint on disk is intact; a failed mirror only loses
			// the tracker copy.
			klog.Warningf("checkpoint artifact upload failed: %v", err)
		}
	}
	return true, nil
}

// Best returns the best validation accuracy observed so far.
func (s *BestSaver) Best() float64 { return s.best }

func (s *BestSaver) saveContext(ctx *context.Context) error {
	if s.handler == nil {
		handler, err := ckptstore.Build(ctx).Dir(s.Dir).Keep(1).Done()
		if err != nil {
			return err
		}
		s.handler = handler
	}
	return s.handler.Save()
}

func (s *BestSaver) upload() error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return errors.Wrapf(err, "failed to read checkpoint dir %s", s.Dir)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.Dir, entry.Name())
		if err := s.Uploader.UploadArtifact(s.Model, path); err != nil {
			return err
		}
	}
	return nil
}

// writeState writes the sidecar JSON for the latest checkpoint.
func writeState(dir string, state *State) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create checkpoint dir %s", dir)
	}
	file, err := os.Create(filepath.Join(dir, stateFile))
	if err != nil {
		return errors.Wrap(err, "failed to create state file")
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		return errors.Wrap(err, "failed to encode state")
	}
	return nil
}

// LoadState reads the sidecar record of the latest checkpoint in dir.
func LoadState(dir string) (*State, error) {
	file, err := os.Open(filepath.Join(dir, stateFile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open state file")
	}
	defer file.Close()

	var state State
	if err := json.NewDecoder(file).Decode(&state); err != nil {
		return nil, errors.Wrap(err, "failed to decode state")
	}
	return &state, nil
}

// Load restores the latest checkpoint in dir into ctx. The context must carry
// the same variable layout the checkpoint was saved from, so build the model
// graph once before calling.
func Load(ctx *context.Context, dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return errors.Wrapf(err, "checkpoint dir %s", dir)
	}
	if _, err := ckptstore.Build(ctx).Dir(dir).Keep(1).Done(); err != nil {
		return errors.Wrapf(err, "failed to load checkpoint from %s", dir)
	}
	return nil
}
