package checkpoints

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gomlx/ml/context"
)

// fakeSave replaces the gomlx checkpoint write so gating logic can be tested
// without a backend.
func fakeSave(s *BestSaver) *int {
	saves := 0
	s.save = func(ctx *context.Context) error {
		saves++
		return nil
	}
	return &saves
}

func TestBestSaverAccuracyGating(t *testing.T) {
	dir := t.TempDir()
	s := NewBestSaver(dir, "simple-cnn", BestAccuracy)
	saves := fakeSave(s)

	// Checkpoints are written only on strict improvement of val accuracy.
	epochs := []struct {
		acc      float64
		wantSave bool
	}{
		{50.0, true},
		{50.0, false},
		{49.0, false},
		{51.5, true},
		{51.5, false},
	}

	for i, e := range epochs {
		saved, err := s.Observe(nil, i, 1.0, e.acc, 0.1)
		if err != nil {
			t.Fatalf("epoch %d: Observe: %v", i, err)
		}
		if saved != e.wantSave {
			t.Errorf("epoch %d (acc=%g): saved=%v, want %v", i, e.acc, saved, e.wantSave)
		}
	}
	if *saves != 2 {
		t.Errorf("expected 2 writes, got %d", *saves)
	}
	if s.Best() != 51.5 {
		t.Errorf("Best() = %g, want 51.5", s.Best())
	}
}

func TestBestSaverEveryEpoch(t *testing.T) {
	dir := t.TempDir()
	s := NewBestSaver(dir, "deep-cnn", EveryEpoch)
	saves := fakeSave(s)

	for i, acc := range []float64{40.0, 38.0, 42.0} {
		saved, err := s.Observe(nil, i, 1.0, acc, 0.1)
		if err != nil {
			t.Fatalf("epoch %d: Observe: %v", i, err)
		}
		if !saved {
			t.Errorf("epoch %d: EveryEpoch mode should always save", i)
		}
	}
	if *saves != 3 {
		t.Errorf("expected 3 writes, got %d", *saves)
	}
	if s.Best() != 42.0 {
		t.Errorf("Best() = %g, want 42.0", s.Best())
	}
}

func TestBestSaverStateSidecar(t *testing.T) {
	dir := t.TempDir()
	s := NewBestSaver(dir, "transfer-cnn", BestAccuracy)
	fakeSave(s)

	if _, err := s.Observe(nil, 3, 0.82, 61.2, 0.001); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	state, err := LoadState(dir)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if state.TrainingState.Epoch != 3 {
		t.Errorf("epoch = %d, want 3", state.TrainingState.Epoch)
	}
	if state.TrainingState.ValAccuracy != 61.2 {
		t.Errorf("val accuracy = %g, want 61.2", state.TrainingState.ValAccuracy)
	}
	if state.TrainingState.LearningRate != 0.001 {
		t.Errorf("learning rate = %g, want 0.001", state.TrainingState.LearningRate)
	}
	if state.Metadata.Model != "transfer-cnn" {
		t.Errorf("model = %q, want transfer-cnn", state.Metadata.Model)
	}
	if state.Metadata.Framework != "gomlx" {
		t.Errorf("framework = %q, want gomlx", state.Metadata.Framework)
	}
	if state.Metadata.CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
}

type recordingUploader struct {
	names []string
	paths []string
}

func (r *recordingUploader) UploadArtifact(name, path string) error {
	r.names = append(r.names, name)
	r.paths = append(r.paths, path)
	return nil
}

func TestBestSaverUploadsArtifacts(t *testing.T) {
	dir := t.TempDir()
	uploader := &recordingUploader{}
	s := NewBestSaver(dir, "simple-cnn", BestAccuracy)
	s.Uploader = uploader
	fakeSave(s)

	if _, err := s.Observe(nil, 0, 1.0, 30.0, 0.1); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	// The sidecar itself is among the mirrored files.
	found := false
	for _, p := range uploader.paths {
		if filepath.Base(p) == stateFile {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s among uploaded artifacts, got %v", stateFile, uploader.paths)
	}
	for _, name := range uploader.names {
		if name != "simple-cnn" {
			t.Errorf("artifact name = %q, want simple-cnn", name)
		}
	}
}

func TestLoadMissingDir(t *testing.T) {
	err := Load(nil, filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("expected error for missing checkpoint dir")
	}
}

func TestLoadStateMissing(t *testing.T) {
	if _, err := LoadState(t.TempDir()); err == nil {
		t.Fatal("expected error for missing state file")
	}
	if _, err := LoadState(string(os.PathSeparator) + "nonexistent"); err == nil {
		t.Fatal("expected error for nonexistent dir")
	}
}
