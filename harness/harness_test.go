package harness

import (
	"image"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/tsawler/go-cifar/dataset"
	"github.com/tsawler/go-cifar/eval"
	"github.com/tsawler/go-cifar/transform"
)

func TestTrainPipeline(t *testing.T) {
	norm := transform.Normalize{
		Mean: [3]float32{0.5, 0.5, 0.5},
		Std:  [3]float32{0.25, 0.25, 0.25},
	}
	aug := transform.RandomHorizontalFlip{P: 0.5}

	if got := TrainPipeline(nil, norm); got == nil {
		t.Fatal("pipeline without augmentation should be the normalizer")
	}
	if got := TrainPipeline(aug, nil); got == nil {
		t.Fatal("pipeline without normalizer should be the augmentation")
	}

	composed := TrainPipeline(aug, norm)
	if _, ok := composed.(transform.Compose); !ok {
		t.Fatalf("expected a composed pipeline, got %T", composed)
	}

	// Composed order is augment then normalize: with a nil rng the flip is
	// skipped, so the result equals plain normalization.
	img := make([]float32, dataset.PixelBytes)
	for i := range img {
		img[i] = float32(i%7) / 7
	}
	var rng *rand.Rand
	got := composed.Apply(rng, append([]float32(nil), img...), dataset.ImageSize, dataset.ImageSize, dataset.Channels)
	want := norm.Apply(rng, append([]float32(nil), img...), dataset.ImageSize, dataset.ImageSize, dataset.Channels)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pixel %d: got %g, want %g", i, got[i], want[i])
		}
	}
}

func TestWeakestClasses(t *testing.T) {
	cm := eval.NewConfusionMatrix(3)
	// Class 0: 2/2 correct, class 1: 1/2, class 2: 0/2.
	if err := cm.Update(
		[]int32{0, 0, 1, 2, 0, 1},
		[]int32{0, 0, 1, 1, 2, 2},
	); err != nil {
		t.Fatalf("Update: %v", err)
	}
	names := []string{"apple", "bear", "clock"}

	got := WeakestClasses(cm, names, 2)
	if len(got) != 2 {
		t.Fatalf("got %d classes, want 2", len(got))
	}
	if got[0].Name != "clock" || got[0].Recall != 0 {
		t.Errorf("worst class = %q (%.2f%%), want clock (0%%)", got[0].Name, got[0].Recall)
	}
	if got[1].Name != "bear" || got[1].Recall != 50 {
		t.Errorf("second worst = %q (%.2f%%), want bear (50%%)", got[1].Name, got[1].Recall)
	}

	// n larger than the class count returns everything, worst first.
	all := WeakestClasses(cm, names, 10)
	if len(all) != 3 || all[2].Name != "apple" || all[2].Recall != 100 {
		t.Errorf("full ranking = %+v, want apple (100%%) last", all)
	}
}

func TestSubmissionIDs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"img_002.png", "img_001.png"} {
		img := image.NewRGBA(image.Rect(0, 0, dataset.ImageSize, dataset.ImageSize))
		file, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(file, img); err != nil {
			t.Fatal(err)
		}
		file.Close()
	}

	ood, err := dataset.LoadOOD(dir)
	if err != nil {
		t.Fatalf("LoadOOD: %v", err)
	}

	// IDs follow the loader's sorted file order, extensions stripped.
	ids := SubmissionIDs(ood)
	want := []string{"img_001", "img_002"}
	if len(ids) != len(want) {
		t.Fatalf("got %d ids, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("id %d = %q, want %q", i, ids[i], want[i])
		}
	}
}
