// Trains the randomly-initialized deep CNN on CIFAR-100 with flip and
// rotation augmentation, evaluates it on the clean test set and writes the
// out-of-distribution submission file.
package main

import (
	"flag"
	"os"

	"github.com/gomlx/gomlx/ml/train/optimizers"
	"k8s.io/klog/v2"

	"github.com/tsawler/go-cifar/config"
	"github.com/tsawler/go-cifar/harness"
	"github.com/tsawler/go-cifar/models"
	"github.com/tsawler/go-cifar/training"
	"github.com/tsawler/go-cifar/transform"
)

var (
	flagData        = flag.String("data", "./data", "Directory to cache the CIFAR-100 binary set, downloaded when missing.")
	flagOOD         = flag.String("ood", "./data/ood-test", "Directory with out-of-distribution images. Empty skips the OOD pass.")
	flagTracker     = flag.String("tracker", "", "Base URL of the experiment tracking service. Empty disables tracking.")
	flagCheckpoints = flag.String("checkpoints", "checkpoints/deep-cnn", "Directory for the best-model checkpoint.")
	flagDevice      = flag.String("device", "auto", "Compute backend, or \"auto\" to probe.")
	flagEpochs      = flag.Int("epochs", 5, "Number of training epochs.")
	flagBatchSize   = flag.Int("batch-size", 512, "Training and evaluation batch size.")
	flagWorkers     = flag.Int("workers", 4, "Batch assembly workers.")
	flagSeed        = flag.Int64("seed", 42, "Seed for the split and shuffles.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg := &config.Config{
		Model:          models.DeepCNNName,
		BatchSize:      *flagBatchSize,
		LearningRate:   0.2,
		Epochs:         *flagEpochs,
		NumWorkers:     *flagWorkers,
		Device:         *flagDevice,
		DataDir:        *flagData,
		OODDir:         *flagOOD,
		CheckpointDir:  *flagCheckpoints,
		TrackerProject: "sp25-ds542-challenge",
		TrackerURL:     *flagTracker,
		Seed:           *flagSeed,
	}

	exp := &harness.Experiment{
		Config:    cfg,
		Build:     models.DeepCNN,
		Optimizer: optimizers.StochasticGradientDescent(),
		Scheduler: training.NewStepLR(30, 0.1),
		Augment: transform.Compose{
			transform.RandomHorizontalFlip{P: 0.5},
			transform.RandomRotation{MaxDegrees: 15},
		},
		Normalize: transform.Normalize{
			Mean: [3]float32{0.5071, 0.4867, 0.4408},
			Std:  [3]float32{0.2675, 0.2565, 0.2761},
		},
	}

	if err := harness.Run(exp); err != nil {
		klog.Errorf("run failed: %v", err)
		os.Exit(1)
	}
}
