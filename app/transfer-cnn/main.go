// Fine-tunes a pretrained InceptionV3 base on CIFAR-100: frozen backbone,
// fresh classifier head, AdamW with early stopping. Evaluates on the clean
// test set and writes the out-of-distribution submission file.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/models/inceptionv3"
	"github.com/janpfeifer/must"
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
	flagCheckpoints = flag.String("checkpoints", "checkpoints/transfer-cnn", "Directory for the best-model checkpoint.")
	flagDevice      = flag.String("device", "auto", "Compute backend, or \"auto\" to probe.")
	flagEpochs      = flag.Int("epochs", 50, "Number of training epochs.")
	flagBatchSize   = flag.Int("batch-size", 512, "Training and evaluation batch size.")
	flagWorkers     = flag.Int("workers", 4, "Batch assembly workers.")
	flagSeed        = flag.Int64("seed", 42, "Seed for the split and shuffles.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	// The pretrained base weights are cached next to the dataset.
	weightsDir := filepath.Join(*flagData, "inceptionv3")
	must.M(inceptionv3.DownloadAndUnpackWeights(weightsDir))
	klog.Infof("pretrained weights ready in %s", weightsDir)

	cfg := &config.Config{
		Model:          models.TransferName,
		BatchSize:      *flagBatchSize,
		LearningRate:   0.001,
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
		Build:     models.TransferInception(weightsDir),
		Optimizer: optimizers.Adam().WeightDecay(1e-4).Done(),
		Scheduler: training.NewStepLR(30, 0.1),
		Early:     training.NewEarlyStopping(5, 0),
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
