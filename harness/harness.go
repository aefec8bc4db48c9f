// Package harness wires one complete coursework run: data download and
// split, model training with tracking and checkpointing, clean test
// evaluation and the out-of-distribution submission file. Each app binary
// supplies its variant-specific pieces and delegates the rest here.
package harness

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/tsawler/go-cifar/checkpoints"
	"github.com/tsawler/go-cifar/config"
	"github.com/tsawler/go-cifar/dataset"
	"github.com/tsawler/go-cifar/eval"
	"github.com/tsawler/go-cifar/models"
	"github.com/tsawler/go-cifar/track"
	"github.com/tsawler/go-cifar/training"
	"github.com/tsawler/go-cifar/transform"
)

// Experiment bundles the variant-specific pieces of one run.
type Experiment struct {
	Config    *config.Config
	Build     models.BuildFn
	Optimizer optimizers.Interface
	Scheduler training.LRScheduler    // nil keeps the base rate constant
	Early     *training.EarlyStopping // nil disables early stopping

	// Normalize is applied to every split; Augment only to the training
	// split, before normalization.
	Normalize transform.Transform
	Augment   transform.Transform
}

// Run executes the experiment end to end: train, evaluate on the clean test
// set, and write the OOD submission when an OOD directory is configured.
func Run(exp *Experiment) error {
	cfg := exp.Config
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	klog.Infof("configuration:\n%s", cfg)

	backend, device, err := config.ProbeBackend(cfg.Device)
	if err != nil {
		return err
	}
	klog.Infof("using device %s", device)

	trainSet, err := dataset.LoadTrain(cfg.DataDir)
	if err != nil {
		return errors.Wrap(err, "failed to load training data")
	}
	trainIdx, valIdx := dataset.Split(trainSet.Len(), cfg.Seed)
	klog.Infof("split %d samples into %d train / %d validation", trainSet.Len(), len(trainIdx), len(valIdx))

	trainLoader := dataset.NewLoader(
		dataset.NewSubset(trainSet, trainIdx),
		cfg.BatchSize, true, cfg.NumWorkers,
		TrainPipeline(exp.Augment, exp.Normalize), cfg.Seed)
	valLoader := dataset.NewLoader(
		dataset.NewSubset(trainSet, valIdx),
		cfg.BatchSize, false, cfg.NumWorkers,
		exp.Normalize, cfg.Seed)

	ctx := context.New()
	accuracy := metrics.NewSparseCategoricalAccuracy("accuracy", "acc")
	trainer := train.NewTrainer(backend, ctx, train.ModelFn(exp.Build),
		losses.SparseCategoricalCrossEntropyLogits,
		exp.Optimizer,
		[]metrics.Interface{accuracy},
		[]metrics.Interface{accuracy})

	client := track.NewClient(trackConfig(cfg))
	if client.Enabled() {
		if err := client.CheckHealth(); err != nil {
			return errors.Wrap(err, "tracking service unreachable")
		}
	}
	run, err := client.StartRun(cfg.Model, cfg.Map())
	if err != nil {
		return errors.Wrap(err, "failed to start tracking run")
	}
	if err := run.Watch(cfg.Model); err != nil {
		return errors.Wrap(err, "failed to register model watch")
	}

	saver := checkpoints.NewBestSaver(cfg.CheckpointDir, cfg.Model, checkpoints.BestAccuracy)
	saver.Uploader = run

	session := &training.Session{
		Stepper:     trainer,
		Ctx:         ctx,
		Name:        cfg.Model,
		Epochs:      cfg.Epochs,
		BaseLR:      cfg.LearningRate,
		Scheduler:   exp.Scheduler,
		Early:       exp.Early,
		Tracker:     run,
		Checkpoints: saver,
		Verbose:     true,
	}
	result, err := session.Fit(trainLoader, valLoader)
	if err != nil {
		return errors.Wrap(err, "training failed")
	}
	klog.Infof("%s: trained %d epochs (early stop: %v), best val_acc=%.2f%%",
		cfg.Model, result.EpochsRun, result.StoppedEarly, saver.Best())

	if err := evaluate(exp, backend, run); err != nil {
		return err
	}

	if err := run.Finish(); err != nil {
		return errors.Wrap(err, "failed to finish tracking run")
	}
	return nil
}

// evaluate restores the best checkpoint into a fresh context and runs the
// clean test set plus, when configured, the OOD set.
func evaluate(exp *Experiment, backend backends.Backend, run *track.Run) error {
	cfg := exp.Config

	evalCtx := context.New()
	if err := checkpoints.Load(evalCtx, cfg.CheckpointDir); err != nil {
		return errors.Wrap(err, "failed to restore best checkpoint")
	}
	predictor, err := eval.NewPredictor(backend, evalCtx, exp.Build)
	if err != nil {
		return err
	}

	testSet, err := dataset.LoadTest(cfg.DataDir)
	if err != nil {
		return errors.Wrap(err, "failed to load test data")
	}
	testLoader := dataset.NewLoader(testSet, cfg.BatchSize, false, cfg.NumWorkers, exp.Normalize, cfg.Seed)
	clean, err := eval.EvaluateClean(predictor, testLoader)
	if err != nil {
		return errors.Wrap(err, "clean evaluation failed")
	}
	klog.Infof("%s: clean test accuracy %.2f%% (%d/%d)",
		cfg.Model, clean.Accuracy(), clean.Correct, clean.Total)

	if names, err := dataset.FineLabelNames(cfg.DataDir); err != nil {
		klog.Warningf("class names unavailable, skipping per-class summary: %v", err)
	} else {
		for _, c := range WeakestClasses(clean.Confusion, names, 5) {
			klog.Infof("%s: weakest class %q recall %.2f%%", cfg.Model, c.Name, c.Recall)
		}
	}

	if cfg.OODDir == "" {
		return nil
	}

	ood, err := dataset.LoadOOD(cfg.OODDir)
	if err != nil {
		return errors.Wrap(err, "failed to load OOD data")
	}
	oodLoader := dataset.NewLoader(ood, cfg.BatchSize, false, cfg.NumWorkers, exp.Normalize, cfg.Seed)
	preds, err := eval.EvaluateOOD(predictor, oodLoader)
	if err != nil {
		return errors.Wrap(err, "OOD evaluation failed")
	}

	path := "submission_ood.csv"
	if err := eval.SaveSubmission(path, SubmissionIDs(ood), preds); err != nil {
		return err
	}
	klog.Infof("%s: wrote %d OOD predictions to %s", cfg.Model, len(preds), path)

	if err := run.UploadArtifact(cfg.Model, path); err != nil {
		klog.Warningf("failed to upload submission artifact: %v", err)
	}
	return nil
}

// TrainPipeline composes the training-split transform chain: augmentation
// first, normalization last.
func TrainPipeline(augment, normalize transform.Transform) transform.Transform {
	if augment == nil {
		return normalize
	}
	if normalize == nil {
		return augment
	}
	return transform.Compose{augment, normalize}
}

// ClassScore pairs a class name with its recall percentage.
type ClassScore struct {
	Name   string
	Recall float64
}

// WeakestClasses returns the n classes with the lowest recall, worst first.
// Names index the matrix rows; classes beyond the name list are skipped.
func WeakestClasses(cm *eval.ConfusionMatrix, names []string, n int) []ClassScore {
	scores := make([]ClassScore, 0, cm.NumClasses)
	for class := 0; class < cm.NumClasses && class < len(names); class++ {
		scores = append(scores, ClassScore{Name: names[class], Recall: cm.ClassRecall(class)})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Recall < scores[j].Recall })
	if n < len(scores) {
		scores = scores[:n]
	}
	return scores
}

// SubmissionIDs derives one submission id per OOD sample from its file name,
// extension stripped, in iteration order.
func SubmissionIDs(ood *dataset.OOD) []string {
	ids := make([]string, ood.Len())
	for i := range ids {
		name := filepath.Base(ood.File(i))
		ids[i] = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return ids
}

func trackConfig(cfg *config.Config) track.Config {
	tc := track.DefaultConfig()
	tc.BaseURL = cfg.TrackerURL
	tc.Project = cfg.TrackerProject
	return tc
}
