// Package trainer runs the train/evaluate loop of one experiment.
//
// Each epoch trains over the shuffled training split, evaluates on the
// dev split, always checkpoints the last weights, and checkpoints the best
// weights whenever the dev F2 score matches or beats the best seen so far.
package trainer

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/canopy-ml/canopy/internal/dataset"
	"github.com/canopy-ml/canopy/internal/experiment"
	"github.com/canopy-ml/canopy/internal/nn"
	"github.com/canopy-ml/canopy/internal/optim"
	"github.com/canopy-ml/canopy/internal/params"
	"github.com/canopy-ml/canopy/internal/resnet"
)

// Threshold is the sigmoid probability above which a label counts as
// predicted.
const Threshold = 0.5

// Trainer drives training and evaluation of one model.
type Trainer struct {
	model *resnet.Model
	store *nn.ParamStore
	opt   optim.Optimizer
	p     *params.Params
	log   *zap.SugaredLogger
}

// New creates a trainer. The optimizer must operate on the same store the
// model was built with.
func New(model *resnet.Model, store *nn.ParamStore, opt optim.Optimizer, p *params.Params, log *zap.SugaredLogger) *Trainer {
	return &Trainer{model: model, store: store, opt: opt, p: p, log: log}
}

// CheckOverwrite guards against clobbering a finished experiment: training
// into a model directory that already holds best weights requires an
// explicit restore.
func CheckOverwrite(modelDir, restoreFrom string) error {
	if restoreFrom != "" {
		return nil
	}
	best := filepath.Join(modelDir, experiment.BestWeightsDir)
	if _, err := os.Stat(best); err == nil {
		return errors.Errorf(
			"weights found in %s; pass --restore_from to continue training or use a fresh model dir", best)
	}
	return nil
}

// Restore loads weights from a checkpoint directory (or a weights file
// directly) into the parameter store.
func (t *Trainer) Restore(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "restoring weights")
	}
	if info.IsDir() {
		path = filepath.Join(path, experiment.WeightsFile)
	}
	t.log.Infow("restoring weights", "path", path)
	return t.store.Load(path)
}

// TrainAndEvaluate runs the full loop for p.NumEpochs epochs, writing
// checkpoints and metrics files into modelDir.
func (t *Trainer) TrainAndEvaluate(train, eval *dataset.Dataset, modelDir string) error {
	rng := rand.New(rand.NewSource(t.p.Seed + 1))
	bestF2 := -1.0

	for epoch := 1; epoch <= t.p.NumEpochs; epoch++ {
		trainMetrics, err := t.trainEpoch(train, rng, epoch)
		if err != nil {
			return errors.Wrapf(err, "training epoch %d", epoch)
		}
		t.log.Infow("train metrics", "epoch", epoch,
			"loss", trainMetrics.Loss, "precision", trainMetrics.Precision,
			"recall", trainMetrics.Recall, "f2", trainMetrics.F2)

		evalMetrics, err := t.Evaluate(eval)
		if err != nil {
			return errors.Wrapf(err, "evaluating epoch %d", epoch)
		}
		t.log.Infow("eval metrics", "epoch", epoch,
			"loss", evalMetrics.Loss, "precision", evalMetrics.Precision,
			"recall", evalMetrics.Recall, "f2", evalMetrics.F2)

		if err := t.checkpoint(modelDir, experiment.LastWeightsDir, experiment.LastMetricsFile, evalMetrics); err != nil {
			return err
		}
		if evalMetrics.F2 >= bestF2 {
			bestF2 = evalMetrics.F2
			t.log.Infow("new best f2, saving weights", "epoch", epoch, "f2", bestF2)
			if err := t.checkpoint(modelDir, experiment.BestWeightsDir, experiment.BestMetricsFile, evalMetrics); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Trainer) trainEpoch(ds *dataset.Dataset, rng *rand.Rand, epoch int) (experiment.Metrics, error) {
	batches := ds.Batches(t.p.BatchSize, true, rng)
	bar := progressbar.Default(int64(len(batches)), fmt.Sprintf("epoch %d/%d", epoch, t.p.NumEpochs))

	var counts nn.MultiLabelCounts
	var lossSum float64
	var numBatches int

	for _, batch := range batches {
		images, labels, err := ds.LoadBatch(batch)
		if err != nil {
			return experiment.Metrics{}, err
		}

		t.opt.ZeroGrad()
		logits := t.model.Forward(images, true)
		loss, grad := nn.SigmoidCrossEntropy(logits, labels)
		t.model.Backward(grad)
		t.opt.Step()

		lossSum += float64(loss)
		numBatches++
		counts.Update(logits, labels, Threshold)
		_ = bar.Add(1)
	}

	precision, recall := counts.Precision(), counts.Recall()
	return experiment.Metrics{
		Loss:      lossSum/float64(numBatches) + t.regLoss(),
		Precision: precision,
		Recall:    recall,
		F2:        nn.FBeta(precision, recall, 2),
	}, nil
}

// Evaluate runs the model in inference mode over the whole split.
func (t *Trainer) Evaluate(ds *dataset.Dataset) (experiment.Metrics, error) {
	batches := ds.Batches(t.p.BatchSize, false, nil)

	var counts nn.MultiLabelCounts
	var lossSum float64
	var numBatches int

	for _, batch := range batches {
		images, labels, err := ds.LoadBatch(batch)
		if err != nil {
			return experiment.Metrics{}, err
		}
		logits := t.model.Forward(images, false)
		loss, _ := nn.SigmoidCrossEntropy(logits, labels)
		lossSum += float64(loss)
		numBatches++
		counts.Update(logits, labels, Threshold)
	}

	precision, recall := counts.Precision(), counts.Recall()
	return experiment.Metrics{
		Loss:      lossSum / float64(numBatches),
		Precision: precision,
		Recall:    recall,
		F2:        nn.FBeta(precision, recall, 2),
	}, nil
}

// regLoss is the L2 penalty implied by the per-parameter weight decay,
// reported with the training loss so the logged number matches what the
// optimizer minimizes.
func (t *Trainer) regLoss() float64 {
	var total float64
	for _, p := range t.store.Trainable() {
		if p.WeightDecay == 0 {
			continue
		}
		var sq float64
		for _, w := range p.Value.Data() {
			sq += float64(w) * float64(w)
		}
		total += float64(p.WeightDecay) * sq / 2
	}
	return total
}

func (t *Trainer) checkpoint(modelDir, weightsDir, metricsFile string, m experiment.Metrics) error {
	dir := filepath.Join(modelDir, weightsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	if err := t.store.Save(filepath.Join(dir, experiment.WeightsFile)); err != nil {
		return err
	}
	return m.Save(filepath.Join(modelDir, metricsFile))
}
