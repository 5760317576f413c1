// Command canopy-train trains a residual network on a multi-label image
// dataset and writes checkpoints and metrics into the experiment directory.
//
// The experiment directory must contain a params.json. The data directory
// holds train.csv, dev.csv and an images/ directory shared by both splits.
package main

import (
	"flag"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/canopy-ml/canopy/internal/backend/cpu"
	"github.com/canopy-ml/canopy/internal/dataset"
	"github.com/canopy-ml/canopy/internal/experiment"
	"github.com/canopy-ml/canopy/internal/nn"
	"github.com/canopy-ml/canopy/internal/optim"
	"github.com/canopy-ml/canopy/internal/params"
	"github.com/canopy-ml/canopy/internal/resnet"
	"github.com/canopy-ml/canopy/internal/trainer"
)

func main() {
	modelDir := flag.String("model_dir", "experiments/base_model", "experiment directory containing params.json")
	dataDir := flag.String("data_dir", "data/amazon", "dataset directory with train.csv, dev.csv and images/")
	restoreFrom := flag.String("restore_from", "", "optional checkpoint directory or weights file to resume from")
	flag.Parse()

	// Log to stderr and to a train.log kept with the experiment.
	logCfg := zap.NewDevelopmentConfig()
	logCfg.OutputPaths = []string{"stderr", filepath.Join(*modelDir, "train.log")}
	logger, err := logCfg.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	p, err := params.Load(filepath.Join(*modelDir, experiment.ParamsFile))
	if err != nil {
		log.Fatalw("loading params", "error", err)
	}

	if err := trainer.CheckOverwrite(*modelDir, *restoreFrom); err != nil {
		log.Fatalw("refusing to overwrite", "error", err)
	}

	imagesDir := filepath.Join(*dataDir, "images")
	trainSamples, err := dataset.ReadManifest(filepath.Join(*dataDir, "train.csv"), imagesDir)
	if err != nil {
		log.Fatalw("loading train split", "error", err)
	}
	devSamples, err := dataset.ReadManifest(filepath.Join(*dataDir, "dev.csv"), imagesDir)
	if err != nil {
		log.Fatalw("loading dev split", "error", err)
	}

	vocab := dataset.BuildVocab(trainSamples)
	if devVocab := dataset.BuildVocab(devSamples); !vocab.Equal(devVocab) {
		log.Fatalw("train and dev tag vocabularies differ",
			"train_tags", vocab.Tags, "dev_tags", devVocab.Tags)
	}
	numClasses := vocab.Len()
	if p.NumClasses != 0 && p.NumClasses != numClasses {
		log.Fatalw("params num_classes disagrees with the dataset",
			"params", p.NumClasses, "dataset", numClasses)
	}

	store := nn.NewParamStore(p.Seed)
	model, err := resnet.NewModel(p.ModelConfig(numClasses), store, cpu.New())
	if err != nil {
		log.Fatalw("building model", "error", err)
	}
	log.Infow("model built",
		"version", p.Version, "bottleneck", p.Bottleneck,
		"num_classes", numClasses,
		"trainable_values", humanize.Comma(int64(store.NumValues())))

	var opt optim.Optimizer
	switch p.Optimizer {
	case "sgd":
		opt = optim.NewSGD(store, p.LearningRate, p.Momentum)
	default:
		opt = optim.NewAdam(store, p.LearningRate, 0, 0, 0)
	}

	t := trainer.New(model, store, opt, p, log)
	if *restoreFrom != "" {
		if err := t.Restore(*restoreFrom); err != nil {
			log.Fatalw("restoring weights", "error", err)
		}
	}

	trainDS := dataset.New(trainSamples, vocab, p.ImageSize, p.NumChannels)
	devDS := dataset.New(devSamples, vocab, p.ImageSize, p.NumChannels)
	log.Infow("starting training",
		"train_samples", trainDS.Len(), "dev_samples", devDS.Len(),
		"epochs", p.NumEpochs, "batch_size", p.BatchSize)

	if err := t.TrainAndEvaluate(trainDS, devDS, *modelDir); err != nil {
		log.Fatalw("training failed", "error", err)
	}
	log.Info("training complete")
}
