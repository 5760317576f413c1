// Package params loads experiment hyperparameters from params.json files.
//
// Every experiment directory carries one params.json describing both the
// training setup (learning rate, batch size, epochs) and the full model
// architecture, so an experiment is reproducible from its directory alone.
package params

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/canopy-ml/canopy/internal/resnet"
)

// Params holds the hyperparameters of one experiment.
type Params struct {
	LearningRate float32 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`
	NumEpochs    int     `json:"num_epochs"`

	// Optimizer selects "adam" (default) or "sgd"; Momentum applies to sgd.
	Optimizer string  `json:"optimizer,omitempty"`
	Momentum  float32 `json:"momentum,omitempty"`

	ImageSize   int `json:"image_size"`
	NumChannels int `json:"num_channels,omitempty"`

	Bottleneck       bool    `json:"bottleneck"`
	NumFilters       int     `json:"num_filters"`
	KernelSize       int     `json:"kernel_size"`
	ConvStride       int     `json:"conv_stride"`
	FirstPoolSize    int     `json:"first_pool_size"`
	FirstPoolStride  int     `json:"first_pool_stride"`
	SecondPoolSize   int     `json:"second_pool_size"`
	SecondPoolStride int     `json:"second_pool_stride"`
	BlockSizes       []int   `json:"block_sizes"`
	BlockStrides     []int   `json:"block_strides"`
	FinalSize        int     `json:"final_size"`
	Version          int     `json:"version"`
	WeightDecay      float32 `json:"weight_decay"`

	// NumClasses is optional; when zero it is taken from the dataset's tag
	// vocabulary.
	NumClasses int `json:"num_classes,omitempty"`

	// Seed drives weight initialization and shuffling. Zero means the
	// default seed.
	Seed int64 `json:"seed,omitempty"`
}

// DefaultSeed is used when params.json does not set one.
const DefaultSeed = 230

// Load reads and validates a params.json file.
func Load(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading params")
	}

	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	if p.NumChannels == 0 {
		p.NumChannels = 3
	}
	if p.Optimizer == "" {
		p.Optimizer = "adam"
	}
	if p.Seed == 0 {
		p.Seed = DefaultSeed
	}

	if err := p.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid params in %s", path)
	}
	return &p, nil
}

func (p *Params) validate() error {
	if p.LearningRate <= 0 {
		return errors.Errorf("learning_rate must be positive, got %g", p.LearningRate)
	}
	if p.BatchSize <= 0 {
		return errors.Errorf("batch_size must be positive, got %d", p.BatchSize)
	}
	if p.NumEpochs <= 0 {
		return errors.Errorf("num_epochs must be positive, got %d", p.NumEpochs)
	}
	if p.Optimizer != "adam" && p.Optimizer != "sgd" {
		return errors.Errorf("optimizer must be adam or sgd, got %q", p.Optimizer)
	}
	// Architecture fields are validated by resnet.Config.
	return nil
}

// ModelConfig converts the architecture fields to a resnet.Config with
// numClasses output labels.
func (p *Params) ModelConfig(numClasses int) resnet.Config {
	return resnet.Config{
		Bottleneck:       p.Bottleneck,
		NumClasses:       numClasses,
		NumFilters:       p.NumFilters,
		KernelSize:       p.KernelSize,
		ConvStride:       p.ConvStride,
		FirstPoolSize:    p.FirstPoolSize,
		FirstPoolStride:  p.FirstPoolStride,
		SecondPoolSize:   p.SecondPoolSize,
		SecondPoolStride: p.SecondPoolStride,
		BlockSizes:       p.BlockSizes,
		BlockStrides:     p.BlockStrides,
		FinalSize:        p.FinalSize,
		Version:          p.Version,
		WeightDecay:      p.WeightDecay,
		ImageSize:        p.ImageSize,
		NumChannels:      p.NumChannels,
	}
}
