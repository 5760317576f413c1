// Package resnet builds deep residual networks for multi-label image
// classification.
//
// A model is assembled from residual blocks in one of four variants selected
// by the Bottleneck and Version fields of Config: the original
// post-activation ordering (v1) or the full pre-activation ordering (v2),
// each with either a two-convolution basic block or a three-convolution
// bottleneck block. The layout is always: initial convolution, optional max
// pool, a sequence of block layers that doubles the filter count at each
// stage, then batch norm, ReLU, average pool and a dense projection to the
// class logits.
package resnet

import (
	"github.com/pkg/errors"
)

// Config describes a residual network architecture. All fields mirror the
// model hyperparameters loaded from params.json.
type Config struct {
	// Bottleneck selects the three-convolution block variant; otherwise the
	// two-convolution basic block is used.
	Bottleneck bool

	// NumClasses is the number of independent labels (the logits width).
	NumClasses int

	// NumFilters is the filter count of the initial convolution and of the
	// first block layer; stage i uses NumFilters * 2^i.
	NumFilters int

	// KernelSize and ConvStride parametrize the initial convolution.
	KernelSize int
	ConvStride int

	// FirstPoolSize and FirstPoolStride parametrize the max pool after the
	// initial convolution. A FirstPoolSize of 0 skips the pool entirely.
	FirstPoolSize   int
	FirstPoolStride int

	// SecondPoolSize and SecondPoolStride parametrize the final average pool.
	SecondPoolSize   int
	SecondPoolStride int

	// BlockSizes[i] is the number of blocks in stage i; BlockStrides[i] is the
	// stride applied by the first block of that stage.
	BlockSizes   []int
	BlockStrides []int

	// FinalSize is the flattened feature width entering the dense layer. It
	// must equal the channel count after the last stage (times the spatial
	// size left by the average pool, normally 1x1).
	FinalSize int

	// Version selects post-activation (1) or pre-activation (2) blocks.
	Version int

	// WeightDecay is the L2 coefficient applied to convolution and dense
	// weights. Batch norm parameters and biases are never decayed.
	WeightDecay float32

	// ImageSize and NumChannels describe the expected input,
	// [batch, ImageSize, ImageSize, NumChannels].
	ImageSize   int
	NumChannels int
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Version != 1 && c.Version != 2 {
		return errors.Errorf("resnet version must be 1 or 2, got %d", c.Version)
	}
	if len(c.BlockSizes) == 0 {
		return errors.New("at least one block layer is required")
	}
	if len(c.BlockSizes) != len(c.BlockStrides) {
		return errors.Errorf("block_sizes has %d entries but block_strides has %d",
			len(c.BlockSizes), len(c.BlockStrides))
	}
	for i, n := range c.BlockSizes {
		if n <= 0 {
			return errors.Errorf("block_sizes[%d] must be positive, got %d", i, n)
		}
	}
	for i, s := range c.BlockStrides {
		if s <= 0 {
			return errors.Errorf("block_strides[%d] must be positive, got %d", i, s)
		}
	}
	if c.NumClasses <= 0 {
		return errors.Errorf("num_classes must be positive, got %d", c.NumClasses)
	}
	if c.NumFilters <= 0 {
		return errors.Errorf("num_filters must be positive, got %d", c.NumFilters)
	}
	if c.KernelSize <= 0 || c.ConvStride <= 0 {
		return errors.Errorf("invalid initial convolution: kernel %d, stride %d",
			c.KernelSize, c.ConvStride)
	}
	if c.FirstPoolSize < 0 {
		return errors.Errorf("first_pool_size must be non-negative, got %d", c.FirstPoolSize)
	}
	if c.FirstPoolSize > 0 && c.FirstPoolStride <= 0 {
		return errors.Errorf("first_pool_stride must be positive when pooling, got %d", c.FirstPoolStride)
	}
	if c.SecondPoolSize <= 0 || c.SecondPoolStride <= 0 {
		return errors.Errorf("invalid final pool: size %d, stride %d",
			c.SecondPoolSize, c.SecondPoolStride)
	}
	if c.ImageSize <= 0 {
		return errors.Errorf("image_size must be positive, got %d", c.ImageSize)
	}
	if c.NumChannels <= 0 {
		return errors.Errorf("num_channels must be positive, got %d", c.NumChannels)
	}
	return nil
}

// expansion is the channel multiplier of the bottleneck block's last
// convolution.
const expansion = 4

// stageFilters returns the block filter count and the block output channel
// count for stage i.
func (c *Config) stageFilters(i int) (filters, filtersOut int) {
	filters = c.NumFilters << i
	filtersOut = filters
	if c.Bottleneck {
		filtersOut = filters * expansion
	}
	return filters, filtersOut
}
