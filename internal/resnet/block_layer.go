package resnet

import (
	"fmt"

	"github.com/canopy-ml/canopy/internal/backend/cpu"
	"github.com/canopy-ml/canopy/internal/nn"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// blockLayer is one stage of the network: a run of blocks sharing a filter
// count. Only the first block downsamples (with the stage stride) and
// projects the shortcut; every later block has stride 1 and an identity
// shortcut. The first block always projects, since it changes the channel
// count, the spatial size, or both.
type blockLayer struct {
	blocks      []block
	stride      int
	outChannels int
}

// newBlockLayer builds stage index (0-based) under the path
// "block_layer<index+1>", with numBlocks blocks of filters filters.
func newBlockLayer(cfg *Config, store *nn.ParamStore, backend *cpu.Backend, index, inChannels, numBlocks, stride int) *blockLayer {
	filters, filtersOut := cfg.stageFilters(index)
	base := fmt.Sprintf("block_layer%d", index+1)

	blocks := make([]block, numBlocks)
	blocks[0] = newBlock(cfg, store, backend, base+"/block0", inChannels, filters, stride, true)
	for i := 1; i < numBlocks; i++ {
		path := fmt.Sprintf("%s/block%d", base, i)
		blocks[i] = newBlock(cfg, store, backend, path, filtersOut, filters, 1, false)
	}

	return &blockLayer{blocks: blocks, stride: stride, outChannels: filtersOut}
}

func (l *blockLayer) Forward(input *tensor.Tensor, training bool) *tensor.Tensor {
	for _, b := range l.blocks {
		input = b.Forward(input, training)
	}
	return input
}

func (l *blockLayer) Backward(grad *tensor.Tensor) *tensor.Tensor {
	for i := len(l.blocks) - 1; i >= 0; i-- {
		grad = l.blocks[i].Backward(grad)
	}
	return grad
}

// OutputSize computes the spatial size after the stage's downsampling.
func (l *blockLayer) OutputSize(in int) int {
	return (in + l.stride - 1) / l.stride
}
