package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSON = `{
	"learning_rate": 0.001,
	"batch_size": 32,
	"num_epochs": 10,
	"image_size": 64,
	"bottleneck": false,
	"num_filters": 32,
	"kernel_size": 3,
	"conv_stride": 1,
	"first_pool_size": 0,
	"first_pool_stride": 0,
	"second_pool_size": 8,
	"second_pool_stride": 8,
	"block_sizes": [2, 2, 2],
	"block_strides": [1, 2, 2],
	"final_size": 128,
	"version": 2,
	"weight_decay": 0.0001
}`

func writeParams(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	p, err := Load(writeParams(t, validJSON))
	require.NoError(t, err)

	assert.Equal(t, float32(0.001), p.LearningRate)
	assert.Equal(t, 32, p.BatchSize)
	assert.Equal(t, []int{2, 2, 2}, p.BlockSizes)
	assert.Equal(t, 2, p.Version)
}

func TestLoad_Defaults(t *testing.T) {
	p, err := Load(writeParams(t, validJSON))
	require.NoError(t, err)

	assert.Equal(t, 3, p.NumChannels)
	assert.Equal(t, "adam", p.Optimizer)
	assert.Equal(t, int64(DefaultSeed), p.Seed)
	assert.Equal(t, 0, p.NumClasses)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = Load(writeParams(t, "{not json"))
	require.Error(t, err)

	_, err = Load(writeParams(t, `{"learning_rate": 0, "batch_size": 32, "num_epochs": 1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "learning_rate")

	_, err = Load(writeParams(t, `{"learning_rate": 0.1, "batch_size": 32, "num_epochs": 1, "optimizer": "rmsprop"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "optimizer")
}

func TestModelConfig(t *testing.T) {
	p, err := Load(writeParams(t, validJSON))
	require.NoError(t, err)

	cfg := p.ModelConfig(17)
	assert.Equal(t, 17, cfg.NumClasses)
	assert.Equal(t, 32, cfg.NumFilters)
	assert.Equal(t, []int{1, 2, 2}, cfg.BlockStrides)
	assert.Equal(t, 64, cfg.ImageSize)
	assert.Equal(t, 3, cfg.NumChannels)
	assert.Equal(t, float32(0.0001), cfg.WeightDecay)
}
