package experiment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_SaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), BestMetricsFile)
	m := Metrics{Loss: 0.25, Precision: 0.9, Recall: 0.8, F2: 0.8182}

	require.NoError(t, m.Save(path))
	loaded, err := LoadMetrics(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
}

func TestLoadMetrics_Errors(t *testing.T) {
	_, err := LoadMetrics(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadMetrics(path)
	require.Error(t, err)
}

func writeExperiment(t *testing.T, dir string, m Metrics) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, m.Save(filepath.Join(dir, BestMetricsFile)))
}

func TestCollect_WalksRecursively(t *testing.T) {
	parent := t.TempDir()
	writeExperiment(t, filepath.Join(parent, "base_model"), Metrics{Precision: 0.5, Recall: 0.5})
	writeExperiment(t, filepath.Join(parent, "learning_rate", "lr_0.01"), Metrics{Precision: 0.9, Recall: 0.8})
	writeExperiment(t, filepath.Join(parent, "learning_rate", "lr_0.1"), Metrics{Precision: 0.6, Recall: 0.6})
	// A directory without metrics is skipped, not an error.
	require.NoError(t, os.MkdirAll(filepath.Join(parent, "in_progress"), 0o755))

	results, err := Collect(parent)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "base_model", results[0].Dir)
	assert.Equal(t, filepath.Join("learning_rate", "lr_0.01"), results[1].Dir)
	assert.Equal(t, filepath.Join("learning_rate", "lr_0.1"), results[2].Dir)
	assert.InDelta(t, 5*0.9*0.8/(4*0.9+0.8), results[1].Metrics.F2, 1e-9)
}

func TestCollect_DerivesF2FromPrecisionRecall(t *testing.T) {
	parent := t.TempDir()

	// A metrics file without an f2 key, as evaluation runs used to write.
	legacy := filepath.Join(parent, "legacy")
	require.NoError(t, os.MkdirAll(legacy, 0o755))
	raw := []byte(`{"loss": 0.3, "precision": 0.8, "recall": 0.5}`)
	require.NoError(t, os.WriteFile(filepath.Join(legacy, BestMetricsFile), raw, 0o644))

	// A stored f2 is ignored in favor of the derived score.
	writeExperiment(t, filepath.Join(parent, "stale"),
		Metrics{Precision: 0.8, Recall: 0.5, F2: 0.99})

	results, err := Collect(parent)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, 0.5405405, results[0].Metrics.F2, 1e-6)
	assert.InDelta(t, 0.5405405, results[1].Metrics.F2, 1e-6)
}

func TestMarkdownTable(t *testing.T) {
	table := MarkdownTable([]Result{
		{Dir: "base_model", Metrics: Metrics{Loss: 0.5, Precision: 0.9, Recall: 0.8, F2: 0.81}},
	})

	assert.Contains(t, table, "| experiment")
	assert.Contains(t, table, "| f2")
	assert.Contains(t, table, "base_model")
	assert.Contains(t, table, "0.8100")
	// Header separator row.
	assert.Contains(t, table, "|---")
}

func TestLaTeXTable(t *testing.T) {
	table := LaTeXTable([]Result{
		{Dir: "lr_0.01", Metrics: Metrics{F2: 0.7}},
	})

	assert.Contains(t, table, "\\begin{tabular}{| l | r | r | r | r |}")
	assert.Contains(t, table, "\\textbf{experiment}")
	assert.Contains(t, table, "lr\\_0.01")
	assert.Contains(t, table, "0.7000")
	assert.Contains(t, table, "\\end{tabular}")
}

func TestSynthesize_WritesResults(t *testing.T) {
	parent := t.TempDir()
	writeExperiment(t, filepath.Join(parent, "exp1"), Metrics{F2: 0.5})

	markdown, latex, err := Synthesize(parent)
	require.NoError(t, err)
	assert.NotEmpty(t, markdown)
	assert.NotEmpty(t, latex)

	data, err := os.ReadFile(filepath.Join(parent, "results.md"))
	require.NoError(t, err)
	assert.Equal(t, markdown, string(data))
}

func TestSynthesize_NoExperiments(t *testing.T) {
	_, _, err := Synthesize(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no")
}
