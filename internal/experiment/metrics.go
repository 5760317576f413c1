// Package experiment manages experiment directories: the metrics files
// written after evaluation and the aggregation of many experiments into one
// results report.
package experiment

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// File names inside an experiment directory.
const (
	ParamsFile      = "params.json"
	BestWeightsDir  = "best_weights"
	LastWeightsDir  = "last_weights"
	WeightsFile     = "weights.gob"
	BestMetricsFile = "metrics_eval_best_weights.json"
	LastMetricsFile = "metrics_eval_last_weights.json"
)

// Metrics is one evaluation result. F2 is the score experiments are ranked
// and checkpointed by: recall counts four times as much as precision.
type Metrics struct {
	Loss      float64 `json:"loss"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F2        float64 `json:"f2"`
}

// Save writes the metrics as indented JSON.
func (m Metrics) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encoding metrics")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "writing metrics to %s", path)
	}
	return nil
}

// LoadMetrics reads a metrics JSON file.
func LoadMetrics(path string) (Metrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metrics{}, errors.Wrap(err, "reading metrics")
	}
	var m Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return Metrics{}, errors.Wrapf(err, "parsing %s", path)
	}
	return m, nil
}
