package experiment

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/canopy-ml/canopy/internal/nn"
)

// Result pairs an experiment directory with its best-weights evaluation.
type Result struct {
	// Dir is the experiment directory relative to the aggregation root, or
	// "." for the root itself.
	Dir     string
	Metrics Metrics
}

// Collect walks parentDir recursively and loads the best-weights metrics of
// every experiment directory found, sorted by directory name.
func Collect(parentDir string) ([]Result, error) {
	var results []Result
	err := filepath.WalkDir(parentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		metricsPath := filepath.Join(path, BestMetricsFile)
		if _, err := os.Stat(metricsPath); err != nil {
			return nil
		}
		m, err := LoadMetrics(metricsPath)
		if err != nil {
			return err
		}
		// Older metrics files carry only precision and recall. The score is
		// always derived from them, never trusted from the file.
		m.F2 = nn.FBeta(m.Precision, m.Recall, 2)
		rel, err := filepath.Rel(parentDir, path)
		if err != nil {
			return err
		}
		results = append(results, Result{Dir: rel, Metrics: m})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "collecting metrics under %s", parentDir)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Dir < results[j].Dir })
	return results, nil
}

var tableHeaders = []string{"experiment", "loss", "precision", "recall", "f2"}

func (r Result) row() []string {
	return []string{
		r.Dir,
		fmt.Sprintf("%.4f", r.Metrics.Loss),
		fmt.Sprintf("%.4f", r.Metrics.Precision),
		fmt.Sprintf("%.4f", r.Metrics.Recall),
		fmt.Sprintf("%.4f", r.Metrics.F2),
	}
}

// MarkdownTable renders the results as a pipe-delimited markdown table.
func MarkdownTable(results []Result) string {
	widths := make([]int, len(tableHeaders))
	for i, h := range tableHeaders {
		widths[i] = len(h)
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := r.row()
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
		rows = append(rows, row)
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i, cell := range cells {
			fmt.Fprintf(&b, " %-*s |", widths[i], cell)
		}
		b.WriteString("\n")
	}
	writeRow(tableHeaders)
	b.WriteString("|")
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteString("|")
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}

// LaTeXTable renders the results as a tabular environment with bold headers,
// ready to paste into a report.
func LaTeXTable(results []Result) string {
	var b strings.Builder
	b.WriteString("\\begin{tabular}{| l | r | r | r | r |}\n\\hline\n")
	bold := make([]string, len(tableHeaders))
	for i, h := range tableHeaders {
		bold[i] = "\\textbf{" + h + "}"
	}
	b.WriteString(strings.Join(bold, " & "))
	b.WriteString(" \\\\\n\\hline\n")
	for _, r := range results {
		row := r.row()
		row[0] = escapeLaTeX(row[0])
		b.WriteString(strings.Join(row, " & "))
		b.WriteString(" \\\\\n")
	}
	b.WriteString("\\hline\n\\end{tabular}\n")
	return b.String()
}

func escapeLaTeX(s string) string {
	return strings.NewReplacer("_", "\\_", "&", "\\&", "%", "\\%", "#", "\\#").Replace(s)
}

// Synthesize aggregates every experiment under parentDir, writes results.md
// there, and returns the rendered markdown and LaTeX tables.
func Synthesize(parentDir string) (markdown, latex string, err error) {
	results, err := Collect(parentDir)
	if err != nil {
		return "", "", err
	}
	if len(results) == 0 {
		return "", "", errors.Errorf("no %s files found under %s", BestMetricsFile, parentDir)
	}

	markdown = MarkdownTable(results)
	latex = LaTeXTable(results)

	out := filepath.Join(parentDir, "results.md")
	if err := os.WriteFile(out, []byte(markdown), 0o644); err != nil {
		return "", "", errors.Wrapf(err, "writing %s", out)
	}
	return markdown, latex, nil
}
