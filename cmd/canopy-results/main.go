// Command canopy-results aggregates the best-weights evaluation metrics of
// every experiment under a parent directory into one table, written to
// results.md and printed as markdown and LaTeX.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/canopy-ml/canopy/internal/experiment"
)

func main() {
	parentDir := flag.String("parent_dir", "experiments", "directory containing experiment directories")
	flag.Parse()

	markdown, latex, err := experiment.Synthesize(*parentDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Print(markdown)
	fmt.Println()
	fmt.Print(latex)
	fmt.Printf("\nwrote %s\n", filepath.Join(*parentDir, "results.md"))
}
