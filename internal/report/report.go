// Package report writes search results to disk and to the console.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/born-ml/chirality/internal/metrics"
	"github.com/born-ml/chirality/internal/search"
)

// ResultsFile is the name of the results CSV written by WriteResults.
const ResultsFile = "chirality_results.csv"

// WriteResults writes the best result as a one-row CSV into dir and returns
// the file path.
func WriteResults(dir string, res metrics.Result) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}
	path := filepath.Join(dir, ResultsFile)

	//nolint:gosec // G304: output path comes from configuration
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create results file")
	}
	if err := WriteCSV(f, res); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "close results file")
	}
	return path, nil
}

// WriteCSV writes res as a header row plus one data row.
func WriteCSV(w io.Writer, res metrics.Result) error {
	rows := []metrics.Result{res}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return errors.Wrap(err, "encode results")
	}
	return nil
}

// Summary renders one table row per trial, marking the best one.
func Summary(w io.Writer, trials []search.Trial, best search.Best) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Pooling", "Hidden", "Nodes", "Epochs",
		"Accuracy", "Precision", "Recall", "F1", "Score", "Time", ""})

	for _, tr := range trials {
		mark := ""
		if tr.Index == best.Index {
			mark = "best"
		}
		cfg := tr.Configuration
		table.Append([]string{
			strconv.Itoa(tr.Index + 1),
			string(cfg.Pooling),
			strconv.Itoa(cfg.HiddenLayers),
			strconv.Itoa(cfg.NodesPerLayer),
			strconv.Itoa(cfg.Epochs),
			formatMetric(tr.Result.Accuracy),
			formatMetric(tr.Result.Precision),
			formatMetric(tr.Result.Recall),
			formatMetric(tr.Result.F1),
			formatMetric(tr.Score),
			tr.Elapsed.Round(time.Millisecond).String(),
			mark,
		})
	}
	table.Render()
}

func formatMetric(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
