package summary

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// History is an ordered record of merged summary readings, one row per
// training step at which summaries were sampled.
type History struct {
	names []string
	steps []int64
	rows  [][]float64
}

func NewHistory(names []string) *History {
	return &History{names: names}
}

// Append records one sampled row. Metrics missing from the sample are
// written as NaN-free zeros so rows stay rectangular.
func (h *History) Append(step int64, values map[string]float64) {
	row := make([]float64, len(h.names))
	for i, name := range h.names {
		row[i] = values[name]
	}
	h.steps = append(h.steps, step)
	h.rows = append(h.rows, row)
}

func (h *History) Len() int { return len(h.rows) }

// WriteCSV persists the history as <dir>/<runID>_summaries.csv and returns
// the written path.
func (h *History) WriteCSV(dir, runID string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_summaries.csv", runID))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	w := csv.NewWriter(f)
	header := append([]string{"step"}, h.names...)
	if err := w.Write(header); err != nil {
		f.Close()
		return "", err
	}
	for i, row := range h.rows {
		record := make([]string, 0, len(row)+1)
		record = append(record, strconv.FormatInt(h.steps[i], 10))
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
