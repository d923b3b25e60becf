package loaders

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
)

// tableSidecar is the structured form a table is serialized to. Keeping the
// cells instead of a rendered string lets the frontend re-render them.
type tableSidecar struct {
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows"`
}

// writeTableSidecar serializes a table under the media directory and returns
// the sidecar path.
func writeTableSidecar(dir string, idx int, headers []string, rows [][]string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("table_%d.json", idx))

	data, err := json.MarshalIndent(tableSidecar{Headers: headers, Rows: rows}, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write table sidecar: %w", err)
	}
	return path, nil
}

// renderChartSidecar renders one numeric series to a PNG under the media
// directory and returns the image path.
func renderChartSidecar(dir string, idx int, values []float64) (string, error) {
	if len(values) < 2 {
		return "", fmt.Errorf("chart needs at least 2 values, got %d", len(values))
	}

	xs := make([]float64, len(values))
	for i := range values {
		xs[i] = float64(i)
	}
	graph := chart.Chart{
		Series: []chart.Series{
			chart.ContinuousSeries{XValues: xs, YValues: values},
		},
	}

	path := filepath.Join(dir, fmt.Sprintf("chart_%d.png", idx))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create chart sidecar: %w", err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	return path, nil
}

// parseChartValues reads a chart placeholder body: numbers separated by
// commas and/or newlines. Non-numeric tokens are skipped.
func parseChartValues(body string) []float64 {
	fields := strings.FieldsFunc(body, func(r rune) bool {
		return r == ',' || r == '\n' || r == ' ' || r == '\t' || r == '\r'
	})

	var values []float64
	for _, f := range fields {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			values = append(values, v)
		}
	}
	return values
}
