package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"mnemos/internal/model"
)

const (
	summaryFile  = "summary.json"
	progressFile = "progress.csv"
	specFile     = "result_spec.json"
)

// RunSummary is the JSON artifact describing one completed fit run.
type RunSummary struct {
	RunID      string  `json:"run_id"`
	CreatedAt  string  `json:"created_at_utc"`
	Fitter     string  `json:"fitter"`
	FitTimeSec float64 `json:"fit_time_sec"`
	NParms     int     `json:"n_parms"`
	FinalError float64 `json:"final_error"`
	EvalCount  int     `json:"eval_count"`
}

// WriteRunArtifacts materializes a run directory holding the summary,
// the progress curve, and the result spec. It returns the directory.
func WriteRunArtifacts(baseDir string, summary RunSummary, points []ProgressPoint, spec model.Spec) (string, error) {
	if summary.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}
	dir := filepath.Join(baseDir, summary.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, summaryFile), summary); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, specFile), spec); err != nil {
		return "", err
	}
	if err := writeProgressCSV(filepath.Join(dir, progressFile), points); err != nil {
		return "", err
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeProgressCSV(path string, points []ProgressPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"count", "error"}); err != nil {
		return err
	}
	for _, p := range points {
		record := []string{
			strconv.Itoa(p.Count),
			strconv.FormatFloat(p.Error, 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// ExportRunArtifacts copies a run's artifact files into outDir/runID and
// returns the destination directory.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{summaryFile, specFile, progressFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// ReadRunSummary loads the summary artifact from a run directory.
func ReadRunSummary(dir string) (RunSummary, error) {
	data, err := os.ReadFile(filepath.Join(dir, summaryFile))
	if err != nil {
		return RunSummary{}, err
	}
	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return RunSummary{}, fmt.Errorf("decode %s: %w", summaryFile, err)
	}
	return summary, nil
}
