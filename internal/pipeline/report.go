package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"thumbsmith/internal/fileutil"
)

// Failure names one entry that ended the run in the failed state.
type Failure struct {
	GroupKey string `json:"group_key"`
	EntityID string `json:"entity_id"`
	Reason   string `json:"reason"`
}

// GroupReport is the per-group breakdown in the run report.
type GroupReport struct {
	GroupKey        string `json:"group_key"`
	DisplayName     string `json:"display_name"`
	TotalEntries    int    `json:"total_entries"`
	Completed       int    `json:"completed"`
	Failed          int    `json:"failed"`
	CatalogComplete bool   `json:"catalog_complete"`
	OutputDirectory string `json:"output_directory"`
}

// Report is the machine-readable summary emitted at the end of a run.
// Completed and Failed are derived from the checkpoint store, so an
// idempotent resume reports the same counts as the run it resumes.
type Report struct {
	RunID          string        `json:"run_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	TotalEntries   int           `json:"total_entries"`
	Completed      int           `json:"completed"`
	Failed         int           `json:"failed"`
	Skipped        int           `json:"skipped"`
	Duplicates     int           `json:"duplicates"`
	Groups         []GroupReport `json:"groups"`
	Failures       []Failure     `json:"failures"`
}

// Write emits the report as JSON under dir, named by run identifier, and
// returns the path written.
func (r *Report) Write(dir string) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run report: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%s.json", r.RunID))
	if err := fileutil.WriteFileDurable(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write run report: %w", err)
	}
	return path, nil
}

// ReadReport loads a previously written run report.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse run report %s: %w", path, err)
	}
	return &report, nil
}

// IndexEntry maps one catalog entry to its derived artifact for the metadata
// index written alongside the report.
type IndexEntry struct {
	GroupKey    string `json:"group_key"`
	EntityID    string `json:"entity_id"`
	DisplayName string `json:"display_name"`
	Artifact    string `json:"artifact"`
	Exists      bool   `json:"exists"`
}

// writeCatalogIndex emits the per-entry artifact index to dir as both JSON
// and CSV. The index lets downstream consumers resolve an entry to its
// artifact without rederiving filenames.
func writeCatalogIndex(dir string, entries []IndexEntry) (string, error) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode catalog index: %w", err)
	}
	path := filepath.Join(dir, "catalog-index.json")
	if err := fileutil.WriteFileDurable(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write catalog index: %w", err)
	}
	if err := writeCatalogIndexCSV(filepath.Join(dir, "catalog-index.csv"), entries); err != nil {
		return "", err
	}
	return path, nil
}

func writeCatalogIndexCSV(path string, entries []IndexEntry) error {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"group_key", "entity_id", "display_name", "artifact", "exists"}); err != nil {
		return fmt.Errorf("encode catalog index csv: %w", err)
	}
	for _, entry := range entries {
		row := []string{entry.GroupKey, entry.EntityID, entry.DisplayName, entry.Artifact, strconv.FormatBool(entry.Exists)}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("encode catalog index csv: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("encode catalog index csv: %w", err)
	}
	if err := fileutil.WriteFileDurable(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write catalog index csv: %w", err)
	}
	return nil
}
