// Package audit persists the structured record of an apply-mode run.
// Preview runs never write anything.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AlanSobenes/jira-label-sync/internal/deps"
)

// Summary is the four run-stat counters as they appear in the record.
type Summary struct {
	IssuesScanned     int `json:"issues_scanned"`
	DependenciesFound int `json:"dependencies_found"`
	LabelsAdded       int `json:"labels_added"`
	LabelsRemoved     int `json:"labels_removed"`
}

// Record is the audit document for one apply run.
type Record struct {
	RunID          string               `json:"run_id"`
	GeneratedAtUTC string               `json:"generated_at_utc"`
	Mode           string               `json:"mode"`
	JiraBaseURL    string               `json:"jira_base_url"`
	CoreFilterID   string               `json:"core_filter_id,omitempty"`
	CoreJQL        string               `json:"core_jql,omitempty"`
	CanonicalLabel string               `json:"canonical_label"`
	LabelAliases   []string             `json:"label_aliases,omitempty"`
	Summary        Summary              `json:"summary"`
	Changes        []deps.AppliedChange `json:"changes"`
}

// NewRunID derives the run id from the generation timestamp.
func NewRunID(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// Write persists the record as an indented JSON file under dir and
// returns the path written.
func Write(dir string, rec Record) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("audit: create dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("label_sync_audit_%s.json", rec.RunID))
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("audit: encode record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("audit: write %s: %w", path, err)
	}
	return path, nil
}
