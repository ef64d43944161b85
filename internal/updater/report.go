package updater

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	reportFileName = "update-check.json"
	// DefaultReportMaxAge is how long a sweep report counts as fresh.
	DefaultReportMaxAge = 24 * time.Hour
)

// Outcome of a single update check.
type Outcome string

const (
	OutcomeUpToDate  Outcome = "up_to_date"
	OutcomeUpdated   Outcome = "updated"
	OutcomeAvailable Outcome = "available"
	OutcomeMissing   Outcome = "missing"
	OutcomeFailed    Outcome = "failed"
)

// Result is the outcome of checking one mod.
type Result struct {
	ID             string  `json:"id"`
	Repo           string  `json:"repo"`
	CurrentVersion string  `json:"current_version"`
	LatestVersion  string  `json:"latest_version,omitempty"`
	Outcome        Outcome `json:"outcome"`
	Error          string  `json:"error,omitempty"`
}

// Report summarizes one sweep.
type Report struct {
	CheckedAt time.Time `json:"checked_at"`
	Results   []Result  `json:"results"`
}

// Count returns how many results have the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Find returns the result for a mod ID.
func (r *Report) Find(id string) (Result, bool) {
	for _, res := range r.Results {
		if res.ID == id {
			return res, true
		}
	}
	return Result{}, false
}

// LoadReport reads the last sweep report from the config directory.
// Returns nil, nil if no sweep has been recorded yet.
func LoadReport(configDir string) (*Report, error) {
	path := filepath.Join(configDir, reportFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading update report: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing update report: %w", err)
	}
	return &report, nil
}

// SaveReport writes the sweep report to the config directory.
func SaveReport(configDir string, report *Report) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling update report: %w", err)
	}

	path := filepath.Join(configDir, reportFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing update report: %w", err)
	}
	return nil
}

// IsStale returns true if the report is older than maxAge or nil.
func IsStale(report *Report, maxAge time.Duration) bool {
	if report == nil {
		return true
	}
	return time.Since(report.CheckedAt) > maxAge
}
