package testrun

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// FileCoverage is the per-file breakdown of a coverage run.
type FileCoverage struct {
	Path    string
	Percent float64
}

// Report is the aggregate result of an instrumented test run.
type Report struct {
	Percent float64
	Files   []FileCoverage
}

// coverageJSON mirrors the relevant parts of the coverage tool's JSON report.
type coverageJSON struct {
	Totals struct {
		PercentCovered float64 `json:"percent_covered"`
	} `json:"totals"`
	Files map[string]struct {
		Summary struct {
			PercentCovered float64 `json:"percent_covered"`
		} `json:"summary"`
	} `json:"files"`
}

// ParseReport decodes a coverage JSON report into a Report with the
// per-file breakdown sorted by path.
func ParseReport(data []byte) (*Report, error) {
	var raw coverageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed coverage report: %w", err)
	}

	report := &Report{Percent: raw.Totals.PercentCovered}
	for path, f := range raw.Files {
		report.Files = append(report.Files, FileCoverage{Path: path, Percent: f.Summary.PercentCovered})
	}
	sort.Slice(report.Files, func(a, b int) bool {
		return report.Files[a].Path < report.Files[b].Path
	})
	return report, nil
}

// ParseReportFile reads and decodes a coverage JSON report from disk.
func ParseReportFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseReport(data)
}
