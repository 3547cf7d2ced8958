package models

import (
	"sort"
	"time"
)

// DetectionResult is the verdict for a single image
type DetectionResult struct {
	Path       string  `json:"path"`
	HasBuck    bool    `json:"has_buck"`
	Confidence float32 `json:"confidence"`
}

// ScanStatus represents the lifecycle state of a scan job
type ScanStatus string

const (
	StatusIdle     ScanStatus = "idle"
	StatusScanning ScanStatus = "scanning"
	StatusComplete ScanStatus = "complete"
	StatusError    ScanStatus = "error"
)

// ScanStart is returned when a scan has been accepted
type ScanStart struct {
	ScanID      string `json:"scan_id"`
	TotalImages int    `json:"total_images"`
}

// ScanProgress is a point-in-time snapshot of the live scan job
type ScanProgress struct {
	ScanID     string            `json:"scan_id,omitempty"`
	Folder     string            `json:"folder,omitempty"`
	Status     ScanStatus        `json:"status"`
	Processed  int               `json:"processed"`
	Total      int               `json:"total"`
	BuckImages []DetectionResult `json:"buck_images"`
	IsComplete bool              `json:"is_complete"`
	Cancelled  bool              `json:"cancelled,omitempty"`
	Warnings   int               `json:"warnings,omitempty"`
	Failed     []string          `json:"failed_images,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Percent returns the completion percentage of the snapshot
func (p *ScanProgress) Percent() float64 {
	if p == nil || p.Total == 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// ScanSummary contains the complete results of a finished (or cancelled) scan
type ScanSummary struct {
	ScanID      string            `json:"scan_id"`
	ScanPath    string            `json:"scan_path"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Duration    time.Duration     `json:"duration"`
	TotalImages int               `json:"total_images"`
	Processed   int               `json:"processed"`
	Cancelled   bool              `json:"cancelled"`
	Matches     []DetectionResult `json:"matches"`
	Failed      []string          `json:"failed_images,omitempty"`
	Version     string            `json:"version"`

	// Report path
	ReportPath string `json:"report_path,omitempty"`
}

// RankByConfidence returns a copy of results ordered by descending confidence.
// Equal confidences keep their processing order.
func RankByConfidence(results []DetectionResult) []DetectionResult {
	ranked := make([]DetectionResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked
}

// ExportFailure describes a single file that could not be exported
type ExportFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ExportResult is returned by a completed export
type ExportResult struct {
	SavedPath string          `json:"saved_path"`
	Copied    int             `json:"copied"`
	Bytes     int64           `json:"bytes"`
	Files     []string        `json:"files"`
	Failed    []ExportFailure `json:"failed,omitempty"`
	Message   string          `json:"message"`
}
