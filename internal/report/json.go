package report

import (
	"encoding/json"

	"github.com/IvanShishkin/buckfinder/internal/detector"
	"github.com/IvanShishkin/buckfinder/pkg/models"
)

const matchThreshold = detector.ConfidenceThreshold

// JSONReport is the JSON document written for a scan
type JSONReport struct {
	*models.ScanSummary
	MatchCount  int     `json:"match_count"`
	DurationStr string  `json:"duration_human"`
	Threshold   float32 `json:"threshold"`
}

// renderJSON renders a JSON report
func renderJSON(s *models.ScanSummary) ([]byte, error) {
	report := &JSONReport{
		ScanSummary: s,
		MatchCount:  len(s.Matches),
		DurationStr: FormatDuration(s.Duration),
		Threshold:   matchThreshold,
	}

	return json.MarshalIndent(report, "", "  ")
}
