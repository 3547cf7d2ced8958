package report

import (
	"fmt"
	"strings"

	"github.com/IvanShishkin/buckfinder/pkg/models"
)

// renderText renders a plain text report
func renderText(s *models.ScanSummary) []byte {
	var sb strings.Builder

	// Header
	sb.WriteString("=" + strings.Repeat("=", 78) + "\n")
	sb.WriteString(fmt.Sprintf("  BUCKFINDER SCAN REPORT v%s\n", s.Version))
	sb.WriteString("=" + strings.Repeat("=", 78) + "\n\n")

	// Summary
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 79) + "\n")
	sb.WriteString(fmt.Sprintf("Scan ID:          %s\n", s.ScanID))
	sb.WriteString(fmt.Sprintf("Folder:           %s\n", s.ScanPath))
	sb.WriteString(fmt.Sprintf("Start Time:       %s\n", s.StartTime.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("End Time:         %s\n", s.EndTime.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("Duration:         %s\n", FormatDuration(s.Duration)))
	sb.WriteString(fmt.Sprintf("Total Images:     %d\n", s.TotalImages))
	sb.WriteString(fmt.Sprintf("Processed:        %d\n", s.Processed))
	sb.WriteString(fmt.Sprintf("Unreadable:       %d\n", len(s.Failed)))
	if s.Cancelled {
		sb.WriteString("Status:           CANCELLED\n")
	}
	sb.WriteString(fmt.Sprintf("BUCKS FOUND:      %d\n", len(s.Matches)))
	sb.WriteString("\n")

	if len(s.Matches) > 0 {
		sb.WriteString(fmt.Sprintf("MATCHES (confidence >= %s)\n", FormatConfidence(matchThreshold)))
		sb.WriteString(strings.Repeat("=", 79) + "\n")
		for i, m := range s.Matches {
			sb.WriteString(fmt.Sprintf("[%3d] %7s  %s\n", i+1, FormatConfidence(m.Confidence), cleanPath(m.Path, 64)))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No bucks found.\n\n")
	}

	if len(s.Failed) > 0 {
		sb.WriteString("UNREADABLE IMAGES\n")
		sb.WriteString(strings.Repeat("-", 79) + "\n")
		for _, path := range s.Failed {
			sb.WriteString(path + "\n")
		}
		sb.WriteString("\n")
	}

	// Footer
	sb.WriteString(strings.Repeat("=", 79) + "\n")
	sb.WriteString("End of Report\n")
	sb.WriteString(strings.Repeat("=", 79) + "\n")

	return []byte(sb.String())
}
