package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/IvanShishkin/buckfinder/pkg/models"
)

// renderMarkdown renders a Markdown report
func renderMarkdown(s *models.ScanSummary) []byte {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Buckfinder Scan Report v%s\n\n", s.Version))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Folder | `%s` |\n", s.ScanPath))
	sb.WriteString(fmt.Sprintf("| Start Time | %s |\n", s.StartTime.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("| End Time | %s |\n", s.EndTime.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("| Duration | %s |\n", FormatDuration(s.Duration)))
	sb.WriteString(fmt.Sprintf("| Images | %d of %d |\n", s.Processed, s.TotalImages))
	sb.WriteString(fmt.Sprintf("| Unreadable | %d |\n", len(s.Failed)))
	sb.WriteString(fmt.Sprintf("| **Bucks Found** | **%d** |\n", len(s.Matches)))
	sb.WriteString("\n")

	if s.Cancelled {
		sb.WriteString("> ⚠️ **Scan was cancelled, results are partial**\n\n")
	}

	if len(s.Matches) == 0 {
		sb.WriteString("> **No bucks found**\n\n")
		return []byte(sb.String())
	}

	sb.WriteString("## Matches\n\n")
	sb.WriteString("| # | Confidence | File | Path |\n")
	sb.WriteString("|---|------------|------|------|\n")
	for i, m := range s.Matches {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | `%s` |\n",
			i+1, FormatConfidence(m.Confidence), escapeMarkdown(filepath.Base(m.Path)), m.Path))
	}
	sb.WriteString("\n")

	if len(s.Failed) > 0 {
		sb.WriteString("## Unreadable Images\n\n")
		for _, path := range s.Failed {
			sb.WriteString(fmt.Sprintf("- `%s`\n", path))
		}
		sb.WriteString("\n")
	}

	return []byte(sb.String())
}

// escapeMarkdown escapes table-breaking characters
func escapeMarkdown(s string) string {
	return strings.NewReplacer("|", "\\|", "*", "\\*", "_", "\\_").Replace(s)
}
