package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/IvanShishkin/buckfinder/internal/config"
	"github.com/IvanShishkin/buckfinder/pkg/models"
	"go.uber.org/zap"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorWhite  = "\033[37m"
	colorOrange = "\033[38;5;208m"
	colorGray   = "\033[38;5;245m"
)

// FormatDuration formats duration to a human-readable string with max 2 decimal places
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		// Milliseconds
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	} else if d < time.Minute {
		// Seconds
		return fmt.Sprintf("%.2fs", d.Seconds())
	} else if d < time.Hour {
		// Minutes and seconds
		mins := int(d.Minutes())
		secs := d.Seconds() - float64(mins*60)
		return fmt.Sprintf("%dm%.2fs", mins, secs)
	}
	// Hours, minutes and seconds
	hours := int(d.Hours())
	mins := int(d.Minutes()) - hours*60
	secs := d.Seconds() - float64(hours*3600) - float64(mins*60)
	return fmt.Sprintf("%dh%dm%.2fs", hours, mins, secs)
}

// FormatConfidence renders a confidence in [0,1] as a percentage
func FormatConfidence(c float32) string {
	return fmt.Sprintf("%.1f%%", c*100)
}

// Generator renders scan summaries in various formats
type Generator struct {
	config *config.Config
	logger *zap.Logger
	out    io.Writer // console output
	now    func() time.Time
}

// NewGenerator creates a new report generator
func NewGenerator(cfg *config.Config, logger *zap.Logger) *Generator {
	return &Generator{
		config: cfg,
		logger: logger,
		out:    os.Stdout,
		now:    time.Now,
	}
}

// SetOutput redirects console output
func (g *Generator) SetOutput(w io.Writer) {
	g.out = w
}

// Generate writes a report for summary and returns its absolute path. With no
// report format configured the summary is printed to the console instead and
// the returned path is empty.
func (g *Generator) Generate(summary *models.ScanSummary) (string, error) {
	format := g.config.ReportFormat
	outputFile := g.config.OutputFile

	// If no format specified, print to console
	if format == "" {
		g.printConsole(summary)
		return "", nil
	}

	// Generate default filename if not specified
	if outputFile == "" {
		timestamp := g.now().Format("20060102-150405")
		switch format {
		case "json":
			outputFile = fmt.Sprintf("BUCKFINDER-REPORT-%s.json", timestamp)
		case "txt", "text":
			outputFile = fmt.Sprintf("BUCKFINDER-REPORT-%s.txt", timestamp)
		case "html":
			outputFile = fmt.Sprintf("BUCKFINDER-REPORT-%s.html", timestamp)
		case "md", "markdown":
			outputFile = fmt.Sprintf("BUCKFINDER-REPORT-%s.md", timestamp)
		default:
			return "", fmt.Errorf("unknown report format: %s", format)
		}
	}

	g.logger.Info("Generating report",
		zap.String("format", format),
		zap.String("output", outputFile))

	var data []byte
	var err error
	switch format {
	case "json":
		data, err = renderJSON(summary)
	case "txt", "text":
		data = renderText(summary)
	case "html":
		data = renderHTML(summary)
	case "md", "markdown":
		data = renderMarkdown(summary)
	default:
		return "", fmt.Errorf("unknown report format: %s", format)
	}
	if err == nil {
		err = os.WriteFile(outputFile, data, 0644)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate %s report: %w", format, err)
	}

	// Get absolute path
	absPath, _ := filepath.Abs(outputFile)
	return absPath, nil
}

// printConsole prints the summary with colors
func (g *Generator) printConsole(s *models.ScanSummary) {
	w := g.out
	fmt.Fprintln(w)

	// Summary header
	if s.Cancelled {
		fmt.Fprintf(w, "%s%sSCAN CANCELLED%s\n", colorBold, colorYellow, colorReset)
	} else {
		fmt.Fprintf(w, "%s%sSCAN COMPLETE%s\n", colorBold, colorOrange, colorReset)
	}
	fmt.Fprintln(w)

	// Stats
	fmt.Fprintf(w, "  %sFolder:%s    %s\n", colorGray, colorReset, s.ScanPath)
	fmt.Fprintf(w, "  %sImages:%s    %d of %d\n", colorGray, colorReset, s.Processed, s.TotalImages)
	fmt.Fprintf(w, "  %sDuration:%s  %s\n", colorGray, colorReset, FormatDuration(s.Duration))
	if len(s.Failed) > 0 {
		fmt.Fprintf(w, "  %sSkipped:%s   %s%d unreadable%s\n", colorGray, colorReset, colorRed, len(s.Failed), colorReset)
	}
	fmt.Fprintln(w)

	if len(s.Matches) == 0 {
		fmt.Fprintf(w, "  %s%sNo bucks found%s\n", colorBold, colorWhite, colorReset)
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "  %s%s✓ BUCKS FOUND: %d%s\n", colorBold, colorGreen, len(s.Matches), colorReset)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s───────────────────────────────────────────────────────────────%s\n", colorGray, colorReset)

	for i, m := range s.Matches {
		fmt.Fprintf(w, "  %s%s[%d]%s %s%6s%s  %s\n",
			colorBold, colorWhite, i+1, colorReset,
			confidenceColor(m.Confidence), FormatConfidence(m.Confidence), colorReset,
			m.Path)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s───────────────────────────────────────────────────────────────%s\n", colorGray, colorReset)
	fmt.Fprintln(w)
}

// confidenceColor returns ANSI color for a match confidence
func confidenceColor(c float32) string {
	switch {
	case c >= 0.95:
		return colorGreen + colorBold
	case c >= 0.90:
		return colorGreen
	default:
		return colorYellow
	}
}

// cleanPath shortens a path for fixed-width output
func cleanPath(path string, maxLen int) string {
	path = strings.TrimSpace(path)
	if len(path) > maxLen {
		path = "..." + path[len(path)-maxLen+3:]
	}
	return path
}
