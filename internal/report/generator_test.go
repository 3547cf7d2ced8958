package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IvanShishkin/buckfinder/internal/config"
	"github.com/IvanShishkin/buckfinder/pkg/models"
	"go.uber.org/zap"
)

func testSummary() *models.ScanSummary {
	start := time.Date(2024, 11, 2, 6, 30, 0, 0, time.UTC)
	return &models.ScanSummary{
		ScanID:      "7f1c",
		ScanPath:    "/cams/ridge",
		StartTime:   start,
		EndTime:     start.Add(95 * time.Second),
		Duration:    95 * time.Second,
		TotalImages: 12,
		Processed:   12,
		Matches: []models.DetectionResult{
			{Path: "/cams/ridge/IMG_0007.JPG", HasBuck: true, Confidence: 0.97},
			{Path: "/cams/ridge/IMG_0002.JPG", HasBuck: true, Confidence: 0.81},
		},
		Failed:  []string{"/cams/ridge/IMG_0005.JPG"},
		Version: "0.1.0",
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Duration
		expected string
	}{
		{"Milliseconds", 250 * time.Millisecond, "250.00ms"},
		{"Seconds", 1500 * time.Millisecond, "1.50s"},
		{"Minutes", 95 * time.Second, "1m35.00s"},
		{"Hours", time.Hour + 2*time.Minute + 3*time.Second, "1h2m3.00s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.input); got != tt.expected {
				t.Errorf("FormatDuration(%v) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatConfidence(t *testing.T) {
	if got := FormatConfidence(0.95); got != "95.0%" {
		t.Errorf("FormatConfidence(0.95) = %v, want %v", got, "95.0%")
	}
}

func TestGenerate_Console(t *testing.T) {
	g := NewGenerator(&config.Config{}, zap.NewNop())
	var buf bytes.Buffer
	g.SetOutput(&buf)

	path, err := g.Generate(testSummary())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if path != "" {
		t.Errorf("Generate() path = %q, want empty for console", path)
	}

	out := buf.String()
	for _, want := range []string{"SCAN COMPLETE", "BUCKS FOUND: 2", "IMG_0007.JPG", "97.0%", "1 unreadable"} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q", want)
		}
	}
}

func TestGenerate_ConsoleNoMatches(t *testing.T) {
	g := NewGenerator(&config.Config{}, zap.NewNop())
	var buf bytes.Buffer
	g.SetOutput(&buf)

	s := testSummary()
	s.Matches = nil
	s.Cancelled = true
	if _, err := g.Generate(s); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "SCAN CANCELLED") || !strings.Contains(out, "No bucks found") {
		t.Errorf("unexpected console output:\n%s", out)
	}
}

func TestGenerate_Formats(t *testing.T) {
	tests := []struct {
		format   string
		contains []string
	}{
		{"text", []string{"BUCKFINDER SCAN REPORT v0.1.0", "BUCKS FOUND:      2", "97.0%", "UNREADABLE IMAGES"}},
		{"md", []string{"# Buckfinder Scan Report", "| **Bucks Found** | **2** |", "IMG\\_0007.JPG", "## Unreadable Images"}},
		{"html", []string{"<title>Buckfinder Scan Report</title>", "file:///cams/ridge/IMG_0007.JPG", "97.0%"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "report."+tt.format)
			g := NewGenerator(&config.Config{ReportFormat: tt.format, OutputFile: out}, zap.NewNop())

			path, err := g.Generate(testSummary())
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if path != out {
				t.Errorf("Generate() path = %q, want %q", path, out)
			}

			data, err := os.ReadFile(out)
			if err != nil {
				t.Fatalf("Failed to read report: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(string(data), want) {
					t.Errorf("%s report missing %q", tt.format, want)
				}
			}
		})
	}
}

func TestGenerate_JSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.json")
	g := NewGenerator(&config.Config{ReportFormat: "json", OutputFile: out}, zap.NewNop())

	if _, err := g.Generate(testSummary()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}

	var decoded struct {
		ScanPath   string                   `json:"scan_path"`
		MatchCount int                      `json:"match_count"`
		Matches    []models.DetectionResult `json:"matches"`
		Threshold  float32                  `json:"threshold"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Invalid JSON report: %v", err)
	}

	if decoded.ScanPath != "/cams/ridge" {
		t.Errorf("scan_path = %q, want %q", decoded.ScanPath, "/cams/ridge")
	}
	if decoded.MatchCount != 2 || len(decoded.Matches) != 2 {
		t.Errorf("match_count = %d, matches = %d, want 2", decoded.MatchCount, len(decoded.Matches))
	}
	if decoded.Threshold != 0.80 {
		t.Errorf("threshold = %v, want 0.80", decoded.Threshold)
	}
}

func TestGenerate_DefaultFilename(t *testing.T) {
	testChdir(t, t.TempDir())
	g := NewGenerator(&config.Config{ReportFormat: "md"}, zap.NewNop())
	g.now = func() time.Time { return time.Date(2024, 11, 2, 6, 30, 0, 0, time.UTC) }

	path, err := g.Generate(testSummary())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if filepath.Base(path) != "BUCKFINDER-REPORT-20241102-063000.md" {
		t.Errorf("default report name = %q", filepath.Base(path))
	}
}

func TestGenerate_UnknownFormat(t *testing.T) {
	g := NewGenerator(&config.Config{ReportFormat: "xml"}, zap.NewNop())

	if _, err := g.Generate(testSummary()); err == nil {
		t.Error("Generate() expected error for unknown format, got nil")
	}
}

// testChdir changes the working directory for the duration of the test
// (Go 1.21 stand-in for testing.T.Chdir).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
