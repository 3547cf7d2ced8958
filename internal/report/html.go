package report

import (
	"fmt"
	"html"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/IvanShishkin/buckfinder/pkg/models"
)

// renderHTML renders a self-contained gallery of the matches
func renderHTML(s *models.ScanSummary) []byte {
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Buckfinder Scan Report</title>
    <style>
        :root {
            --bg-primary: #0C0C0C;
            --bg-secondary: #161616;
            --text-primary: #ECECEC;
            --text-secondary: #A0A0A0;
            --accent: #D97706;
            --border-color: #2A2A2A;
            --match-color: #22C55E;
        }
        body { margin: 0; padding: 32px; background: var(--bg-primary); color: var(--text-primary); font-family: system-ui, sans-serif; }
        h1 { color: var(--accent); font-weight: 600; }
        .summary { display: grid; grid-template-columns: max-content 1fr; gap: 6px 24px; margin-bottom: 32px; color: var(--text-secondary); }
        .summary b { color: var(--text-primary); font-weight: 500; }
        .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(240px, 1fr)); gap: 16px; }
        .card { background: var(--bg-secondary); border: 1px solid var(--border-color); border-radius: 8px; overflow: hidden; }
        .card img { width: 100%; height: 180px; object-fit: cover; display: block; }
        .card .meta { padding: 10px 12px; font-size: 13px; }
        .card .conf { color: var(--match-color); font-weight: 600; }
        .card .name { color: var(--text-secondary); word-break: break-all; }
        .notice { color: var(--accent); }
    </style>
</head>
<body>
`)

	sb.WriteString(fmt.Sprintf("<h1>Buckfinder Scan Report <small>v%s</small></h1>\n", html.EscapeString(s.Version)))

	if s.Cancelled {
		sb.WriteString("<p class=\"notice\">Scan was cancelled, results are partial.</p>\n")
	}

	sb.WriteString("<div class=\"summary\">\n")
	writeRow := func(label, value string) {
		sb.WriteString(fmt.Sprintf("  <span>%s</span><b>%s</b>\n", label, html.EscapeString(value)))
	}
	writeRow("Folder", s.ScanPath)
	writeRow("Started", s.StartTime.Format("2006-01-02 15:04:05"))
	writeRow("Duration", FormatDuration(s.Duration))
	writeRow("Images", fmt.Sprintf("%d of %d", s.Processed, s.TotalImages))
	writeRow("Unreadable", fmt.Sprintf("%d", len(s.Failed)))
	writeRow("Bucks found", fmt.Sprintf("%d", len(s.Matches)))
	sb.WriteString("</div>\n")

	if len(s.Matches) == 0 {
		sb.WriteString("<p>No bucks found.</p>\n")
	} else {
		sb.WriteString("<div class=\"grid\">\n")
		for _, m := range s.Matches {
			src := (&url.URL{Scheme: "file", Path: filepath.ToSlash(m.Path)}).String()
			sb.WriteString("  <div class=\"card\">\n")
			sb.WriteString(fmt.Sprintf("    <a href=\"%s\"><img src=\"%s\" alt=\"%s\" loading=\"lazy\"></a>\n",
				html.EscapeString(src), html.EscapeString(src), html.EscapeString(filepath.Base(m.Path))))
			sb.WriteString(fmt.Sprintf("    <div class=\"meta\"><span class=\"conf\">%s</span> <span class=\"name\">%s</span></div>\n",
				FormatConfidence(m.Confidence), html.EscapeString(filepath.Base(m.Path))))
			sb.WriteString("  </div>\n")
		}
		sb.WriteString("</div>\n")
	}

	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}
