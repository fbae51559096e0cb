package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/refero/internal/models"
)

// ToHTML serializes a document tree as a standalone HTML page. All assets
// (styles, chart runtime) are inlined so the page renders correctly in a
// network-isolated browser instance.
func ToHTML(doc *models.DocumentTree) (string, error) {
	markdown := markdownWithCanvases(doc)

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
			html.WithUnsafe(), // chart canvases are emitted as raw HTML blocks
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("markdown conversion: %w", err)
	}

	return wrapPage(doc.Title, buf.String(), len(doc.Charts()) > 0), nil
}

// markdownWithCanvases is like ToMarkdown but renders chart blocks as canvas
// elements carrying their descriptor JSON for the embedded chart runtime.
func markdownWithCanvases(doc *models.DocumentTree) string {
	var sb strings.Builder

	sb.WriteString("# " + doc.Title + "\n\n")
	if doc.Subtitle != "" {
		sb.WriteString("_" + doc.Subtitle + "_\n\n")
	}

	for _, section := range doc.Sections {
		level := section.Level
		if level < 1 {
			level = 2
		}
		sb.WriteString(strings.Repeat("#", level) + " " + section.Heading + "\n\n")

		for _, block := range section.Blocks {
			switch block.Kind {
			case models.BlockKindParagraph:
				sb.WriteString(block.Paragraph + "\n\n")
			case models.BlockKindTable:
				writeMarkdownTable(&sb, block.Table)
			case models.BlockKindChart:
				writeCanvas(&sb, block.Chart)
			}
		}
	}

	return sb.String()
}

func writeCanvas(sb *strings.Builder, chart *models.ChartDescriptor) {
	if chart == nil {
		return
	}

	payload, err := json.Marshal(chart)
	if err != nil {
		// Descriptors are plain value types, marshal cannot fail in
		// practice. Degrade to the data table just in case.
		writeMarkdownChart(sb, chart)
		return
	}

	sb.WriteString(fmt.Sprintf(
		"<div class=\"chart\"><canvas id=\"%s\" width=\"640\" height=\"320\" data-chart=\"%s\"></canvas></div>\n\n",
		stdhtml.EscapeString(chart.ID),
		stdhtml.EscapeString(string(payload)),
	))
}

func wrapPage(title, body string, withCharts bool) string {
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"utf-8\" />\n")
	sb.WriteString("<title>" + stdhtml.EscapeString(title) + "</title>\n")
	sb.WriteString("<style>\n" + pageCSS + "\n</style>\n")
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(body)
	if withCharts {
		sb.WriteString("\n<script>\n" + ChartRuntime() + "\n</script>\n")
	} else {
		// Engines poll for readiness regardless of chart presence.
		sb.WriteString("\n<script>window.__referoChartsReady = true;</script>\n")
	}
	sb.WriteString("</body>\n</html>\n")

	return sb.String()
}

const pageCSS = `body {
  font-family: "Segoe UI", Helvetica, Arial, sans-serif;
  color: #1a1a2e;
  max-width: 900px;
  margin: 0 auto;
  padding: 24px 32px;
  line-height: 1.5;
}
h1 { border-bottom: 2px solid #2c5f8a; padding-bottom: 8px; }
h2 { color: #2c5f8a; margin-top: 28px; }
table { border-collapse: collapse; width: 100%; margin: 12px 0; }
th, td { border: 1px solid #cfd8e3; padding: 6px 10px; text-align: left; font-size: 13px; }
th { background: #eef3f8; }
tr:nth-child(even) td { background: #f7fafc; }
.chart { margin: 16px 0; page-break-inside: avoid; }
@media print {
  body { max-width: none; padding: 0; }
}`
