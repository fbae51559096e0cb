package render

import (
	"fmt"
	"strings"

	"github.com/ternarybob/refero/internal/models"
)

// ToMarkdown serializes a document tree as GitHub-flavored markdown. Chart
// blocks degrade to their underlying data tables so the markup artifact is
// complete without any script runtime.
func ToMarkdown(doc *models.DocumentTree) string {
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
				writeMarkdownChart(&sb, block.Chart)
			}
		}
	}

	return sb.String()
}

func writeMarkdownTable(sb *strings.Builder, table *models.TableData) {
	if table == nil || len(table.Headers) == 0 {
		return
	}

	sb.WriteString("| " + strings.Join(table.Headers, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(table.Headers)) + "\n")
	for _, row := range table.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.ReplaceAll(cell, "|", "\\|")
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	sb.WriteString("\n")
}

// writeMarkdownChart renders a chart descriptor as a labeled value table,
// the markdown equivalent of the static engine's chart degradation.
func writeMarkdownChart(sb *strings.Builder, chart *models.ChartDescriptor) {
	if chart == nil {
		return
	}

	sb.WriteString("**" + chart.Title + "**\n\n")
	table := &models.TableData{Headers: []string{"Label", "Value"}}
	for i, label := range chart.Labels {
		value := ""
		if i < len(chart.Series) {
			value = fmt.Sprintf("%.2f", chart.Series[i])
		}
		table.Rows = append(table.Rows, []string{label, value})
	}
	writeMarkdownTable(sb, table)
}
