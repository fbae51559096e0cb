package render

import (
	"fmt"
	"time"

	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// Renderer merges a report model into a document tree. Stateless, no I/O:
// visualization realization is deferred to the rendering engines via chart
// descriptor blocks.
type Renderer struct{}

var _ interfaces.TemplateRenderer = (*Renderer)(nil)

// NewRenderer creates a new template renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render builds the document tree for any report model.
func (r *Renderer) Render(model *models.ReportModel) *models.DocumentTree {
	doc := &models.DocumentTree{
		Title:    model.Title,
		Subtitle: fmt.Sprintf("Report %s", model.ReportID),
	}
	if !model.GeneratedAt.IsZero() {
		doc.Subtitle = fmt.Sprintf("Report %s - generated %s", model.ReportID, model.GeneratedAt.Format(time.RFC1123))
	}

	doc.Sections = append(doc.Sections, r.summarySection(model))

	switch {
	case model.Detailed != nil:
		doc.Sections = append(doc.Sections, r.detailedSections(model.Detailed)...)
	case model.Executive != nil:
		doc.Sections = append(doc.Sections, r.executiveSections(model.Executive)...)
	case model.Cost != nil:
		doc.Sections = append(doc.Sections, r.costSections(model.Cost)...)
	case model.Security != nil:
		doc.Sections = append(doc.Sections, r.securitySections(model.Security)...)
	case model.Operational != nil:
		doc.Sections = append(doc.Sections, r.operationalSections(model.Operational)...)
	}

	if len(model.Charts) > 0 && !model.Empty {
		section := models.Section{Heading: "Visualizations", Level: 2}
		for i := range model.Charts {
			chart := model.Charts[i]
			section.Blocks = append(section.Blocks, models.Block{
				Kind:  models.BlockKindChart,
				Chart: &chart,
			})
		}
		doc.Sections = append(doc.Sections, section)
	}

	return doc
}

func (r *Renderer) summarySection(model *models.ReportModel) models.Section {
	section := models.Section{Heading: "Summary", Level: 2}

	if model.Empty {
		section.Blocks = append(section.Blocks, paragraph(
			"No recommendations are available for this report. The source dataset contained no findings."))
		return section
	}

	section.Blocks = append(section.Blocks, paragraph(fmt.Sprintf(
		"This report covers %d findings across %d categories.",
		model.Summary.TotalFindings, len(model.Summary.ByCategory))))

	table := &models.TableData{Headers: []string{"Category", "Findings", "Monthly Savings"}}
	for _, cat := range models.Categories {
		count := model.Summary.ByCategory[cat]
		if count == 0 {
			continue
		}
		table.Rows = append(table.Rows, []string{
			string(cat),
			fmt.Sprintf("%d", count),
			money(model.Summary.SavingsByCategory[cat], model.Summary.Currency),
		})
	}
	section.Blocks = append(section.Blocks, models.Block{Kind: models.BlockKindTable, Table: table})

	return section
}

func (r *Renderer) detailedSections(detail *models.DetailedModel) []models.Section {
	listing := models.Section{Heading: "Itemized Findings", Level: 2}
	table := &models.TableData{Headers: []string{"Impact", "Category", "Resource", "Recommendation"}}
	for _, item := range detail.Items {
		table.Rows = append(table.Rows, []string{
			string(item.Impact), string(item.Category), item.Resource, item.Text,
		})
	}
	listing.Blocks = append(listing.Blocks, models.Block{Kind: models.BlockKindTable, Table: table})

	crosstab := models.Section{Heading: "Category / Impact Cross-Tabulation", Level: 2}
	cross := &models.TableData{Headers: []string{"Category", "High", "Medium", "Low"}}
	for _, cat := range models.Categories {
		row := detail.Crosstab[cat]
		if row[models.ImpactHigh]+row[models.ImpactMedium]+row[models.ImpactLow] == 0 {
			continue
		}
		cross.Rows = append(cross.Rows, []string{
			string(cat),
			fmt.Sprintf("%d", row[models.ImpactHigh]),
			fmt.Sprintf("%d", row[models.ImpactMedium]),
			fmt.Sprintf("%d", row[models.ImpactLow]),
		})
	}
	crosstab.Blocks = append(crosstab.Blocks, models.Block{Kind: models.BlockKindTable, Table: cross})

	return []models.Section{listing, crosstab}
}

func (r *Renderer) executiveSections(exec *models.ExecutiveModel) []models.Section {
	top := models.Section{Heading: "Top Recommendations", Level: 2}
	table := &models.TableData{Headers: []string{"Impact", "Category", "Recommendation", "Monthly Savings"}}
	for _, rec := range exec.TopRecommendations {
		table.Rows = append(table.Rows, []string{
			string(rec.Impact), string(rec.Category), rec.Text, money(rec.MonthlySavings, rec.Currency),
		})
	}
	top.Blocks = append(top.Blocks, models.Block{Kind: models.BlockKindTable, Table: table})

	roadmap := models.Section{Heading: "Implementation Roadmap", Level: 2}
	for _, horizon := range []struct {
		key   models.RoadmapHorizon
		label string
	}{
		{models.HorizonQuickWin, "Quick Wins"},
		{models.HorizonMidTerm, "Mid-Term"},
		{models.HorizonStrategic, "Strategic"},
	} {
		bucket := &models.TableData{Headers: []string{"Category", "Recommendation", "Effort (h)"}}
		for _, item := range exec.Roadmap {
			if item.Horizon != horizon.key {
				continue
			}
			rec := item.Recommendation
			bucket.Rows = append(bucket.Rows, []string{
				string(rec.Category), rec.Text, fmt.Sprintf("%.0f", rec.EffortHours),
			})
		}
		if len(bucket.Rows) == 0 {
			continue
		}
		roadmap.Blocks = append(roadmap.Blocks,
			paragraph(horizon.label),
			models.Block{Kind: models.BlockKindTable, Table: bucket})
	}

	return []models.Section{top, roadmap}
}

func (r *Renderer) costSections(cost *models.CostModel) []models.Section {
	totals := models.Section{Heading: "Savings Overview", Level: 2}
	totals.Blocks = append(totals.Blocks, models.Block{Kind: models.BlockKindTable, Table: &models.TableData{
		Headers: []string{"Monthly", "Annual", "3-Year Cumulative"},
		Rows: [][]string{{
			money(cost.TotalMonthlySavings, ""),
			money(cost.TotalAnnualSavings, ""),
			money(cost.ThreeYearCumulative, ""),
		}},
	}})

	roi := models.Section{Heading: "Return on Investment", Level: 2}
	table := &models.TableData{Headers: []string{"Recommendation", "Implementation Cost", "Payback (months)"}}
	for _, p := range cost.Projections {
		table.Rows = append(table.Rows, []string{
			p.Recommendation.Text,
			money(p.ImplementationCost, p.Recommendation.Currency),
			fmt.Sprintf("%.1f", p.PaybackMonths),
		})
	}
	roi.Blocks = append(roi.Blocks, models.Block{Kind: models.BlockKindTable, Table: table})

	wins := models.Section{Heading: "Quick Wins", Level: 2}
	if len(cost.QuickWins) == 0 {
		wins.Blocks = append(wins.Blocks, paragraph("No quick-win opportunities identified."))
	} else {
		winTable := &models.TableData{Headers: []string{"Recommendation", "Monthly Savings", "Effort (h)"}}
		for _, rec := range cost.QuickWins {
			winTable.Rows = append(winTable.Rows, []string{
				rec.Text, money(rec.MonthlySavings, rec.Currency), fmt.Sprintf("%.0f", rec.EffortHours),
			})
		}
		wins.Blocks = append(wins.Blocks, models.Block{Kind: models.BlockKindTable, Table: winTable})
	}

	return []models.Section{totals, roi, wins}
}

func (r *Renderer) securitySections(sec *models.SecurityModel) []models.Section {
	posture := models.Section{Heading: "Security Posture", Level: 2}
	posture.Blocks = append(posture.Blocks, paragraph(fmt.Sprintf(
		"Current security posture score: %d / 100.", sec.PostureScore)))

	critical := models.Section{Heading: "Critical Issues", Level: 2}
	if len(sec.CriticalIssues) == 0 {
		critical.Blocks = append(critical.Blocks, paragraph("No critical security issues found."))
	} else {
		table := &models.TableData{Headers: []string{"Resource", "Finding"}}
		for _, rec := range sec.CriticalIssues {
			table.Rows = append(table.Rows, []string{rec.Resource, rec.Text})
		}
		critical.Blocks = append(critical.Blocks, models.Block{Kind: models.BlockKindTable, Table: table})
	}

	compliance := models.Section{Heading: "Compliance Mapping", Level: 2}
	compTable := &models.TableData{Headers: []string{"Framework", "Control", "Findings"}}
	for _, mapping := range sec.Compliance {
		compTable.Rows = append(compTable.Rows, []string{
			mapping.Framework, mapping.Control, fmt.Sprintf("%d", len(mapping.Findings)),
		})
	}
	compliance.Blocks = append(compliance.Blocks, models.Block{Kind: models.BlockKindTable, Table: compTable})

	remediation := models.Section{Heading: "Remediation Timeline", Level: 2}
	remTable := &models.TableData{Headers: []string{"Urgency", "Resource", "Finding"}}
	for _, entry := range sec.Remediation {
		remTable.Rows = append(remTable.Rows, []string{
			entry.Urgency, entry.Recommendation.Resource, entry.Recommendation.Text,
		})
	}
	remediation.Blocks = append(remediation.Blocks, models.Block{Kind: models.BlockKindTable, Table: remTable})

	return []models.Section{posture, critical, compliance, remediation}
}

func (r *Renderer) operationalSections(op *models.OperationalModel) []models.Section {
	overview := models.Section{Heading: "Operational Overview", Level: 2}
	overview.Blocks = append(overview.Blocks, paragraph(fmt.Sprintf(
		"%d resources are affected by operational findings.", op.ResourcesAffected)))

	sections := []models.Section{overview}
	for _, group := range []struct {
		heading  string
		findings []models.RecommendationRecord
	}{
		{"Reliability", op.ReliabilityFindings},
		{"Performance", op.PerformanceFindings},
		{"Operational Excellence", op.ExcellenceFindings},
	} {
		section := models.Section{Heading: group.heading, Level: 2}
		if len(group.findings) == 0 {
			section.Blocks = append(section.Blocks, paragraph("No findings in this area."))
		} else {
			table := &models.TableData{Headers: []string{"Impact", "Resource", "Finding"}}
			for _, rec := range group.findings {
				table.Rows = append(table.Rows, []string{string(rec.Impact), rec.Resource, rec.Text})
			}
			section.Blocks = append(section.Blocks, models.Block{Kind: models.BlockKindTable, Table: table})
		}
		sections = append(sections, section)
	}

	return sections
}

func paragraph(text string) models.Block {
	return models.Block{Kind: models.BlockKindParagraph, Paragraph: text}
}

func money(amount float64, currency string) string {
	if amount == 0 {
		return "-"
	}
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}
