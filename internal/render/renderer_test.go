package render

import (
	"strings"
	"testing"

	"github.com/ternarybob/refero/internal/models"
)

func sampleModel() *models.ReportModel {
	return &models.ReportModel{
		ReportID: "rpt_test",
		Type:     models.ReportTypeCost,
		Title:    "Cost Optimization Report",
		Summary: models.SummaryStats{
			TotalFindings: 2,
			ByCategory:    map[models.Category]int{models.CategoryCost: 2},
			ByImpact:      map[models.Impact]int{models.ImpactHigh: 1, models.ImpactLow: 1},
			SavingsByCategory: map[models.Category]float64{
				models.CategoryCost: 1500,
			},
			TotalMonthlySavings: 1500,
		},
		Cost: &models.CostModel{
			TotalMonthlySavings: 1500,
			TotalAnnualSavings:  18000,
			ThreeYearCumulative: 54000,
			Projections: []models.ROIProjection{
				{
					Recommendation:     models.RecommendationRecord{ID: "r1", Text: "Rightsize VM fleet", MonthlySavings: 1000},
					ImplementationCost: 800,
					PaybackMonths:      0.8,
				},
			},
			QuickWins: []models.RecommendationRecord{
				{ID: "r1", Text: "Rightsize VM fleet", MonthlySavings: 1000, EffortHours: 8},
			},
		},
		Charts: []models.ChartDescriptor{
			{ID: "savings-projection", Kind: models.ChartKindLine, Title: "Cumulative Savings",
				Labels: []string{"Year 1", "Year 2", "Year 3"}, Series: []float64{18000, 36000, 54000}},
		},
	}
}

func emptyModel(t models.ReportType) *models.ReportModel {
	return &models.ReportModel{
		ReportID: "rpt_empty",
		Type:     t,
		Title:    "Empty Report",
		Empty:    true,
		Summary:  models.SummaryStats{ByCategory: map[models.Category]int{}, ByImpact: map[models.Impact]int{}},
	}
}

func TestRenderer_SummaryFirst(t *testing.T) {
	doc := NewRenderer().Render(sampleModel())

	if len(doc.Sections) == 0 {
		t.Fatal("expected sections")
	}
	if doc.Sections[0].Heading != "Summary" {
		t.Errorf("first section = %q, want Summary", doc.Sections[0].Heading)
	}
}

func TestRenderer_EmptyState(t *testing.T) {
	for _, rt := range models.ReportTypes {
		doc := NewRenderer().Render(emptyModel(rt))

		if len(doc.Sections) == 0 {
			t.Fatalf("%s: expected at least the summary section", rt)
		}
		summary := doc.Sections[0]
		if len(summary.Blocks) == 0 || summary.Blocks[0].Kind != models.BlockKindParagraph {
			t.Fatalf("%s: expected empty-state paragraph", rt)
		}
		if !strings.Contains(summary.Blocks[0].Paragraph, "No recommendations") {
			t.Errorf("%s: unexpected empty-state text %q", rt, summary.Blocks[0].Paragraph)
		}
		if len(doc.Charts()) != 0 {
			t.Errorf("%s: empty report should carry no charts", rt)
		}
	}
}

func TestRenderer_ChartsCollected(t *testing.T) {
	doc := NewRenderer().Render(sampleModel())

	charts := doc.Charts()
	if len(charts) != 1 {
		t.Fatalf("got %d charts, want 1", len(charts))
	}
	if charts[0].ID != "savings-projection" {
		t.Errorf("chart id = %q", charts[0].ID)
	}
}

func TestToMarkdown(t *testing.T) {
	doc := NewRenderer().Render(sampleModel())
	md := ToMarkdown(doc)

	for _, want := range []string{
		"# Cost Optimization Report",
		"## Summary",
		"| Monthly | Annual | 3-Year Cumulative |",
		"Rightsize VM fleet",
		"**Cumulative Savings**", // charts degrade to tables in markdown
		"| Year 1 | 18000.00 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "<canvas") {
		t.Error("markdown must not contain canvas elements")
	}
}

func TestToMarkdown_EscapesPipes(t *testing.T) {
	doc := &models.DocumentTree{
		Title: "T",
		Sections: []models.Section{{
			Heading: "S", Level: 2,
			Blocks: []models.Block{{
				Kind:  models.BlockKindTable,
				Table: &models.TableData{Headers: []string{"A"}, Rows: [][]string{{"x | y"}}},
			}},
		}},
	}

	md := ToMarkdown(doc)
	if !strings.Contains(md, `x \| y`) {
		t.Errorf("pipe not escaped:\n%s", md)
	}
}

func TestToHTML_SelfContained(t *testing.T) {
	doc := NewRenderer().Render(sampleModel())
	page, err := ToHTML(doc)
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<style>",
		"data-chart=",
		"__referoChartsReady",
		"<canvas id=\"savings-projection\"",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("html missing %q", want)
		}
	}

	// The page must render without network access.
	for _, forbidden := range []string{"http://", "https://", "<link", "src="} {
		if strings.Contains(page, forbidden) {
			t.Errorf("html must not reference external resources, found %q", forbidden)
		}
	}
}

func TestToHTML_NoChartsStillSignalsReady(t *testing.T) {
	doc := NewRenderer().Render(emptyModel(models.ReportTypeDetailed))
	page, err := ToHTML(doc)
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}

	if !strings.Contains(page, "__referoChartsReady = true") {
		t.Error("chartless page must still signal readiness")
	}
}
