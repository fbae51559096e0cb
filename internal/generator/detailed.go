package generator

import (
	"sort"

	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// detailedGenerator produces the full itemized listing with the
// category/impact cross-tabulation.
type detailedGenerator struct{}

var _ interfaces.Generator = (*detailedGenerator)(nil)

func (g *detailedGenerator) Build(report *models.ReportRecord, set *models.RecommendationSet) (*models.ReportModel, error) {
	model := newBaseModel(report, set, "Detailed Recommendations Report")

	crosstab := make(map[models.Category]map[models.Impact]int)
	for _, cat := range models.Categories {
		crosstab[cat] = make(map[models.Impact]int)
	}

	items := make([]models.RecommendationRecord, 0, len(setRecords(set)))
	for _, rec := range setRecords(set) {
		items = append(items, rec)
		if _, ok := crosstab[rec.Category]; !ok {
			crosstab[rec.Category] = make(map[models.Impact]int)
		}
		crosstab[rec.Category][rec.Impact]++
	}

	// Highest impact first, stable within impact for determinism
	sort.SliceStable(items, func(i, j int) bool {
		return impactRank(items[i].Impact) < impactRank(items[j].Impact)
	})

	model.Detailed = &models.DetailedModel{
		Items:    items,
		Crosstab: crosstab,
	}

	model.Charts = append(model.Charts, categoryChart(model.Summary), impactChart(model.Summary))

	return model, nil
}

func setRecords(set *models.RecommendationSet) []models.RecommendationRecord {
	if set == nil {
		return nil
	}
	return set.Records
}

// categoryChart describes findings-per-category as a bar chart.
func categoryChart(summary models.SummaryStats) models.ChartDescriptor {
	chart := models.ChartDescriptor{
		ID:    "findings_by_category",
		Kind:  models.ChartKindBar,
		Title: "Findings by Category",
	}
	for _, cat := range models.Categories {
		chart.Labels = append(chart.Labels, categoryLabel(cat))
		chart.Series = append(chart.Series, float64(summary.ByCategory[cat]))
	}
	return chart
}

// impactChart describes the impact distribution as a doughnut chart.
func impactChart(summary models.SummaryStats) models.ChartDescriptor {
	chart := models.ChartDescriptor{
		ID:    "findings_by_impact",
		Kind:  models.ChartKindDoughnut,
		Title: "Findings by Impact",
	}
	for _, impact := range models.Impacts {
		chart.Labels = append(chart.Labels, string(impact))
		chart.Series = append(chart.Series, float64(summary.ByImpact[impact]))
	}
	return chart
}
