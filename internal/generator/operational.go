package generator

import (
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// operationalGenerator produces reliability and performance oriented
// rollups.
type operationalGenerator struct{}

var _ interfaces.Generator = (*operationalGenerator)(nil)

func (g *operationalGenerator) Build(report *models.ReportRecord, set *models.RecommendationSet) (*models.ReportModel, error) {
	model := newBaseModel(report, set, "Operational Health Report")

	op := &models.OperationalModel{
		ReliabilityFindings: filterByCategory(set, models.CategoryReliability),
		PerformanceFindings: filterByCategory(set, models.CategoryPerformance),
		ExcellenceFindings:  filterByCategory(set, models.CategoryOperationalExcellence),
	}

	resources := make(map[string]struct{})
	for _, group := range [][]models.RecommendationRecord{op.ReliabilityFindings, op.PerformanceFindings, op.ExcellenceFindings} {
		for _, rec := range group {
			if rec.Resource != "" {
				resources[rec.Resource] = struct{}{}
			}
		}
	}
	op.ResourcesAffected = len(resources)

	model.Operational = op
	model.Charts = append(model.Charts, operationalChart(op))

	return model, nil
}

func operationalChart(op *models.OperationalModel) models.ChartDescriptor {
	return models.ChartDescriptor{
		ID:     "operational_findings",
		Kind:   models.ChartKindBar,
		Title:  "Operational Findings by Area",
		Labels: []string{"Reliability", "Performance", "Operational Excellence"},
		Series: []float64{
			float64(len(op.ReliabilityFindings)),
			float64(len(op.PerformanceFindings)),
			float64(len(op.ExcellenceFindings)),
		},
	}
}
