package generator

import (
	"fmt"
	"time"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// Registry maps report types to their content generators. Generators are
// pure functions over the recommendation set; the registry carries the
// policy constants they share.
type Registry struct {
	cfg        common.GeneratorConfig
	generators map[models.ReportType]interfaces.Generator
}

// NewRegistry creates the registry with all five report type generators.
func NewRegistry(cfg common.GeneratorConfig) *Registry {
	r := &Registry{cfg: cfg}
	r.generators = map[models.ReportType]interfaces.Generator{
		models.ReportTypeDetailed:    &detailedGenerator{},
		models.ReportTypeExecutive:   &executiveGenerator{cfg: cfg},
		models.ReportTypeCost:        &costGenerator{cfg: cfg},
		models.ReportTypeSecurity:    &securityGenerator{cfg: cfg},
		models.ReportTypeOperational: &operationalGenerator{},
	}
	return r
}

// Build produces the report model for the record's type.
func (r *Registry) Build(report *models.ReportRecord, set *models.RecommendationSet) (*models.ReportModel, error) {
	gen, ok := r.generators[report.Type]
	if !ok {
		return nil, models.WrapKind(models.ErrValidation, "unknown report type: %s", report.Type)
	}
	return gen.Build(report, set)
}

// newBaseModel fills the fields every generator shares. GeneratedAt is
// zeroed deliberately so identical input yields an identical model; the
// renderer stamps the display timestamp.
func newBaseModel(report *models.ReportRecord, set *models.RecommendationSet, title string) *models.ReportModel {
	return &models.ReportModel{
		ReportID:    report.ID,
		Type:        report.Type,
		Title:       title,
		GeneratedAt: time.Time{},
		Empty:       set.IsEmpty(),
		Summary:     summarize(set),
	}
}

// summarize computes the rollups shared by every report type. Safe for
// empty sets: all maps are allocated, totals stay zero.
func summarize(set *models.RecommendationSet) models.SummaryStats {
	stats := models.SummaryStats{
		ByCategory:        make(map[models.Category]int),
		ByImpact:          make(map[models.Impact]int),
		SavingsByCategory: make(map[models.Category]float64),
	}

	if set == nil {
		return stats
	}

	for _, rec := range set.Records {
		stats.TotalFindings++
		stats.ByCategory[rec.Category]++
		stats.ByImpact[rec.Impact]++
		if rec.MonthlySavings > 0 {
			stats.TotalMonthlySavings += rec.MonthlySavings
			stats.SavingsByCategory[rec.Category] += rec.MonthlySavings
			if stats.Currency == "" {
				stats.Currency = rec.Currency
			}
		}
	}

	return stats
}

// filterByCategory returns the records matching one category, preserving
// input order for determinism.
func filterByCategory(set *models.RecommendationSet, cat models.Category) []models.RecommendationRecord {
	var out []models.RecommendationRecord
	if set == nil {
		return out
	}
	for _, rec := range set.Records {
		if rec.Category == cat {
			out = append(out, rec)
		}
	}
	return out
}

// impactRank orders impacts for sorting: high before medium before low.
func impactRank(i models.Impact) int {
	switch i {
	case models.ImpactHigh:
		return 0
	case models.ImpactMedium:
		return 1
	case models.ImpactLow:
		return 2
	}
	return 3
}

// categoryLabel renders a category for display.
func categoryLabel(c models.Category) string {
	switch c {
	case models.CategoryCost:
		return "Cost"
	case models.CategorySecurity:
		return "Security"
	case models.CategoryReliability:
		return "Reliability"
	case models.CategoryOperationalExcellence:
		return "Operational Excellence"
	case models.CategoryPerformance:
		return "Performance"
	}
	return fmt.Sprintf("%v", c)
}
