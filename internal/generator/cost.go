package generator

import (
	"math"
	"sort"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// costGenerator produces savings totals, the return-on-investment
// projection and the quick-win filter. Payback period is implementation
// cost (effort hours at the configured hourly rate) divided by monthly
// savings; the cumulative projection runs over three years.
type costGenerator struct {
	cfg common.GeneratorConfig
}

var _ interfaces.Generator = (*costGenerator)(nil)

func (g *costGenerator) Build(report *models.ReportRecord, set *models.RecommendationSet) (*models.ReportModel, error) {
	model := newBaseModel(report, set, "Cost Optimization Report")

	cost := &models.CostModel{}

	for _, rec := range setRecords(set) {
		if rec.MonthlySavings <= 0 {
			continue
		}
		cost.TotalMonthlySavings += rec.MonthlySavings

		projection := models.ROIProjection{
			Recommendation:     rec,
			ImplementationCost: rec.EffortHours * g.cfg.HourlyRate,
		}
		if rec.MonthlySavings > 0 {
			projection.PaybackMonths = projection.ImplementationCost / rec.MonthlySavings
		}
		cost.Projections = append(cost.Projections, projection)

		if rec.EffortHours <= g.cfg.QuickWinMaxEffortHours {
			cost.QuickWins = append(cost.QuickWins, rec)
		} else if rec.EffortHours > g.cfg.StrategicMinEffortHours {
			cost.StrategicInitiatives = append(cost.StrategicInitiatives, rec)
		}
	}

	cost.TotalAnnualSavings = cost.TotalMonthlySavings * 12
	cost.ThreeYearCumulative = cost.TotalMonthlySavings * 36

	// Shortest payback first; zero-cost items lead
	sort.SliceStable(cost.Projections, func(i, j int) bool {
		return cost.Projections[i].PaybackMonths < cost.Projections[j].PaybackMonths
	})

	model.Cost = cost
	model.Charts = append(model.Charts, savingsProjectionChart(cost.TotalMonthlySavings))

	return model, nil
}

// savingsProjectionChart describes cumulative savings over 36 months.
func savingsProjectionChart(monthly float64) models.ChartDescriptor {
	chart := models.ChartDescriptor{
		ID:    "cumulative_savings",
		Kind:  models.ChartKindLine,
		Title: "Cumulative Savings Projection (3 Years)",
	}
	for year := 1; year <= 3; year++ {
		chart.Labels = append(chart.Labels, yearLabel(year))
		chart.Series = append(chart.Series, math.Round(monthly*float64(year)*12*100)/100)
	}
	return chart
}

func yearLabel(year int) string {
	switch year {
	case 1:
		return "Year 1"
	case 2:
		return "Year 2"
	default:
		return "Year 3"
	}
}
