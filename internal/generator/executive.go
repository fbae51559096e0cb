package generator

import (
	"sort"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// executiveGenerator produces the top-N ranking, coarse KPI rollup and the
// qualitative roadmap bucketed into quick-win / mid-term / strategic
// horizons by the configured impact+effort heuristics.
type executiveGenerator struct {
	cfg common.GeneratorConfig
}

var _ interfaces.Generator = (*executiveGenerator)(nil)

func (g *executiveGenerator) Build(report *models.ReportRecord, set *models.RecommendationSet) (*models.ReportModel, error) {
	model := newBaseModel(report, set, "Executive Summary Report")

	records := setRecords(set)

	// Ranking: impact first, then savings. Stable so equal entries keep
	// source order and the model stays deterministic.
	ranked := make([]models.RecommendationRecord, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := impactRank(ranked[i].Impact), impactRank(ranked[j].Impact)
		if ri != rj {
			return ri < rj
		}
		return ranked[i].MonthlySavings > ranked[j].MonthlySavings
	})

	topN := g.cfg.TopN
	if topN <= 0 {
		topN = 5
	}
	if topN > len(ranked) {
		topN = len(ranked)
	}

	exec := &models.ExecutiveModel{
		TopRecommendations: ranked[:topN],
	}

	for _, rec := range records {
		if rec.Impact == models.ImpactHigh {
			exec.HighImpactCount++
		}
		exec.Roadmap = append(exec.Roadmap, models.RoadmapItem{
			Recommendation: rec,
			Horizon:        g.horizon(rec),
		})
	}

	model.Executive = exec
	model.Charts = append(model.Charts, impactChart(model.Summary), roadmapChart(exec.Roadmap))

	return model, nil
}

// horizon buckets one recommendation. Effort dominates; a high impact
// finding with no effort estimate still counts as a quick win since it has
// nothing blocking immediate action.
func (g *executiveGenerator) horizon(rec models.RecommendationRecord) models.RoadmapHorizon {
	switch {
	case rec.EffortHours <= g.cfg.QuickWinMaxEffortHours:
		return models.HorizonQuickWin
	case rec.EffortHours > g.cfg.StrategicMinEffortHours:
		return models.HorizonStrategic
	default:
		return models.HorizonMidTerm
	}
}

func roadmapChart(roadmap []models.RoadmapItem) models.ChartDescriptor {
	counts := map[models.RoadmapHorizon]int{}
	for _, item := range roadmap {
		counts[item.Horizon]++
	}
	return models.ChartDescriptor{
		ID:     "roadmap_horizons",
		Kind:   models.ChartKindPie,
		Title:  "Implementation Roadmap",
		Labels: []string{"Quick Wins", "Mid-Term", "Strategic"},
		Series: []float64{
			float64(counts[models.HorizonQuickWin]),
			float64(counts[models.HorizonMidTerm]),
			float64(counts[models.HorizonStrategic]),
		},
	}
}
