package generator

import (
	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/interfaces"
	"github.com/ternarybob/refero/internal/models"
)

// securityGenerator produces the 0-100 posture score, critical-issue
// extraction, compliance framework mapping and the urgency-bucketed
// remediation timeline.
type securityGenerator struct {
	cfg common.GeneratorConfig
}

var _ interfaces.Generator = (*securityGenerator)(nil)

func (g *securityGenerator) Build(report *models.ReportRecord, set *models.RecommendationSet) (*models.ReportModel, error) {
	model := newBaseModel(report, set, "Security Posture Report")

	security := filterByCategory(set, models.CategorySecurity)

	sec := &models.SecurityModel{
		PostureScore: g.postureScore(security),
	}

	for _, rec := range security {
		switch rec.Impact {
		case models.ImpactHigh:
			sec.CriticalIssues = append(sec.CriticalIssues, rec)
			sec.Remediation = append(sec.Remediation, models.RemediationEntry{Recommendation: rec, Urgency: "immediate"})
		case models.ImpactMedium:
			sec.Remediation = append(sec.Remediation, models.RemediationEntry{Recommendation: rec, Urgency: "30_days"})
		default:
			sec.Remediation = append(sec.Remediation, models.RemediationEntry{Recommendation: rec, Urgency: "90_days"})
		}
	}

	frameworks, err := loadTaxonomy()
	if err != nil {
		return nil, models.WrapKind(models.ErrGeneration, "taxonomy load failed: %v", err)
	}

	for _, fw := range frameworks {
		for _, control := range fw.Controls {
			mapping := models.ComplianceMapping{
				Framework: fw.Name,
				Control:   control.Control,
			}
			for _, cat := range control.Categories {
				mapping.Findings = append(mapping.Findings, filterByCategory(set, cat)...)
			}
			if len(mapping.Findings) > 0 {
				sec.Compliance = append(sec.Compliance, mapping)
			}
		}
	}

	model.Security = sec
	model.Charts = append(model.Charts, postureChart(sec.PostureScore))

	return model, nil
}

// postureScore is a weighted inverse of unresolved high and medium
// findings, clamped to [0,100]. An empty set scores a clean 100.
func (g *securityGenerator) postureScore(findings []models.RecommendationRecord) int {
	score := 100
	for _, rec := range findings {
		switch rec.Impact {
		case models.ImpactHigh:
			score -= g.cfg.SecurityHighWeight
		case models.ImpactMedium:
			score -= g.cfg.SecurityMediumWeight
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func postureChart(score int) models.ChartDescriptor {
	return models.ChartDescriptor{
		ID:     "posture_score",
		Kind:   models.ChartKindDoughnut,
		Title:  "Security Posture Score",
		Labels: []string{"Score", "Gap"},
		Series: []float64{float64(score), float64(100 - score)},
	}
}
