package generator

import (
	"testing"

	"github.com/ternarybob/refero/internal/common"
	"github.com/ternarybob/refero/internal/models"
)

func testConfig() common.GeneratorConfig {
	return common.NewDefaultConfig().Generator
}

func testReport(t models.ReportType) *models.ReportRecord {
	return &models.ReportRecord{
		ID:     "rpt_test",
		Type:   t,
		Status: models.ReportStatusPending,
	}
}

func TestBuild_AllTypes_EmptySet(t *testing.T) {
	registry := NewRegistry(testConfig())
	empty := &models.RecommendationSet{ID: "set_empty"}

	for _, reportType := range models.ReportTypes {
		t.Run(string(reportType), func(t *testing.T) {
			model, err := registry.Build(testReport(reportType), empty)
			if err != nil {
				t.Fatalf("Build failed on empty set: %v", err)
			}
			if !model.Empty {
				t.Error("expected empty-state model")
			}
			if model.Summary.TotalFindings != 0 {
				t.Errorf("expected 0 findings, got %d", model.Summary.TotalFindings)
			}
		})
	}
}

func TestBuild_NilSet(t *testing.T) {
	registry := NewRegistry(testConfig())

	for _, reportType := range models.ReportTypes {
		model, err := registry.Build(testReport(reportType), nil)
		if err != nil {
			t.Fatalf("Build(%s) failed on nil set: %v", reportType, err)
		}
		if !model.Empty {
			t.Errorf("Build(%s): expected empty-state model", reportType)
		}
	}
}

func TestBuild_UnknownType(t *testing.T) {
	registry := NewRegistry(testConfig())
	_, err := registry.Build(&models.ReportRecord{ID: "rpt_x", Type: "bogus"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown report type")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	registry := NewRegistry(testConfig())
	set := &models.RecommendationSet{
		ID: "set_1",
		Records: []models.RecommendationRecord{
			{ID: "r1", Category: models.CategoryCost, Impact: models.ImpactHigh, MonthlySavings: 1000, EffortHours: 8},
			{ID: "r2", Category: models.CategorySecurity, Impact: models.ImpactMedium},
			{ID: "r3", Category: models.CategoryPerformance, Impact: models.ImpactLow},
		},
	}

	for _, reportType := range models.ReportTypes {
		first, err := registry.Build(testReport(reportType), set)
		if err != nil {
			t.Fatalf("Build(%s): %v", reportType, err)
		}
		second, err := registry.Build(testReport(reportType), set)
		if err != nil {
			t.Fatalf("Build(%s) second run: %v", reportType, err)
		}
		if first.Summary.TotalFindings != second.Summary.TotalFindings {
			t.Errorf("Build(%s) not deterministic", reportType)
		}
		if len(first.Charts) != len(second.Charts) {
			t.Errorf("Build(%s) chart count differs between runs", reportType)
		}
	}
}

func TestCostGenerator_SavingsScenario(t *testing.T) {
	// Two recommendations: $1,000/mo at quick-win effort, $500/mo at
	// strategic effort. Annual savings must come out at $18,000 with one
	// item in each bucket.
	registry := NewRegistry(testConfig())
	set := &models.RecommendationSet{
		ID: "set_cost",
		Records: []models.RecommendationRecord{
			{ID: "r1", Category: models.CategoryCost, Impact: models.ImpactHigh, MonthlySavings: 1000, Currency: "USD", EffortHours: 8},
			{ID: "r2", Category: models.CategoryCost, Impact: models.ImpactMedium, MonthlySavings: 500, Currency: "USD", EffortHours: 200},
		},
	}

	model, err := registry.Build(testReport(models.ReportTypeCost), set)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	cost := model.Cost
	if cost == nil {
		t.Fatal("cost payload missing")
	}
	if cost.TotalAnnualSavings != 18000 {
		t.Errorf("expected annual savings 18000, got %v", cost.TotalAnnualSavings)
	}
	if cost.ThreeYearCumulative != 54000 {
		t.Errorf("expected 3-year cumulative 54000, got %v", cost.ThreeYearCumulative)
	}
	if len(cost.QuickWins) != 1 || cost.QuickWins[0].ID != "r1" {
		t.Errorf("expected one quick win (r1), got %v", cost.QuickWins)
	}
	if len(cost.StrategicInitiatives) != 1 || cost.StrategicInitiatives[0].ID != "r2" {
		t.Errorf("expected one strategic item (r2), got %v", cost.StrategicInitiatives)
	}
}

func TestCostGenerator_PaybackOrdering(t *testing.T) {
	registry := NewRegistry(testConfig())
	set := &models.RecommendationSet{
		ID: "set_payback",
		Records: []models.RecommendationRecord{
			{ID: "slow", Category: models.CategoryCost, MonthlySavings: 100, EffortHours: 100}, // 100h * 100/h / 100 = 100 months
			{ID: "fast", Category: models.CategoryCost, MonthlySavings: 1000, EffortHours: 10}, // 1 month
		},
	}

	model, err := registry.Build(testReport(models.ReportTypeCost), set)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	projections := model.Cost.Projections
	if len(projections) != 2 {
		t.Fatalf("expected 2 projections, got %d", len(projections))
	}
	if projections[0].Recommendation.ID != "fast" {
		t.Errorf("expected shortest payback first, got %s", projections[0].Recommendation.ID)
	}
	if projections[0].PaybackMonths != 1 {
		t.Errorf("expected payback 1 month, got %v", projections[0].PaybackMonths)
	}
}

func TestSecurityGenerator_PostureScore(t *testing.T) {
	tests := []struct {
		name      string
		highs     int
		mediums   int
		wantScore int
	}{
		{name: "clean slate", highs: 0, mediums: 0, wantScore: 100},
		{name: "one high", highs: 1, mediums: 0, wantScore: 85},
		{name: "mixed", highs: 2, mediums: 3, wantScore: 55},
		{name: "floor at zero", highs: 10, mediums: 10, wantScore: 0},
	}

	registry := NewRegistry(testConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := &models.RecommendationSet{ID: "set_sec"}
			for i := 0; i < tt.highs; i++ {
				set.Records = append(set.Records, models.RecommendationRecord{
					Category: models.CategorySecurity, Impact: models.ImpactHigh,
				})
			}
			for i := 0; i < tt.mediums; i++ {
				set.Records = append(set.Records, models.RecommendationRecord{
					Category: models.CategorySecurity, Impact: models.ImpactMedium,
				})
			}

			model, err := registry.Build(testReport(models.ReportTypeSecurity), set)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			if model.Security.PostureScore != tt.wantScore {
				t.Errorf("posture score = %d, want %d", model.Security.PostureScore, tt.wantScore)
			}
		})
	}
}

func TestSecurityGenerator_RemediationUrgency(t *testing.T) {
	registry := NewRegistry(testConfig())
	set := &models.RecommendationSet{
		ID: "set_rem",
		Records: []models.RecommendationRecord{
			{ID: "h", Category: models.CategorySecurity, Impact: models.ImpactHigh},
			{ID: "m", Category: models.CategorySecurity, Impact: models.ImpactMedium},
			{ID: "l", Category: models.CategorySecurity, Impact: models.ImpactLow},
		},
	}

	model, err := registry.Build(testReport(models.ReportTypeSecurity), set)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	sec := model.Security
	if len(sec.CriticalIssues) != 1 || sec.CriticalIssues[0].ID != "h" {
		t.Errorf("expected one critical issue (h), got %v", sec.CriticalIssues)
	}

	urgencies := map[string]string{}
	for _, entry := range sec.Remediation {
		urgencies[entry.Recommendation.ID] = entry.Urgency
	}
	if urgencies["h"] != "immediate" || urgencies["m"] != "30_days" || urgencies["l"] != "90_days" {
		t.Errorf("unexpected urgencies: %v", urgencies)
	}

	if len(sec.Compliance) == 0 {
		t.Error("expected at least one compliance mapping for security findings")
	}
}

func TestExecutiveGenerator_RoadmapAndTopN(t *testing.T) {
	cfg := testConfig()
	cfg.TopN = 2
	registry := NewRegistry(cfg)

	set := &models.RecommendationSet{
		ID: "set_exec",
		Records: []models.RecommendationRecord{
			{ID: "low", Category: models.CategoryCost, Impact: models.ImpactLow, EffortHours: 8},
			{ID: "big", Category: models.CategoryCost, Impact: models.ImpactHigh, MonthlySavings: 2000, EffortHours: 300},
			{ID: "mid", Category: models.CategoryReliability, Impact: models.ImpactMedium, EffortHours: 80},
		},
	}

	model, err := registry.Build(testReport(models.ReportTypeExecutive), set)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	exec := model.Executive
	if len(exec.TopRecommendations) != 2 {
		t.Fatalf("expected top 2, got %d", len(exec.TopRecommendations))
	}
	if exec.TopRecommendations[0].ID != "big" {
		t.Errorf("expected high impact first, got %s", exec.TopRecommendations[0].ID)
	}
	if exec.HighImpactCount != 1 {
		t.Errorf("expected 1 high impact, got %d", exec.HighImpactCount)
	}

	horizons := map[string]models.RoadmapHorizon{}
	for _, item := range exec.Roadmap {
		horizons[item.Recommendation.ID] = item.Horizon
	}
	if horizons["low"] != models.HorizonQuickWin {
		t.Errorf("low: expected quick win, got %s", horizons["low"])
	}
	if horizons["mid"] != models.HorizonMidTerm {
		t.Errorf("mid: expected mid-term, got %s", horizons["mid"])
	}
	if horizons["big"] != models.HorizonStrategic {
		t.Errorf("big: expected strategic, got %s", horizons["big"])
	}
}

func TestOperationalGenerator_Rollups(t *testing.T) {
	registry := NewRegistry(testConfig())
	set := &models.RecommendationSet{
		ID: "set_ops",
		Records: []models.RecommendationRecord{
			{ID: "r1", Category: models.CategoryReliability, Impact: models.ImpactHigh, Resource: "vm-1"},
			{ID: "r2", Category: models.CategoryPerformance, Impact: models.ImpactLow, Resource: "vm-1"},
			{ID: "r3", Category: models.CategoryOperationalExcellence, Impact: models.ImpactMedium, Resource: "db-1"},
			{ID: "r4", Category: models.CategoryCost, Impact: models.ImpactLow, Resource: "skipped"},
		},
	}

	model, err := registry.Build(testReport(models.ReportTypeOperational), set)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	op := model.Operational
	if len(op.ReliabilityFindings) != 1 || len(op.PerformanceFindings) != 1 || len(op.ExcellenceFindings) != 1 {
		t.Errorf("unexpected rollup sizes: %d/%d/%d",
			len(op.ReliabilityFindings), len(op.PerformanceFindings), len(op.ExcellenceFindings))
	}
	if op.ResourcesAffected != 2 {
		t.Errorf("expected 2 distinct resources, got %d", op.ResourcesAffected)
	}
}

func TestDetailedGenerator_Crosstab(t *testing.T) {
	registry := NewRegistry(testConfig())
	set := &models.RecommendationSet{
		ID: "set_detail",
		Records: []models.RecommendationRecord{
			{ID: "r1", Category: models.CategoryCost, Impact: models.ImpactHigh},
			{ID: "r2", Category: models.CategoryCost, Impact: models.ImpactHigh},
			{ID: "r3", Category: models.CategorySecurity, Impact: models.ImpactLow},
		},
	}

	model, err := registry.Build(testReport(models.ReportTypeDetailed), set)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	detail := model.Detailed
	if got := detail.Crosstab[models.CategoryCost][models.ImpactHigh]; got != 2 {
		t.Errorf("crosstab[cost][high] = %d, want 2", got)
	}
	if got := detail.Crosstab[models.CategorySecurity][models.ImpactLow]; got != 1 {
		t.Errorf("crosstab[security][low] = %d, want 1", got)
	}
	if len(detail.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(detail.Items))
	}
	// High impact items lead the listing
	if detail.Items[0].Impact != models.ImpactHigh {
		t.Errorf("expected high impact first, got %s", detail.Items[0].Impact)
	}
}
