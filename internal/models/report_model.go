package models

import "time"

// ReportModel is the structured output of a content generator: aggregates,
// rankings and scores for one report type, ready for template rendering.
// Generators are pure, so identical input always yields an identical model.
type ReportModel struct {
	ReportID    string     `json:"report_id"`
	Type        ReportType `json:"type"`
	Title       string     `json:"title"`
	GeneratedAt time.Time  `json:"generated_at"`

	// Empty marks the defined empty-state for reports generated from an
	// empty recommendation set.
	Empty bool `json:"empty"`

	Summary SummaryStats `json:"summary"`

	// Type-specific payloads. Only the payload matching Type is populated.
	Detailed    *DetailedModel    `json:"detailed,omitempty"`
	Executive   *ExecutiveModel   `json:"executive,omitempty"`
	Cost        *CostModel        `json:"cost,omitempty"`
	Security    *SecurityModel    `json:"security,omitempty"`
	Operational *OperationalModel `json:"operational,omitempty"`

	Charts []ChartDescriptor `json:"charts,omitempty"`
}

// SummaryStats are the coarse rollups shared by every report type.
type SummaryStats struct {
	TotalFindings       int                  `json:"total_findings"`
	ByCategory          map[Category]int     `json:"by_category"`
	ByImpact            map[Impact]int       `json:"by_impact"`
	TotalMonthlySavings float64              `json:"total_monthly_savings"`
	Currency            string               `json:"currency,omitempty"`
	SavingsByCategory   map[Category]float64 `json:"savings_by_category,omitempty"`
}

// DetailedModel is the full itemized listing with the category/impact
// cross-tabulation.
type DetailedModel struct {
	Items    []RecommendationRecord      `json:"items"`
	Crosstab map[Category]map[Impact]int `json:"crosstab"`
}

// RoadmapHorizon buckets a recommendation by implementation horizon.
type RoadmapHorizon string

const (
	HorizonQuickWin  RoadmapHorizon = "quick_win"
	HorizonMidTerm   RoadmapHorizon = "mid_term"
	HorizonStrategic RoadmapHorizon = "strategic"
)

// RoadmapItem is one recommendation placed on the qualitative roadmap.
type RoadmapItem struct {
	Recommendation RecommendationRecord `json:"recommendation"`
	Horizon        RoadmapHorizon       `json:"horizon"`
}

// ExecutiveModel holds the top-N ranking, coarse KPIs and the roadmap.
type ExecutiveModel struct {
	TopRecommendations []RecommendationRecord `json:"top_recommendations"`
	HighImpactCount    int                    `json:"high_impact_count"`
	Roadmap            []RoadmapItem          `json:"roadmap"`
}

// ROIProjection is the payback estimate for one cost recommendation.
type ROIProjection struct {
	Recommendation     RecommendationRecord `json:"recommendation"`
	ImplementationCost float64              `json:"implementation_cost"`
	PaybackMonths      float64              `json:"payback_months"`
}

// CostModel holds savings totals, ROI projections and the quick-win filter.
type CostModel struct {
	TotalMonthlySavings  float64                `json:"total_monthly_savings"`
	TotalAnnualSavings   float64                `json:"total_annual_savings"`
	ThreeYearCumulative  float64                `json:"three_year_cumulative"`
	Projections          []ROIProjection        `json:"projections"`
	QuickWins            []RecommendationRecord `json:"quick_wins"`
	StrategicInitiatives []RecommendationRecord `json:"strategic_initiatives"`
}

// ComplianceMapping groups findings under one compliance framework control.
type ComplianceMapping struct {
	Framework string                 `json:"framework"`
	Control   string                 `json:"control"`
	Findings  []RecommendationRecord `json:"findings"`
}

// RemediationEntry places a security finding on the remediation timeline.
type RemediationEntry struct {
	Recommendation RecommendationRecord `json:"recommendation"`
	Urgency        string               `json:"urgency"` // immediate, 30_days, 90_days
}

// SecurityModel holds the posture score, critical issues, compliance
// mapping and remediation timeline.
type SecurityModel struct {
	PostureScore   int                    `json:"posture_score"` // 0-100
	CriticalIssues []RecommendationRecord `json:"critical_issues"`
	Compliance     []ComplianceMapping    `json:"compliance"`
	Remediation    []RemediationEntry     `json:"remediation"`
}

// OperationalModel holds reliability and performance oriented rollups.
type OperationalModel struct {
	ReliabilityFindings []RecommendationRecord `json:"reliability_findings"`
	PerformanceFindings []RecommendationRecord `json:"performance_findings"`
	ExcellenceFindings  []RecommendationRecord `json:"excellence_findings"`
	ResourcesAffected   int                    `json:"resources_affected"`
}

// ChartKind is the visualization type of a chart descriptor.
type ChartKind string

const (
	ChartKindBar      ChartKind = "bar"
	ChartKindPie      ChartKind = "pie"
	ChartKindDoughnut ChartKind = "doughnut"
	ChartKindLine     ChartKind = "line"
)

// ChartDescriptor is a declarative visualization instruction. Engines decide
// how to realize it: the browser engine renders it live with the embedded
// chart runtime, the static engine degrades it to a data table.
type ChartDescriptor struct {
	ID     string    `json:"id"`
	Kind   ChartKind `json:"kind"`
	Title  string    `json:"title"`
	Labels []string  `json:"labels"`
	Series []float64 `json:"series"`
}
