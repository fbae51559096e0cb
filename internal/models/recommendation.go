package models

import "time"

// Category classifies a recommendation by advisory pillar.
type Category string

const (
	CategoryCost                  Category = "cost"
	CategorySecurity              Category = "security"
	CategoryReliability           Category = "reliability"
	CategoryOperationalExcellence Category = "operational_excellence"
	CategoryPerformance           Category = "performance"
)

// Categories lists all advisory pillars in display order.
var Categories = []Category{
	CategoryCost,
	CategorySecurity,
	CategoryReliability,
	CategoryOperationalExcellence,
	CategoryPerformance,
}

// Impact is the severity of a recommendation.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Impacts lists impact levels from most to least severe.
var Impacts = []Impact{ImpactHigh, ImpactMedium, ImpactLow}

// RecommendationRecord is one atomic advisory finding. Records are owned by
// the upstream ingestion collaborator and are read-only to the pipeline.
type RecommendationRecord struct {
	ID             string   `json:"id"`
	Category       Category `json:"category"`
	Impact         Impact   `json:"impact"`
	Text           string   `json:"text"`
	Resource       string   `json:"resource"`
	MonthlySavings float64  `json:"monthly_savings,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	EffortHours    float64  `json:"effort_hours,omitempty"`
}

// RecommendationSet is an immutable collection of findings keyed by the
// report identity that owns it.
type RecommendationSet struct {
	ID        string                 `json:"id" badgerhold:"key"`
	Records   []RecommendationRecord `json:"records"`
	CreatedAt time.Time              `json:"created_at"`
}

// IsEmpty returns true when the set holds no findings. Generators must
// produce a valid empty-state model for empty sets rather than fail.
func (s *RecommendationSet) IsEmpty() bool {
	return s == nil || len(s.Records) == 0
}
