package domain

// QueryType is the heuristic classification of a query.
type QueryType string

// Query types produced by the analyzer.
const (
	QueryTypeGeneral     QueryType = "general"
	QueryTypeExplanatory QueryType = "explanatory"
	QueryTypeTemporal    QueryType = "temporal"
	QueryTypeEntity      QueryType = "entity"
	QueryTypeDocument    QueryType = "document"
)

// Complexity is the analyzer's estimate of how broad a query is.
type Complexity string

// Complexity levels.
const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// QueryAnalysis is the routing recommendation for a query.
type QueryAnalysis struct {
	QueryType          QueryType  `json:"query_type"`
	Complexity         Complexity `json:"complexity"`
	RequiresContext    bool       `json:"requires_context"`
	BroadSearch        bool       `json:"broad_search"`
	RecommendedSources []string   `json:"recommended_sources"`
	RecommendedMode    QueryMode  `json:"recommended_mode"`
	FeaturesNeeded     []string   `json:"features_needed"`
}
