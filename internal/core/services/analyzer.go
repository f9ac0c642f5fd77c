package services

import (
	"slices"
	"strings"
	"unicode"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// complexTokenThreshold is the token count above which a query is complex.
const complexTokenThreshold = 10

// queryTypeRule maps trigger words to a query type. Rules are checked in order.
type queryTypeRule struct {
	queryType domain.QueryType
	terms     []string
}

var queryTypeRules = []queryTypeRule{
	{domain.QueryTypeExplanatory, []string{"how", "why", "explain"}},
	{domain.QueryTypeTemporal, []string{"when", "date", "time"}},
	{domain.QueryTypeEntity, []string{"who", "person", "user"}},
	{domain.QueryTypeDocument, []string{"document", "file", "pdf"}},
}

// booleanOperators are matched case-sensitively, as written by the user.
var booleanOperators = []string{"AND", "OR", "NOT"}

// routingRecommendation is the source and feature preference for a query type.
type routingRecommendation struct {
	sources  []string
	features []string
}

var routingByType = map[domain.QueryType]routingRecommendation{
	domain.QueryTypeExplanatory: {
		sources:  []string{"cognee", "llamacloud"},
		features: []string{domain.FeatureSemanticSearch, domain.FeatureConceptLinking},
	},
	domain.QueryTypeDocument: {
		sources:  []string{"llamacloud", "memos"},
		features: []string{domain.FeatureDocumentSearch, domain.FeatureStructuredExtraction},
	},
	domain.QueryTypeEntity: {
		sources:  []string{"memos", "cognee"},
		features: []string{domain.FeatureUserContext, domain.FeatureGraphTraversal},
	},
}

var defaultRouting = routingRecommendation{
	sources:  []string{"cognee", "llamacloud", "memos"},
	features: []string{domain.FeatureSemanticSearch, domain.FeatureFastRetrieval},
}

// QueryAnalyzer classifies queries and recommends how to route them.
// It is stateless and safe for concurrent use.
type QueryAnalyzer struct{}

// NewQueryAnalyzer creates a query analyzer.
func NewQueryAnalyzer() *QueryAnalyzer {
	return &QueryAnalyzer{}
}

// Analyze classifies the query.
func (a *QueryAnalyzer) Analyze(query string) domain.QueryAnalysis {
	analysis := domain.QueryAnalysis{
		QueryType:  domain.QueryTypeGeneral,
		Complexity: domain.ComplexitySimple,
	}

	words := wordsOf(query)
	for _, rule := range queryTypeRules {
		if matchesAny(words, rule.terms) {
			analysis.QueryType = rule.queryType
			break
		}
	}
	analysis.RequiresContext = analysis.QueryType == domain.QueryTypeExplanatory

	if len(strings.Fields(query)) > complexTokenThreshold || containsOperator(query) {
		analysis.Complexity = domain.ComplexityComplex
		analysis.BroadSearch = true
	}

	routing, ok := routingByType[analysis.QueryType]
	if !ok {
		routing = defaultRouting
	}
	analysis.RecommendedSources = slices.Clone(routing.sources)
	analysis.FeaturesNeeded = slices.Clone(routing.features)

	switch {
	case analysis.RequiresContext:
		analysis.RecommendedMode = domain.QueryModeSequential
	case analysis.BroadSearch:
		analysis.RecommendedMode = domain.QueryModeUnified
	default:
		analysis.RecommendedMode = domain.QueryModeSmart
	}

	return analysis
}

// SelectSources picks sources for a smart query: recommended sources that
// are available, then available sources with any needed feature, else all
// available sources. Order within each group follows the input.
func (a *QueryAnalyzer) SelectSources(analysis domain.QueryAnalysis, available []domain.SourceConfig) []domain.SourceConfig {
	selected := make([]domain.SourceConfig, 0, len(available))
	taken := make(map[string]bool, len(available))

	for _, name := range analysis.RecommendedSources {
		for _, src := range available {
			if src.Name == name && !taken[name] {
				selected = append(selected, src)
				taken[name] = true
			}
		}
	}

	for _, src := range available {
		if !taken[src.Name] && src.HasAnyFeature(analysis.FeaturesNeeded) {
			selected = append(selected, src)
			taken[src.Name] = true
		}
	}

	if len(selected) == 0 {
		return slices.Clone(available)
	}
	return selected
}

// wordsOf lower-cases the query and splits it on anything that is not a letter or digit.
func wordsOf(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// matchesAny reports whether any word is one of the terms, its plural,
// or, for longer terms, an inflection ("explaining", "documents").
func matchesAny(words, terms []string) bool {
	for _, w := range words {
		for _, t := range terms {
			if w == t || w == t+"s" || (len(t) >= 5 && strings.HasPrefix(w, t)) {
				return true
			}
		}
	}
	return false
}

func containsOperator(query string) bool {
	for _, tok := range strings.Fields(query) {
		if slices.Contains(booleanOperators, tok) {
			return true
		}
	}
	return false
}
