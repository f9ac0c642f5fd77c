// Package domain defines the core business entities for memquery.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - QueryRequest / QueryResponse: a single orchestrated query
//   - QueryResult: a canonical, rankable hit from any memory source
//   - SourceConfig: a configured memory source and its call budget
//   - QueryAnalysis: the routing recommendation for a query
//   - QueryStats / CacheStats: process-wide counters
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
