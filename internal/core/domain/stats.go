package domain

// QueryStats are process-lifetime query counters.
type QueryStats struct {
	TotalQueries    int64            `json:"total_queries"`
	FailedQueries   int64            `json:"failed_queries"`
	QueriesByMode   map[string]int64 `json:"queries_by_mode"`
	QueriesBySource map[string]int64 `json:"queries_by_source"`

	// AverageLatency is the moving average in seconds.
	AverageLatency float64 `json:"average_latency"`

	// CacheHitRate is copied from the result cache when stats are read.
	CacheHitRate float64 `json:"cache_hit_rate"`

	// ErrorRate is FailedQueries / TotalQueries.
	ErrorRate float64 `json:"error_rate"`
}

// CacheStats are result cache counters.
type CacheStats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	TotalRequests int64   `json:"total_requests"`
	Size          int     `json:"size"`
	Backend       string  `json:"backend"`
}
