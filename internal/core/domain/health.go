package domain

import "time"

// HealthStatus is the state of a source or the service.
type HealthStatus string

// Health states.
const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthError     HealthStatus = "error"
)

// SystemHealth is the result of probing one memory source.
type SystemHealth struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	Latency   float64      `json:"latency"`
	LastCheck time.Time    `json:"last_check"`
	Error     string       `json:"error,omitempty"`
}

// HealthReport aggregates the health of all enabled sources.
type HealthReport struct {
	Service        string         `json:"service"`
	Status         HealthStatus   `json:"status"`
	Version        string         `json:"version"`
	Uptime         float64        `json:"uptime"`
	Systems        []SystemHealth `json:"systems"`
	HealthySystems int            `json:"healthy_systems"`
	TotalSystems   int            `json:"total_systems"`
	Timestamp      time.Time      `json:"timestamp"`
}

// NewHealthReport summarises probe results. The service is healthy
// when at least one source is healthy.
func NewHealthReport(service, version string, uptime time.Duration, systems []SystemHealth) HealthReport {
	healthy := 0
	for _, s := range systems {
		if s.Status == HealthHealthy {
			healthy++
		}
	}

	status := HealthUnhealthy
	if healthy > 0 {
		status = HealthHealthy
	}

	if systems == nil {
		systems = []SystemHealth{}
	}

	return HealthReport{
		Service:        service,
		Status:         status,
		Version:        version,
		Uptime:         uptime.Seconds(),
		Systems:        systems,
		HealthySystems: healthy,
		TotalSystems:   len(systems),
		Timestamp:      time.Now(),
	}
}

// IsHealthy reports whether at least one source is healthy.
func (r HealthReport) IsHealthy() bool {
	return r.Status == HealthHealthy
}
