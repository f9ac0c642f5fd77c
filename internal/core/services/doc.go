// Package services implements the driving port interfaces.
// Services contain the query orchestration logic (fan-out, retries,
// ranking, caching) and call memory sources only through driven ports.
//
// Services are pure Go with no CGO; source adapters are injected.
package services
