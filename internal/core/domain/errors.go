package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown memory source kind.
	ErrUnsupportedType = errors.New("unsupported type")

	// Memory source errors.

	// ErrSourceUnavailable indicates a memory source could not be reached
	// or returned a transport-level failure.
	ErrSourceUnavailable = errors.New("memory source unavailable")

	// ErrSourceTimeout indicates a memory source call exceeded its timeout.
	ErrSourceTimeout = errors.New("memory source timed out")

	// ErrUnknownSource indicates a source name that is not configured.
	ErrUnknownSource = errors.New("unknown memory source")

	// ErrSourceDisabled indicates a configured source that is switched off.
	ErrSourceDisabled = errors.New("memory source disabled")

	// ErrNotInitialized indicates an adapter was used before Initialize.
	ErrNotInitialized = errors.New("memory source not initialized")

	// ErrRateLimited indicates the per-source rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Cache errors.

	// ErrCacheUnavailable indicates the cache backend cannot be reached.
	// The orchestrator treats this as a miss and queries sources directly.
	ErrCacheUnavailable = errors.New("cache backend unavailable")

	// ErrCacheMiss indicates the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
)
