// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - MemorySource: A retrieval backend (Cognee, Memento, MemOS, LlamaCloud, Neo4j, Qdrant, local)
//   - SourceFactory: Creates memory sources from configuration
//   - CacheBackend: Query response cache (in-process LRU or Redis)
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SchedulerStore: Scheduler state. Without it, task history is not kept.
//   - MemoryStore: Backs the local memory source. Without it, the local source is unavailable.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
