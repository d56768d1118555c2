// Package repositories implements persistence for the stack builder.
//
// Key Implementations:
//   - [ExposureRepository] : SQLite-backed [models.ExposureStore]; commits and deletions run in one transaction
//   - [MemoryExposureStore] : mutex-guarded in-memory [models.ExposureStore] for ephemeral runs and tests
//   - [EnrichmentCacheRepository] : SQLite cache of canonical-id lookups, including misses
//
// Both exposure stores compute the next state with the pure functions in the tasks package
// ([tasks.ApplyCommit], [tasks.Reclaim]) so eviction and reclamation behave identically.
//
// Writers to a file-backed database are serialized in-process with a mutex and across processes with an
// advisory file lock next to the database. Stack order comes from a per-table sequence ([NextSequence]).
package repositories
