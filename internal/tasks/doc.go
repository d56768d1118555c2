// Package tasks builds track stacks from seeds and keeps exposure bookkeeping consistent.
//
// # Pipeline
//
// [StackEngine.Build] runs five stages over an injected [models.ExposureStore]:
//
//  1. Snapshot : read seen containers and referenced tracks once, unioned with the request's own exclusions
//  2. [Aggregator.Resolve] : one search per seed and supporting source, newest first, unseen only, capped per seed
//  3. [TrackCollector.Expand] : fetch each container's tracklist, tag rows with provenance, dedupe by [models.TrackKey]
//  4. [EnrichmentPipeline.Enrich] : attach canonical ids, then [Refilter] since enrichment can merge keys
//  5. [StackAssembler] : name, summarize and derive the [Mutation], then commit
//
// Fan-out stages use errgroup with a concurrency limit and write results into per-index slots,
// so output order never depends on completion order. A failing source or lookup only drops its own contribution.
// Nothing is committed unless every stage succeeds and the context is still live.
//
// # Reclamation
//
// [Reclaim] is a pure mark-and-sweep: a key survives a deletion iff it was not in the deleted stack or
// another stack still holds it. [Evict] and [ApplyCommit] reuse it so history eviction reclaims the same way.
// Store implementations call these inside their own transaction.
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Sends use select with default and never block.
//
// # Export
//
// [StackEngine.BulkExport] writes stacks through a worker pool using the formatter package and records a manifest.
package tasks
