// Package models defines domain entities and the persistence interface for the stack builder.
//
// The package contains three categories of types:
//
// 1. Queries: what the user asks for
//   - [Seed] : tagged variant of a track query (artist/title) or a genre query
//   - [SeedKind] : the variant tag, matched with exhaustive switches
//
// 2. Source data: what adapters return
//   - [Container] : an episode or DJ set, tagged with its [SourceKind] and the seed that found it
//   - [RawTrack] : a tracklist row as scraped
//   - [Track] : a row with provenance, a per-container LocalUID and optional canonical id
//   - [Match] : an enricher's confident lookup result
//
// 3. Exposure: what has already been surfaced
//   - [Stack] : the immutable result of one build
//   - [ExposureState] : seen containers, referenced track keys and stack history
//   - [ExposureStore] : the storage interface implemented in the repositories package
//
// A [Track] is identified by its [TrackKey]: the canonical id when enriched, else the normalized artist|title pair.
package models
