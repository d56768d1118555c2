// Package services implements the source adapters and the track enricher consumed by the stack builder.
//
// # Source Adapters
//
// Every content source implements [SourceAdapter]: Search turns a [models.Seed] into candidate containers,
// Expand turns one container into its tracklist.
//
//   - [RadioService] : NTS-style JSON episode catalog, answering track seeds (free text) and genre seeds (genre filter)
//   - [DJSetService] : 1001Tracklists-style HTML pages, answering track seeds that name an artist, one set per seed
//
// Both adapters namespace container ids ("nts:/shows/x/episodes/y", "1001tl:abc123") so ids never collide across sources.
//
// # Enrichment
//
// [SpotifyEnricher] implements [Enricher] with the client-credentials OAuth2 flow and the catalog search endpoint.
// A candidate is accepted only when its normalized title matches and one of its artists equals or contains the
// queried artist. Anything else is a miss, which is not an error.
//
// [CachedEnricher] decorates any [Enricher] with an [EnrichmentCache] so repeated builds do not repeat lookups.
//
// # HTTP
//
// [Client] is the shared GET client: fixed User-Agent, timeout, optional [rate.Limiter] for politeness.
// Non-2xx responses wrap [shared.ErrAPIRequest] with the status code.
package services
