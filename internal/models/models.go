// package models defines the data model for the stack builder
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/stackr/internal/shared"
)

// MaxStackHistory bounds the number of stacks an [ExposureStore] keeps.
const MaxStackHistory = 50

// DefaultMaxPerSeed is the per-seed container cap used when a caller passes zero.
const DefaultMaxPerSeed = 5

var (
	ErrEmptyTrackSeed    = errors.New("track seed needs an artist or a title")
	ErrEmptyGenreSeed    = errors.New("genre seed needs a genre id")
	ErrUnknownSeedKind   = errors.New("unknown seed kind")
	ErrUnknownSourceKind = errors.New("unknown source kind")
)

// SeedKind distinguishes the variants of [Seed].
type SeedKind int

const (
	SeedTrack SeedKind = iota + 1
	SeedGenre
)

func (k SeedKind) String() string {
	switch k {
	case SeedTrack:
		return "track"
	case SeedGenre:
		return "genre"
	default:
		return ""
	}
}

func (k SeedKind) MarshalText() ([]byte, error) {
	s := k.String()
	if s == "" {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSeedKind, int(k))
	}
	return []byte(s), nil
}

func (k *SeedKind) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "track":
		*k = SeedTrack
	case "genre":
		*k = SeedGenre
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSeedKind, string(b))
	}
	return nil
}

// Seed is a user-supplied query that starts aggregation.
//
// Artist and Title are set for [SeedTrack]; GenreID and GenreName for [SeedGenre].
type Seed struct {
	Kind      SeedKind `json:"kind"`
	Artist    string   `json:"artist,omitempty"`
	Title     string   `json:"title,omitempty"`
	GenreID   string   `json:"genreId,omitempty"`
	GenreName string   `json:"genreName,omitempty"`
}

// NewTrackSeed returns a track seed. Either field may be blank, not both.
func NewTrackSeed(artist, title string) Seed {
	return Seed{Kind: SeedTrack, Artist: strings.TrimSpace(artist), Title: strings.TrimSpace(title)}
}

// NewGenreSeed returns a genre seed. name is optional display text.
func NewGenreSeed(id, name string) Seed {
	return Seed{Kind: SeedGenre, GenreID: strings.TrimSpace(id), GenreName: strings.TrimSpace(name)}
}

// Validate reports whether the seed carries enough to query a source.
func (s Seed) Validate() error {
	switch s.Kind {
	case SeedTrack:
		if strings.TrimSpace(s.Artist) == "" && strings.TrimSpace(s.Title) == "" {
			return ErrEmptyTrackSeed
		}
		return nil
	case SeedGenre:
		if strings.TrimSpace(s.GenreID) == "" {
			return ErrEmptyGenreSeed
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownSeedKind, int(s.Kind))
	}
}

// Key returns a stable identity for logging and comparison.
func (s Seed) Key() string {
	switch s.Kind {
	case SeedTrack:
		return "track:" + shared.NormalizeTrackKey(s.Artist, s.Title)
	case SeedGenre:
		return "genre:" + strings.ToLower(strings.TrimSpace(s.GenreID))
	default:
		return ""
	}
}

// Query renders the free-text search query for a track seed.
func (s Seed) Query() string {
	return strings.TrimSpace(strings.Join([]string{s.Artist, s.Title}, " "))
}

// DisplayGenre returns the genre's display name, falling back to a title-cased id.
func (s Seed) DisplayGenre() string {
	if s.GenreName != "" {
		return s.GenreName
	}
	return shared.TitleCase(s.GenreID)
}

func (s Seed) String() string {
	switch s.Kind {
	case SeedTrack:
		switch {
		case s.Artist != "" && s.Title != "":
			return s.Artist + " - " + s.Title
		case s.Artist != "":
			return s.Artist
		default:
			return s.Title
		}
	case SeedGenre:
		return s.DisplayGenre()
	default:
		return "unknown seed"
	}
}

// SourceKind tags which adapter produced a [Container].
type SourceKind int

const (
	SourceRadio SourceKind = iota + 1
	SourceDJSet
)

func (k SourceKind) String() string {
	switch k {
	case SourceRadio:
		return "radio"
	case SourceDJSet:
		return "djset"
	default:
		return ""
	}
}

// DisplayName is the human-readable name used in stack summaries.
func (k SourceKind) DisplayName() string {
	switch k {
	case SourceRadio:
		return "NTS"
	case SourceDJSet:
		return "1001Tracklists"
	default:
		return "Unknown"
	}
}

func (k SourceKind) MarshalText() ([]byte, error) {
	s := k.String()
	if s == "" {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSourceKind, int(k))
	}
	return []byte(s), nil
}

func (k *SourceKind) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "radio":
		*k = SourceRadio
	case "djset":
		*k = SourceDJSet
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSourceKind, string(b))
	}
	return nil
}

// Container is an episode or DJ set grouping tracks from one source.
//
// Only its ID is persisted in the seen set; a full copy rides along in [Stack.ContainersUsed].
type Container struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	PublishedAt time.Time  `json:"publishedAt"`
	Source      SourceKind `json:"source"`
	SourceSeed  Seed       `json:"sourceSeed"`
	Venue       string     `json:"venue,omitempty"`
	URL         string     `json:"url,omitempty"`
}

// RawTrack is a tracklist row as returned by a source.
type RawTrack struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// Blank reports whether the row carries no artist and no title.
func (r RawTrack) Blank() bool {
	return strings.TrimSpace(r.Artist) == "" && strings.TrimSpace(r.Title) == ""
}

// TrackKey is the deduplication identity of a track.
type TrackKey string

// Track is a tracklist entry tagged with the seed that surfaced it.
type Track struct {
	ContainerID string `json:"containerId"`
	Artist      string `json:"artist"`
	Title       string `json:"title"`
	LocalUID    string `json:"localUid"`
	Provenance  Seed   `json:"provenance"`
	CanonicalID string `json:"canonicalId,omitempty"`
	PlaybackURL string `json:"playbackUrl,omitempty"`
}

// LocalUID builds the per-container identity of the track at index.
func LocalUID(containerID string, index int) string {
	return fmt.Sprintf("%s#%d", containerID, index)
}

// Key returns the canonical id when present, else the normalized artist|title pair.
func (t Track) Key() TrackKey {
	if id := strings.TrimSpace(t.CanonicalID); id != "" {
		return TrackKey(id)
	}
	return TrackKey(shared.NormalizeTrackKey(t.Artist, t.Title))
}

// Match is a confident lookup result from an enricher.
type Match struct {
	CanonicalID string `json:"canonicalId"`
	PlaybackURL string `json:"playbackUrl,omitempty"`
}

// Stack is the result of one successful build. It is immutable once created.
type Stack struct {
	ID             string      `json:"id"`
	CreatedAt      time.Time   `json:"createdAt"`
	Name           string      `json:"name"`
	Summary        string      `json:"summary"`
	Sources        []Seed      `json:"sources"`
	Tracks         []Track     `json:"tracks"`
	ContainersUsed []Container `json:"containersUsed"`
}

// Keys returns the set of track keys in the stack.
func (s *Stack) Keys() map[TrackKey]struct{} {
	keys := make(map[TrackKey]struct{}, len(s.Tracks))
	for _, t := range s.Tracks {
		keys[t.Key()] = struct{}{}
	}
	return keys
}

// ContainerIDs returns the ids of the containers the stack drew from, in order.
func (s *Stack) ContainerIDs() []string {
	ids := make([]string, 0, len(s.ContainersUsed))
	for _, c := range s.ContainersUsed {
		ids = append(ids, c.ID)
	}
	return ids
}

// CachedMatch is a stored enrichment lookup. A nil Match records a miss.
type CachedMatch struct {
	Key       string    `json:"key"`
	Match     *Match    `json:"match,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}
