package tasks

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
)

// Mutation is the exposure change a committed stack applies.
type Mutation struct {
	Stack                 *models.Stack     `json:"-"`
	NewlySeenContainers   []string          `json:"newlySeenContainers"`
	NewlyReferencedTracks []models.TrackKey `json:"newlyReferencedTracks"`
}

// StackAssembler builds the stack object and its exposure mutation.
type StackAssembler struct {
	now   func() time.Time
	newID func() string
}

// NewStackAssembler creates an assembler with time-ordered UUIDv7 ids.
func NewStackAssembler() *StackAssembler {
	return &StackAssembler{now: time.Now, newID: shared.GenerateOrderedID}
}

// Assemble builds a stack from the final tracks. containersUsed is reduced to the containers that contributed a track.
func (a *StackAssembler) Assemble(seeds []models.Seed, tracks []models.Track, containersUsed []models.Container) *models.Stack {
	contributing := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		contributing[t.ContainerID] = struct{}{}
	}

	used := make([]models.Container, 0, len(containersUsed))
	for _, c := range containersUsed {
		if _, ok := contributing[c.ID]; ok {
			used = append(used, c)
			delete(contributing, c.ID)
		}
	}

	artists, genres := seedNames(seeds)

	return &models.Stack{
		ID:             a.newID(),
		CreatedAt:      a.now().UTC(),
		Name:           StackName(artists, genres),
		Summary:        StackSummary(len(tracks), used, append(artists, genres...)),
		Sources:        slices.Clone(seeds),
		Tracks:         slices.Clone(tracks),
		ContainersUsed: used,
	}
}

// Mutation returns the exposure change for stack. exhausted lists containers that were expanded
// but contributed nothing; they are marked seen so they stop occupying per-seed slots.
func (a *StackAssembler) Mutation(stack *models.Stack, exhausted ...models.Container) Mutation {
	seen := make([]string, 0, len(stack.ContainersUsed)+len(exhausted))
	ids := make(map[string]struct{})
	for _, c := range append(slices.Clone(stack.ContainersUsed), exhausted...) {
		if _, dup := ids[c.ID]; dup {
			continue
		}
		ids[c.ID] = struct{}{}
		seen = append(seen, c.ID)
	}

	refs := make([]models.TrackKey, 0, len(stack.Tracks))
	keys := make(map[models.TrackKey]struct{})
	for _, t := range stack.Tracks {
		k := t.Key()
		if _, dup := keys[k]; dup {
			continue
		}
		keys[k] = struct{}{}
		refs = append(refs, k)
	}

	return Mutation{Stack: stack, NewlySeenContainers: seen, NewlyReferencedTracks: refs}
}

// seedNames splits seeds into distinct artist names and distinct genre display names, in input order.
func seedNames(seeds []models.Seed) (artists, genres []string) {
	seenArtist := make(map[string]struct{})
	seenGenre := make(map[string]struct{})

	for _, s := range seeds {
		switch s.Kind {
		case models.SeedTrack:
			name := strings.TrimSpace(s.Artist)
			if name == "" {
				continue
			}
			k := shared.NormalizeText(name)
			if _, ok := seenArtist[k]; ok {
				continue
			}
			seenArtist[k] = struct{}{}
			artists = append(artists, name)
		case models.SeedGenre:
			name := s.DisplayGenre()
			if name == "" {
				continue
			}
			k := shared.NormalizeText(name)
			if _, ok := seenGenre[k]; ok {
				continue
			}
			seenGenre[k] = struct{}{}
			genres = append(genres, name)
		}
	}
	return artists, genres
}

// StackName derives a display name from the seed names.
func StackName(artists, genres []string) string {
	a, g := len(artists), len(genres)

	switch {
	case a > 0 && g > 0:
		switch {
		case a == 1 && g == 1:
			return fmt.Sprintf("%s + %s", artists[0], genres[0])
		case g == 1:
			return fmt.Sprintf("%s & More + %s", artists[0], genres[0])
		case a == 1:
			return fmt.Sprintf("%s + %s Mix", artists[0], genres[0])
		default:
			return fmt.Sprintf("%s + %s & More", artists[0], genres[0])
		}
	case a > 0:
		switch a {
		case 1:
			return artists[0] + " Mix"
		case 2:
			return fmt.Sprintf("%s + %s", artists[0], artists[1])
		default:
			return fmt.Sprintf("%s & %d More", artists[0], a-1)
		}
	case g > 0:
		switch g {
		case 1:
			return genres[0] + " Stack"
		case 2:
			return fmt.Sprintf("%s + %s", genres[0], genres[1])
		default:
			return genres[0] + " Mix"
		}
	default:
		return "Music Stack"
	}
}

// StackSummary renders "{N} curated tracks from {M} {source} episodes featuring {names}".
func StackSummary(trackCount int, used []models.Container, names []string) string {
	var sources []string
	seenKind := make(map[models.SourceKind]struct{})
	for _, c := range used {
		if _, ok := seenKind[c.Source]; ok {
			continue
		}
		seenKind[c.Source] = struct{}{}
		sources = append(sources, c.Source.DisplayName())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d curated %s from %d", trackCount, shared.Pluralize(trackCount, "track"), len(used))
	if len(sources) > 0 {
		b.WriteString(" " + strings.Join(sources, " & "))
	}
	b.WriteString(" " + shared.Pluralize(len(used), "episode"))

	if len(names) > 0 {
		shown := names
		if len(shown) > 2 {
			shown = shown[:2]
		}
		b.WriteString(" featuring " + strings.Join(shown, ", "))
		if rest := len(names) - len(shown); rest > 0 {
			fmt.Fprintf(&b, ", +%d more", rest)
		}
	}
	return b.String()
}
