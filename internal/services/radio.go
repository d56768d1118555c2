// Radio-episode catalog adapter
//
// Response types follow the public NTS v2 API (search, search/episodes, tracklist).
package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/stackr/internal/models"
)

const (
	radioIDPrefix     = "nts:"
	defaultRadioLimit = 12
)

// NTSEpisode is a search hit from the episode catalog.
type NTSEpisode struct {
	Title        string `json:"title"`
	ArticleType  string `json:"article_type"`
	LocalDate    string `json:"local_date"`
	Path         string `json:"path"`
	LocationLong string `json:"location_long"`
}

// NTSSearchResponse wraps both the free-text and the genre search endpoints.
type NTSSearchResponse struct {
	Results []NTSEpisode `json:"results"`
}

// NTSTrack is a tracklist row.
type NTSTrack struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// NTSTracklistResponse is the body of an episode's tracklist endpoint.
type NTSTracklistResponse struct {
	Results []NTSTrack `json:"results"`
}

// RadioService implements [SourceAdapter] against an NTS-style JSON catalog.
//
// Track seeds become free-text searches, genre seeds become genre-filtered episode searches.
type RadioService struct {
	client   *Client
	pageSize int
}

// NewRadioService creates a radio adapter. A non-positive pageSize uses the default of 12.
func NewRadioService(client *Client, pageSize int) *RadioService {
	if pageSize <= 0 {
		pageSize = defaultRadioLimit
	}
	return &RadioService{client: client, pageSize: pageSize}
}

func (s *RadioService) Name() string            { return "nts" }
func (s *RadioService) Kind() models.SourceKind { return models.SourceRadio }
func (s *RadioService) MaxContainers() int      { return s.pageSize }

func (s *RadioService) Supports(seed models.Seed) bool {
	switch seed.Kind {
	case models.SeedTrack:
		return seed.Query() != ""
	case models.SeedGenre:
		return strings.TrimSpace(seed.GenreID) != ""
	default:
		return false
	}
}

// Search queries episodes for the seed.
func (s *RadioService) Search(ctx context.Context, seed models.Seed) ([]models.Container, error) {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(s.pageSize))

	var path string
	switch seed.Kind {
	case models.SeedTrack:
		v.Set("q", seed.Query())
		v.Add("types[]", "episode")
		path = "/api/v2/search?" + v.Encode()
	case models.SeedGenre:
		v.Add("genres[]", seed.GenreID)
		path = "/api/v2/search/episodes?" + v.Encode()
	default:
		return nil, fmt.Errorf("%w: %d", models.ErrUnknownSeedKind, int(seed.Kind))
	}

	var response NTSSearchResponse
	if err := s.client.GetJSON(ctx, path, &response); err != nil {
		return nil, fmt.Errorf("nts search %s: %w", seed.Key(), err)
	}

	containers := make([]models.Container, 0, len(response.Results))
	for _, ep := range response.Results {
		if ep.Path == "" || (ep.ArticleType != "" && ep.ArticleType != "episode") {
			continue
		}
		containers = append(containers, models.Container{
			ID:          radioIDPrefix + ep.Path,
			Title:       strings.TrimSpace(ep.Title),
			PublishedAt: parseEpisodeDate(ep.LocalDate),
			Source:      models.SourceRadio,
			SourceSeed:  seed,
			Venue:       ep.LocationLong,
			URL:         s.client.BaseURL() + ep.Path,
		})
	}

	return containers, nil
}

// Expand fetches the episode's tracklist.
func (s *RadioService) Expand(ctx context.Context, container models.Container) ([]models.RawTrack, error) {
	episodePath, ok := strings.CutPrefix(container.ID, radioIDPrefix)
	if !ok || container.Source != models.SourceRadio {
		return nil, fmt.Errorf("nts: container %q does not belong to this source", container.ID)
	}

	var response NTSTracklistResponse
	if err := s.client.GetJSON(ctx, "/api/v2"+episodePath+"/tracklist", &response); err != nil {
		return nil, fmt.Errorf("nts tracklist %s: %w", episodePath, err)
	}

	tracks := make([]models.RawTrack, 0, len(response.Results))
	for _, tr := range response.Results {
		tracks = append(tracks, models.RawTrack{
			Artist: strings.TrimSpace(tr.Artist),
			Title:  strings.TrimSpace(tr.Title),
		})
	}
	return tracks, nil
}

// parseEpisodeDate accepts the catalog's date-only and RFC 3339 forms. Unknown forms sort last.
func parseEpisodeDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
