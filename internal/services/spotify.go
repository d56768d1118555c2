// Spotify catalog search implementation of [Enricher]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL   = "https://accounts.spotify.com/api/token"
	spotifyBaseURL    = "https://api.spotify.com/v1"
	spotifySearchSize = 5
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	ExternalIDs  externalIDs     `json:"external_ids"`
	ExternalURLs externalURLs    `json:"external_urls"`
	Popularity   int             `json:"popularity"`
	URI          string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifySearchResponse is the body of /search?type=track.
type SpotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
		Total int            `json:"total"`
	} `json:"tracks"`
}

// SpotifyEnricher implements [Enricher] with the Spotify search endpoint.
//
// Authentication uses the client-credentials flow; [clientcredentials.Config] refreshes the app token on demand.
type SpotifyEnricher struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// SpotifyOpts configures [NewSpotifyEnricher].
type SpotifyOpts struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	RateLimit    float64 // requests per second, 0 disables limiting
	HTTPClient   *http.Client
}

// NewSpotifyEnricher creates a Spotify enricher with the given app credentials.
func NewSpotifyEnricher(opts SpotifyOpts) (*SpotifyEnricher, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
	}
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingCredentials)
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	config := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     tokenURL,
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 15 * time.Second}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &SpotifyEnricher{
		baseURL:    baseURL,
		httpClient: config.Client(ctx),
		limiter:    limiter,
	}, nil
}

// Lookup searches for artist/title and returns the first confident match.
func (s *SpotifyEnricher) Lookup(ctx context.Context, artist, title string) (*models.Match, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}

	tracks, err := s.Search(ctx, artist, title)
	if err != nil {
		return nil, err
	}

	for _, tr := range tracks {
		if confidentMatch(tr, artist, title) {
			return &models.Match{CanonicalID: tr.URI, PlaybackURL: tr.ExternalURLs.Spotify}, nil
		}
	}
	return nil, nil
}

// Search runs a field-filtered track search and returns the raw candidates.
func (s *SpotifyEnricher) Search(ctx context.Context, artist, title string) ([]SpotifyTrack, error) {
	q := fmt.Sprintf(`track:"%s"`, fieldValue(title))
	if a := fieldValue(artist); a != "" {
		q += fmt.Sprintf(` artist:"%s"`, a)
	}

	v := url.Values{}
	v.Set("q", q)
	v.Set("type", "track")
	v.Set("limit", fmt.Sprint(spotifySearchSize))

	var response SpotifySearchResponse
	if err := s.doRequest(ctx, "/search?"+v.Encode(), &response); err != nil {
		return nil, err
	}
	return response.Tracks.Items, nil
}

// fieldValue makes s safe inside a quoted search field filter.
func fieldValue(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, `"`, " ")), " ")
}

// doRequest performs an authenticated GET request to the Spotify API.
func (s *SpotifyEnricher) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: spotify request failed: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify rejected credentials", shared.ErrAuthFailed)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	return decodeJSON(resp, result)
}

var bracketed = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)

// normalizeTitle drops bracketed qualifiers ("(Original Mix)", "[Remastered]") and " - " edit suffixes.
func normalizeTitle(s string) string {
	s = bracketed.ReplaceAllString(s, "")
	if before, _, found := strings.Cut(s, " - "); found {
		s = before
	}
	return shared.NormalizeText(s)
}

// confidentMatch requires an equal normalized title and a candidate artist that equals or contains the queried one.
func confidentMatch(tr SpotifyTrack, artist, title string) bool {
	if normalizeTitle(tr.Name) != normalizeTitle(title) {
		return false
	}

	want := shared.NormalizeText(artist)
	if want == "" {
		return true
	}
	for _, a := range tr.Artists {
		got := shared.NormalizeText(a.Name)
		if got == want || strings.Contains(got, want) {
			return true
		}
	}
	return false
}
