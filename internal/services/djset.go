// DJ-set tracklist adapter
//
// Pages are scraped with golang.org/x/net/html. Search results are "bItm" blocks linking to /tracklist/{id}/...;
// tracklist rows are "trackValue" spans holding "Artist - Title".
package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/stackr/internal/models"
	"golang.org/x/net/html"
)

const (
	djsetIDPrefix      = "1001tl:"
	unidentifiedMarker = "id"
)

// DJSetService implements [SourceAdapter] by scraping a 1001Tracklists-style site.
//
// Scraping is expensive, so each seed yields at most one set and requests go through the client's rate limiter.
type DJSetService struct {
	client *Client
}

// NewDJSetService creates a DJ-set adapter. The client should carry a politeness rate limit.
func NewDJSetService(client *Client) *DJSetService {
	return &DJSetService{client: client}
}

func (s *DJSetService) Name() string            { return "1001tracklists" }
func (s *DJSetService) Kind() models.SourceKind { return models.SourceDJSet }
func (s *DJSetService) MaxContainers() int      { return 1 }

// Supports accepts track seeds that name an artist.
func (s *DJSetService) Supports(seed models.Seed) bool {
	switch seed.Kind {
	case models.SeedTrack:
		return strings.TrimSpace(seed.Artist) != ""
	case models.SeedGenre:
		return false
	default:
		return false
	}
}

// Search scrapes the artist search page.
func (s *DJSetService) Search(ctx context.Context, seed models.Seed) ([]models.Container, error) {
	if !s.Supports(seed) {
		return nil, nil
	}

	path := "/search?" + url.Values{"q": {seed.Artist}}.Encode()
	resp, err := s.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("1001tracklists search %s: %w", seed.Key(), err)
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("1001tracklists search %s: failed to parse page: %w", seed.Key(), err)
	}

	var containers []models.Container
	for _, item := range findAll(doc, func(n *html.Node) bool { return hasClass(n, "bItm") }) {
		link := findFirst(item, func(n *html.Node) bool {
			return n.Data == "a" && strings.HasPrefix(attr(n, "href"), "/tracklist/")
		})
		if link == nil {
			continue
		}

		href := attr(link, "href")
		id := tracklistID(href)
		if id == "" {
			continue
		}

		c := models.Container{
			ID:         djsetIDPrefix + id,
			Title:      textContent(link),
			Source:     models.SourceDJSet,
			SourceSeed: seed,
			URL:        s.client.BaseURL() + href,
		}
		if t := findFirst(item, func(n *html.Node) bool { return n.Data == "time" }); t != nil {
			c.PublishedAt = parseEpisodeDate(attr(t, "datetime"))
		}
		if v := findFirst(item, func(n *html.Node) bool { return hasClass(n, "venue") }); v != nil {
			c.Venue = textContent(v)
		}
		containers = append(containers, c)
	}

	return containers, nil
}

// Expand scrapes the tracklist page of a set.
func (s *DJSetService) Expand(ctx context.Context, container models.Container) ([]models.RawTrack, error) {
	id, ok := strings.CutPrefix(container.ID, djsetIDPrefix)
	if !ok || container.Source != models.SourceDJSet {
		return nil, fmt.Errorf("1001tracklists: container %q does not belong to this source", container.ID)
	}

	path := "/tracklist/" + id + "/"
	if rest, ok := strings.CutPrefix(container.URL, s.client.BaseURL()); ok && strings.HasPrefix(rest, "/tracklist/") {
		path = rest
	}

	resp, err := s.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("1001tracklists tracklist %s: %w", id, err)
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("1001tracklists tracklist %s: failed to parse page: %w", id, err)
	}

	var tracks []models.RawTrack
	for _, row := range findAll(doc, func(n *html.Node) bool { return hasClass(n, "trackValue") }) {
		artist, title, ok := splitTrackValue(textContent(row))
		if !ok {
			continue
		}
		tracks = append(tracks, models.RawTrack{Artist: artist, Title: title})
	}
	return tracks, nil
}

// splitTrackValue splits "Artist - Title" and drops unidentified "ID - ID" rows.
func splitTrackValue(s string) (string, string, bool) {
	artist, title, found := strings.Cut(s, " - ")
	if !found {
		return "", "", false
	}
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if strings.EqualFold(artist, unidentifiedMarker) && strings.EqualFold(title, unidentifiedMarker) {
		return "", "", false
	}
	return artist, title, artist != "" || title != ""
}

// tracklistID extracts {id} from /tracklist/{id}/{slug}.html.
func tracklistID(href string) string {
	parts := strings.Split(strings.Trim(href, "/"), "/")
	if len(parts) < 2 || parts[0] != "tracklist" {
		return ""
	}
	return parts[1]
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
