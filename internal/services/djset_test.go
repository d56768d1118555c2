package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/stackr/internal/models"
)

const searchPage = `<html><body>
<div class="bItm">
  <a href="/tracklist/2x7k9/bonobo-essential-mix-2024.html">Bonobo @ Essential Mix</a>
  <time datetime="2024-05-04">May 4</time>
  <span class="venue">BBC Radio 1</span>
</div>
<div class="bItm action"><a href="/dj/bonobo/index.html">Bonobo</a></div>
<div class="bItm">
  <a href="/tracklist/1abc/bonobo-boiler-room.html">Bonobo @ Boiler Room</a>
</div>
</body></html>`

const tracklistPage = `<html><body>
<div class="tlpItem"><span class="trackValue">Bonobo - Kerala</span></div>
<div class="tlpItem"><span class="trackValue">ID - ID</span></div>
<div class="tlpItem"><span class="trackValue">
  Floating Points  -  Silhouettes (I, II &amp; III)
</span></div>
<div class="tlpItem"><span class="trackValue">no separator</span></div>
</body></html>`

func TestDJSetService(t *testing.T) {
	var searches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			searches.Add(1)
			if r.URL.Query().Get("q") != "Bonobo" {
				t.Errorf("expected q=Bonobo, got %s", r.URL.Query().Get("q"))
			}
			fmt.Fprint(w, searchPage)
		case "/tracklist/2x7k9/bonobo-essential-mix-2024.html", "/tracklist/1abc/":
			fmt.Fprint(w, tracklistPage)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	svc := NewDJSetService(NewClient(ClientOpts{BaseURL: server.URL}))

	t.Run("Supports", func(t *testing.T) {
		if !svc.Supports(models.NewTrackSeed("Bonobo", "")) {
			t.Error("expected artist seed support")
		}
		if svc.Supports(models.NewTrackSeed("", "Kerala")) {
			t.Error("title-only seeds need an artist")
		}
		if svc.Supports(models.NewGenreSeed("house", "")) {
			t.Error("genre seeds are not supported")
		}
		if svc.MaxContainers() != 1 {
			t.Errorf("expected one container per seed, got %d", svc.MaxContainers())
		}
	})

	t.Run("Search", func(t *testing.T) {
		seed := models.NewTrackSeed("Bonobo", "")
		containers, err := svc.Search(context.Background(), seed)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(containers) != 2 {
			t.Fatalf("expected 2 tracklist results, got %d", len(containers))
		}

		c := containers[0]
		if c.ID != "1001tl:2x7k9" || c.Title != "Bonobo @ Essential Mix" {
			t.Errorf("unexpected container %+v", c)
		}
		if c.Venue != "BBC Radio 1" || c.PublishedAt.IsZero() {
			t.Errorf("expected venue and date, got %+v", c)
		}
		if c.Source != models.SourceDJSet || c.SourceSeed != seed {
			t.Errorf("unexpected tagging %+v", c)
		}
		if !containers[1].PublishedAt.IsZero() {
			t.Error("expected undated result to have zero time")
		}
	})

	t.Run("Search Unsupported Seed", func(t *testing.T) {
		before := searches.Load()
		containers, err := svc.Search(context.Background(), models.NewGenreSeed("house", ""))
		if err != nil || len(containers) != 0 {
			t.Errorf("expected empty result, got %v %v", containers, err)
		}
		if searches.Load() != before {
			t.Error("unsupported seed should not hit the network")
		}
	})

	t.Run("Expand", func(t *testing.T) {
		tracks, err := svc.Expand(context.Background(), models.Container{
			ID:     "1001tl:2x7k9",
			Source: models.SourceDJSet,
			URL:    server.URL + "/tracklist/2x7k9/bonobo-essential-mix-2024.html",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected ID and malformed rows dropped, got %+v", tracks)
		}
		if tracks[1].Artist != "Floating Points" || tracks[1].Title != "Silhouettes (I, II & III)" {
			t.Errorf("unexpected track %+v", tracks[1])
		}
	})

	t.Run("Expand Without URL", func(t *testing.T) {
		tracks, err := svc.Expand(context.Background(), models.Container{ID: "1001tl:1abc", Source: models.SourceDJSet})
		if err != nil || len(tracks) != 2 {
			t.Errorf("expected fallback path to work, got %v %v", tracks, err)
		}
	})

	t.Run("splitTrackValue", func(t *testing.T) {
		tests := []struct {
			in            string
			artist, title string
			ok            bool
		}{
			{"A - B", "A", "B", true},
			{"A - B - C", "A", "B - C", true},
			{"id - id", "", "", false},
			{"ID - Unknown", "ID", "Unknown", true},
			{"A-B", "", "", false},
		}
		for _, tt := range tests {
			artist, title, ok := splitTrackValue(tt.in)
			if artist != tt.artist || title != tt.title || ok != tt.ok {
				t.Errorf("splitTrackValue(%q) = %q, %q, %v", tt.in, artist, title, ok)
			}
		}
	})
}
