package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/stackr/internal/models"
)

func newRadioServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "Bonobo Kerala" {
			t.Errorf("unexpected query %q", q.Get("q"))
		}
		if got := q["types[]"]; len(got) != 1 || got[0] != "episode" {
			t.Errorf("expected types[]=episode, got %v", got)
		}
		if q.Get("limit") != "12" {
			t.Errorf("expected limit 12, got %s", q.Get("limit"))
		}
		json.NewEncoder(w).Encode(NTSSearchResponse{Results: []NTSEpisode{
			{Title: "Bonobo w/ Friends", ArticleType: "episode", LocalDate: "2024-03-01", Path: "/shows/bonobo/episodes/march", LocationLong: "London"},
			{Title: "A show page", ArticleType: "show", Path: "/shows/bonobo"},
			{Title: "No path", ArticleType: "episode"},
		}})
	})
	mux.HandleFunc("/api/v2/search/episodes", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query()["genres[]"]; len(got) != 1 || got[0] != "ambient" {
			t.Errorf("expected genres[]=ambient, got %v", got)
		}
		json.NewEncoder(w).Encode(NTSSearchResponse{Results: []NTSEpisode{
			{Title: "Ambient hour", LocalDate: "2024-02-10T10:00:00Z", Path: "/shows/drift/episodes/feb"},
		}})
	})
	mux.HandleFunc("/api/v2/shows/bonobo/episodes/march/tracklist", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(NTSTracklistResponse{Results: []NTSTrack{
			{Artist: " Bonobo ", Title: "Kerala"},
			{Artist: "Floating Points", Title: "Silhouettes"},
		}})
	})
	return httptest.NewServer(mux)
}

func TestRadioService(t *testing.T) {
	server := newRadioServer(t)
	defer server.Close()

	svc := NewRadioService(NewClient(ClientOpts{BaseURL: server.URL}), 0)

	t.Run("Supports", func(t *testing.T) {
		if !svc.Supports(models.NewTrackSeed("Bonobo", "")) {
			t.Error("expected track seed support")
		}
		if !svc.Supports(models.NewGenreSeed("ambient", "")) {
			t.Error("expected genre seed support")
		}
		if svc.Supports(models.Seed{}) {
			t.Error("expected zero seed to be unsupported")
		}
		if svc.MaxContainers() != defaultRadioLimit {
			t.Errorf("expected default page size, got %d", svc.MaxContainers())
		}
	})

	t.Run("Search Track Seed", func(t *testing.T) {
		seed := models.NewTrackSeed("Bonobo", "Kerala")
		containers, err := svc.Search(context.Background(), seed)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(containers) != 1 {
			t.Fatalf("expected non-episode and pathless results dropped, got %d", len(containers))
		}

		c := containers[0]
		if c.ID != "nts:/shows/bonobo/episodes/march" {
			t.Errorf("unexpected id %s", c.ID)
		}
		if c.Source != models.SourceRadio || c.SourceSeed != seed {
			t.Errorf("unexpected source tagging %v %v", c.Source, c.SourceSeed)
		}
		if !c.PublishedAt.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected date %v", c.PublishedAt)
		}
		if c.Venue != "London" || c.URL != server.URL+"/shows/bonobo/episodes/march" {
			t.Errorf("unexpected venue/url %q %q", c.Venue, c.URL)
		}
	})

	t.Run("Search Genre Seed", func(t *testing.T) {
		containers, err := svc.Search(context.Background(), models.NewGenreSeed("ambient", ""))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(containers) != 1 || containers[0].PublishedAt.IsZero() {
			t.Errorf("unexpected genre results %+v", containers)
		}
	})

	t.Run("Expand", func(t *testing.T) {
		tracks, err := svc.Expand(context.Background(), models.Container{
			ID:     "nts:/shows/bonobo/episodes/march",
			Source: models.SourceRadio,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 || tracks[0].Artist != "Bonobo" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("Expand Foreign Container", func(t *testing.T) {
		_, err := svc.Expand(context.Background(), models.Container{ID: "1001tl:abc", Source: models.SourceDJSet})
		if err == nil {
			t.Error("expected error for a container from another source")
		}
	})

	t.Run("Expand Missing Episode", func(t *testing.T) {
		_, err := svc.Expand(context.Background(), models.Container{ID: "nts:/shows/none/episodes/x", Source: models.SourceRadio})
		if err == nil {
			t.Error("expected error for a 404 tracklist")
		}
	})
}
