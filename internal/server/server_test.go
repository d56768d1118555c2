package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/repositories"
	"github.com/desertthunder/stackr/internal/services"
	"github.com/desertthunder/stackr/internal/shared"
	"github.com/desertthunder/stackr/internal/tasks"
	tu "github.com/desertthunder/stackr/internal/testing"
)

func setupAPI(t *testing.T) (*httptest.Server, *repositories.MemoryExposureStore) {
	t.Helper()

	bonobo := models.NewTrackSeed("Bonobo", "")
	src := tu.NewMockSource("radio", models.SourceRadio)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	src.AddContainer(bonobo, "ep1", day, tu.RawTracks("a", 3)...)
	src.AddContainer(bonobo, "ep2", day.AddDate(0, 0, -1), tu.RawTracks("b", 2)...)

	logger := shared.NewLogger(io.Discard)
	store := repositories.NewMemoryExposureStore()
	engine := tasks.NewStackEngine(tasks.EngineOpts{
		Sources: []services.SourceAdapter{src},
		Store:   store,
		Logger:  logger,
	})

	srv := httptest.NewServer(NewAPIRouter(NewStackHandler(engine, 5*time.Second, 5, logger), logger))
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, data
}

func decodeError(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("invalid error body %s: %v", data, err)
	}
	return e
}

const bonoboBody = `{"seeds":[{"kind":"track","artist":"Bonobo"}]}`

func TestStackHandler(t *testing.T) {
	t.Run("Build", func(t *testing.T) {
		srv, store := setupAPI(t)

		resp, data := do(t, http.MethodPost, srv.URL+"/api/stacks", bonoboBody)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
		}

		var body BuildResponse
		if err := json.Unmarshal(data, &body); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if len(body.Stack.Tracks) != 5 || body.Stack.Name != "Bonobo Mix" || !body.Committed {
			t.Errorf("unexpected response %+v", body)
		}
		if len(body.Mutation.NewlySeenContainers) != 2 {
			t.Errorf("expected 2 newly seen containers, got %v", body.Mutation.NewlySeenContainers)
		}

		history, _ := store.StackHistory(context.Background())
		if len(history) != 1 {
			t.Errorf("expected committed stack, got %d", len(history))
		}
	})

	t.Run("DryRun", func(t *testing.T) {
		srv, store := setupAPI(t)

		resp, data := do(t, http.MethodPost, srv.URL+"/api/stacks", `{"seeds":[{"kind":"track","artist":"Bonobo"}],"dryRun":true}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, data)
		}
		if history, _ := store.StackHistory(context.Background()); len(history) != 0 {
			t.Errorf("dry run must not commit")
		}
	})

	t.Run("InvalidSeeds", func(t *testing.T) {
		srv, _ := setupAPI(t)

		tests := []struct {
			name string
			body string
		}{
			{name: "empty", body: `{"seeds":[]}`},
			{name: "blank genre", body: `{"seeds":[{"kind":"genre","genreId":" "}]}`},
			{name: "unknown kind", body: `{"seeds":[{"kind":"set"}]}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, data := do(t, http.MethodPost, srv.URL+"/api/stacks", tt.body)
				if resp.StatusCode != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", resp.StatusCode)
				}
				if e := decodeError(t, data); e.Code != "invalid_seeds" {
					t.Errorf("expected invalid_seeds, got %+v", e)
				}
			})
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		srv, _ := setupAPI(t)

		resp, data := do(t, http.MethodPost, srv.URL+"/api/stacks", `{"seeds":`)
		if resp.StatusCode != http.StatusBadRequest || decodeError(t, data).Code != "bad_request" {
			t.Errorf("expected 400 bad_request, got %d %s", resp.StatusCode, data)
		}
	})

	t.Run("NoNewContent", func(t *testing.T) {
		srv, _ := setupAPI(t)

		do(t, http.MethodPost, srv.URL+"/api/stacks", bonoboBody)
		resp, data := do(t, http.MethodPost, srv.URL+"/api/stacks", bonoboBody)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409, got %d", resp.StatusCode)
		}
		if e := decodeError(t, data); e.Code != "no_new_content" {
			t.Errorf("expected no_new_content, got %+v", e)
		}
	})

	t.Run("HistoryGetDelete", func(t *testing.T) {
		srv, _ := setupAPI(t)

		_, data := do(t, http.MethodPost, srv.URL+"/api/stacks", bonoboBody)
		var built BuildResponse
		json.Unmarshal(data, &built)
		id := built.Stack.ID

		resp, data := do(t, http.MethodGet, srv.URL+"/api/stacks", "")
		var list struct {
			Stacks []models.Stack `json:"stacks"`
		}
		if err := json.Unmarshal(data, &list); err != nil || resp.StatusCode != http.StatusOK || len(list.Stacks) != 1 {
			t.Fatalf("unexpected list %d %s", resp.StatusCode, data)
		}

		resp, data = do(t, http.MethodGet, srv.URL+"/api/stacks/"+id, "")
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), id) {
			t.Errorf("expected stack %s, got %d %s", id, resp.StatusCode, data)
		}

		resp, data = do(t, http.MethodDelete, srv.URL+"/api/stacks/"+id, "")
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"removed":true`) {
			t.Errorf("expected removal, got %d %s", resp.StatusCode, data)
		}

		resp, data = do(t, http.MethodDelete, srv.URL+"/api/stacks/"+id, "")
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"removed":false`) {
			t.Errorf("expected removed false on repeat, got %d %s", resp.StatusCode, data)
		}

		resp, data = do(t, http.MethodGet, srv.URL+"/api/stacks/"+id, "")
		if resp.StatusCode != http.StatusNotFound || decodeError(t, data).Code != "not_found" {
			t.Errorf("expected 404, got %d %s", resp.StatusCode, data)
		}
	})

	t.Run("EmptyHistory", func(t *testing.T) {
		srv, _ := setupAPI(t)

		_, data := do(t, http.MethodGet, srv.URL+"/api/stacks", "")
		if !strings.Contains(string(data), `"stacks":[]`) {
			t.Errorf("expected empty array, got %s", data)
		}
	})

	t.Run("Exposure", func(t *testing.T) {
		srv, _ := setupAPI(t)
		do(t, http.MethodPost, srv.URL+"/api/stacks", bonoboBody)

		resp, data := do(t, http.MethodGet, srv.URL+"/api/exposure", "")
		var stats tasks.ExposureStats
		if err := json.Unmarshal(data, &stats); err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("unexpected stats response %d %s", resp.StatusCode, data)
		}
		if stats.Stacks != 1 || stats.ReferencedTracks != 5 || stats.SeenContainers != 2 {
			t.Errorf("unexpected stats %+v", stats)
		}

		resp, _ = do(t, http.MethodDelete, srv.URL+"/api/exposure", "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}

		resp, _ = do(t, http.MethodPost, srv.URL+"/api/stacks", bonoboBody)
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("expected build to succeed after clear, got %d", resp.StatusCode)
		}
	})

	t.Run("Health", func(t *testing.T) {
		srv, _ := setupAPI(t)

		resp, data := do(t, http.MethodGet, srv.URL+"/health", "")
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"ok"`) {
			t.Errorf("unexpected health %d %s", resp.StatusCode, data)
		}
		if resp.Header.Get(RequestIDHeader) == "" {
			t.Error("expected a request id header")
		}
	})

	t.Run("Patterns", func(t *testing.T) {
		r := NewAPIRouter(NewStackHandler(nil, time.Second, 5, shared.NewLogger(io.Discard)), shared.NewLogger(io.Discard))

		patterns := r.Patterns()
		if len(patterns) != 7 || patterns[0] != "POST /api/stacks" || patterns[6] != "GET /health" {
			t.Errorf("unexpected patterns %v", patterns)
		}
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		srv, _ := setupAPI(t)

		resp, _ := do(t, http.MethodPut, srv.URL+"/api/stacks", "")
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: fmt.Errorf("%w: seed 1", shared.ErrInvalidSeeds), status: http.StatusBadRequest, code: "invalid_seeds"},
		{err: fmt.Errorf("%w: nothing new", shared.ErrNoNewContent), status: http.StatusConflict, code: "no_new_content"},
		{err: fmt.Errorf("%w: x", shared.ErrStackNotFound), status: http.StatusNotFound, code: "not_found"},
		{err: context.DeadlineExceeded, status: http.StatusGatewayTimeout, code: "timeout"},
		{err: shared.ErrServiceUnavailable, status: http.StatusServiceUnavailable, code: "unavailable"},
		{err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := StatusFor(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("expected %d %s, got %d %s", tt.status, tt.code, status, code)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("Order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("RequestID", func(t *testing.T) {
		var seen string
		h := WithRequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if seen != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
			t.Errorf("expected incoming id reused, got %q / %q", seen, rec.Header().Get(RequestIDHeader))
		}

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" || seen == "abc-123" {
			t.Errorf("expected a generated id, got %q", seen)
		}
	})

	t.Run("Recovery", func(t *testing.T) {
		logger := shared.NewLogger(io.Discard)
		h := WithRecovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("Logging", func(t *testing.T) {
		var buf strings.Builder
		logger := shared.NewLogger(&buf)
		h := WithLogging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))
		if !strings.Contains(buf.String(), "/brew") || !strings.Contains(buf.String(), "418") {
			t.Errorf("expected request log line, got %q", buf.String())
		}
	})
}

func TestNew(t *testing.T) {
	srv := New(":0", http.NotFoundHandler(), 0)
	if srv.WriteTimeout <= 2*time.Minute {
		t.Errorf("expected write timeout above the default build timeout, got %v", srv.WriteTimeout)
	}
}
