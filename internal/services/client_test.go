package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/stackr/internal/shared"
	tu "github.com/desertthunder/stackr/internal/testing"
)

func TestClient(t *testing.T) {
	t.Run("NewClient", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			c := NewClient(ClientOpts{BaseURL: "http://example.com/"})

			if c.BaseURL() != "http://example.com" {
				t.Errorf("expected trailing slash trimmed, got %s", c.BaseURL())
			}
			if c.userAgent != defaultUserAgent {
				t.Errorf("expected default user agent, got %s", c.userAgent)
			}
			if c.limiter != nil {
				t.Error("expected no limiter without a rate limit")
			}
			if c.httpClient.Timeout == 0 {
				t.Error("expected a default timeout")
			}
		})

		t.Run("With Custom Client", func(t *testing.T) {
			custom := &http.Client{}
			c := NewClient(ClientOpts{HTTPClient: custom, RateLimit: 2})

			if c.httpClient != custom {
				t.Error("expected custom client to be used")
			}
			if c.limiter == nil {
				t.Error("expected a limiter")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Sends User-Agent", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("User-Agent"); got != "stackr-test" {
					t.Errorf("expected user agent stackr-test, got %s", got)
				}
				w.Write([]byte("ok"))
			}))
			defer server.Close()

			c := NewClient(ClientOpts{BaseURL: server.URL, UserAgent: "stackr-test"})
			resp, err := c.Get(context.Background(), "/anything")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if string(resp.Body) != "ok" {
				t.Errorf("unexpected body %q", resp.Body)
			}
		})

		t.Run("Non-2xx Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer server.Close()

			c := NewClient(ClientOpts{BaseURL: server.URL})
			_, err := c.Get(context.Background(), "/down")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Cancelled Context", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			c := NewClient(ClientOpts{BaseURL: "http://127.0.0.1:1", RateLimit: 1})
			if _, err := c.Get(ctx, "/"); err == nil {
				t.Error("expected error for cancelled context")
			}
		})
	})

	t.Run("GetJSON Invalid Body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		c := NewClient(ClientOpts{BaseURL: server.URL})
		var out map[string]any
		if err := c.GetJSON(context.Background(), "/", &out); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("Transport Error", func(t *testing.T) {
		transport := tu.NewMockRoundTripper(nil, errors.New("connection refused"))
		c := NewClient(ClientOpts{BaseURL: "http://example.com", HTTPClient: &http.Client{Transport: transport}})

		if _, err := c.Get(context.Background(), "/"); err == nil {
			t.Error("expected transport error")
		}
	})

	t.Run("Body Read Error", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: http.Header{}}
		c := NewClient(ClientOpts{BaseURL: "http://example.com", HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}})

		_, err := c.Get(context.Background(), "/")
		if err == nil || !strings.Contains(err.Error(), "failed to read response") {
			t.Errorf("expected read error, got %v", err)
		}
	})
}
