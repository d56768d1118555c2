// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/stackr/internal/models"
)

// MockSource is a test double for [services.SourceAdapter].
//
// Containers are keyed by [models.Seed.Key]; tracklists by container id.
type MockSource struct {
	SourceName string
	SourceKind models.SourceKind
	Max        int                           // MaxContainers, 0 means unbounded
	Accept     func(models.Seed) bool        // Supports, nil accepts every seed
	Containers map[string][]models.Container // by seed key
	Tracklists map[string][]models.RawTrack  // by container id
	SearchErr  map[string]error              // by seed key
	ExpandErr  map[string]error              // by container id
	Delay      time.Duration                 // applied before every call, honours ctx

	mu       sync.Mutex
	searches []string
	expands  []string
}

func NewMockSource(name string, kind models.SourceKind) *MockSource {
	return &MockSource{
		SourceName: name,
		SourceKind: kind,
		Containers: map[string][]models.Container{},
		Tracklists: map[string][]models.RawTrack{},
		SearchErr:  map[string]error{},
		ExpandErr:  map[string]error{},
	}
}

func (m *MockSource) Name() string            { return m.SourceName }
func (m *MockSource) Kind() models.SourceKind { return m.SourceKind }
func (m *MockSource) MaxContainers() int      { return m.Max }

func (m *MockSource) Supports(seed models.Seed) bool {
	if m.Accept == nil {
		return true
	}
	return m.Accept(seed)
}

func (m *MockSource) Search(ctx context.Context, seed models.Seed) ([]models.Container, error) {
	m.mu.Lock()
	m.searches = append(m.searches, seed.Key())
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if err := m.SearchErr[seed.Key()]; err != nil {
		return nil, err
	}
	found := m.Containers[seed.Key()]
	out := make([]models.Container, len(found))
	copy(out, found)
	return out, nil
}

func (m *MockSource) Expand(ctx context.Context, container models.Container) ([]models.RawTrack, error) {
	m.mu.Lock()
	m.expands = append(m.expands, container.ID)
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if err := m.ExpandErr[container.ID]; err != nil {
		return nil, err
	}
	return m.Tracklists[container.ID], nil
}

// AddContainer registers a container returned for seed, with its tracklist.
func (m *MockSource) AddContainer(seed models.Seed, id string, published time.Time, tracks ...models.RawTrack) models.Container {
	c := models.Container{ID: id, Title: "Episode " + id, PublishedAt: published, Source: m.SourceKind, SourceSeed: seed}
	m.Containers[seed.Key()] = append(m.Containers[seed.Key()], c)
	m.Tracklists[id] = append(m.Tracklists[id], tracks...)
	return c
}

// Searches returns the seed keys searched so far.
func (m *MockSource) Searches() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.searches...)
}

// Expands returns the container ids expanded so far.
func (m *MockSource) Expands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.expands...)
}

func (m *MockSource) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RawTracks generates n distinct rows "{prefix} Artist i - {prefix} Title i".
func RawTracks(prefix string, n int) []models.RawTrack {
	out := make([]models.RawTrack, n)
	for i := range out {
		out[i] = models.RawTrack{
			Artist: fmt.Sprintf("%s Artist %d", prefix, i+1),
			Title:  fmt.Sprintf("%s Title %d", prefix, i+1),
		}
	}
	return out
}

// MockEnricher is a test double for [services.Enricher] keyed by "artist|title" as given.
type MockEnricher struct {
	Matches map[string]*models.Match
	Errs    map[string]error
	calls   atomic.Int64
}

func NewMockEnricher() *MockEnricher {
	return &MockEnricher{Matches: map[string]*models.Match{}, Errs: map[string]error{}}
}

func (m *MockEnricher) Lookup(ctx context.Context, artist, title string) (*models.Match, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := artist + "|" + title
	if err := m.Errs[key]; err != nil {
		return nil, err
	}
	return m.Matches[key], nil
}

// Set registers a confident match for artist/title.
func (m *MockEnricher) Set(artist, title, canonicalID string) {
	m.Matches[artist+"|"+title] = &models.Match{CanonicalID: canonicalID, PlaybackURL: "https://open.spotify.com/track/" + canonicalID}
}

func (m *MockEnricher) Calls() int { return int(m.calls.Load()) }

// SpyStore wraps a [models.ExposureStore] and counts every call.
type SpyStore struct {
	models.ExposureStore
	calls     atomic.Int64
	CommitErr error
}

func NewSpyStore(inner models.ExposureStore) *SpyStore {
	return &SpyStore{ExposureStore: inner}
}

func (s *SpyStore) Calls() int { return int(s.calls.Load()) }

func (s *SpyStore) SeenContainers(ctx context.Context) (map[string]struct{}, error) {
	s.calls.Add(1)
	return s.ExposureStore.SeenContainers(ctx)
}

func (s *SpyStore) ReferencedTracks(ctx context.Context) (map[models.TrackKey]struct{}, error) {
	s.calls.Add(1)
	return s.ExposureStore.ReferencedTracks(ctx)
}

func (s *SpyStore) StackHistory(ctx context.Context) ([]models.Stack, error) {
	s.calls.Add(1)
	return s.ExposureStore.StackHistory(ctx)
}

func (s *SpyStore) Stack(ctx context.Context, id string) (*models.Stack, error) {
	s.calls.Add(1)
	return s.ExposureStore.Stack(ctx, id)
}

func (s *SpyStore) CommitStack(ctx context.Context, stack *models.Stack, seen []string, refs []models.TrackKey) error {
	s.calls.Add(1)
	if s.CommitErr != nil {
		return s.CommitErr
	}
	return s.ExposureStore.CommitStack(ctx, stack, seen, refs)
}

func (s *SpyStore) DeleteStack(ctx context.Context, id string) (bool, error) {
	s.calls.Add(1)
	return s.ExposureStore.DeleteStack(ctx, id)
}

func (s *SpyStore) ClearAll(ctx context.Context) error {
	s.calls.Add(1)
	return s.ExposureStore.ClearAll(ctx)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
