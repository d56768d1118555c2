package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

var seed = models.NewTrackSeed("Bonobo", "")

// newStack builds a stack whose tracks carry canonical ids equal to keys, one container per stack.
func newStack(id string, keys ...string) *models.Stack {
	container := models.Container{
		ID:          "c-" + id,
		Title:       "Episode " + id,
		PublishedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Source:      models.SourceRadio,
		SourceSeed:  seed,
	}
	stack := &models.Stack{
		ID:             id,
		CreatedAt:      time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		Name:           "Bonobo Mix",
		Sources:        []models.Seed{seed},
		ContainersUsed: []models.Container{container},
	}
	for i, k := range keys {
		stack.Tracks = append(stack.Tracks, models.Track{
			ContainerID: container.ID,
			Artist:      "Artist " + k,
			Title:       "Title " + k,
			LocalUID:    models.LocalUID(container.ID, i),
			Provenance:  seed,
			CanonicalID: k,
		})
	}
	return stack
}

func commit(t *testing.T, store models.ExposureStore, stack *models.Stack) {
	t.Helper()
	refs := make([]models.TrackKey, 0, len(stack.Tracks))
	for k := range stack.Keys() {
		refs = append(refs, k)
	}
	if err := store.CommitStack(context.Background(), stack, stack.ContainerIDs(), refs); err != nil {
		t.Fatalf("failed to commit %s: %v", stack.ID, err)
	}
}

func referenced(t *testing.T, store models.ExposureStore) map[models.TrackKey]struct{} {
	t.Helper()
	refs, err := store.ReferencedTracks(context.Background())
	if err != nil {
		t.Fatalf("failed to read referenced tracks: %v", err)
	}
	return refs
}

// stores runs fn against both store implementations.
func stores(t *testing.T, fn func(t *testing.T, store models.ExposureStore)) {
	t.Run("SQLite", func(t *testing.T) {
		fn(t, NewExposureRepository(setupTestDB(t), "", nil))
	})
	t.Run("SQLiteWithLock", func(t *testing.T) {
		fn(t, NewExposureRepository(setupTestDB(t), filepath.Join(t.TempDir(), "exposure.lock"), nil))
	})
	t.Run("Memory", func(t *testing.T) {
		fn(t, NewMemoryExposureStore())
	})
}

func TestExposureStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		stores(t, func(t *testing.T, store models.ExposureStore) {
			seen, err := store.SeenContainers(ctx)
			if err != nil || len(seen) != 0 {
				t.Errorf("expected empty seen set, got %v %v", seen, err)
			}
			history, err := store.StackHistory(ctx)
			if err != nil || len(history) != 0 {
				t.Errorf("expected empty history, got %v %v", history, err)
			}
		})
	})

	t.Run("CommitStack", func(t *testing.T) {
		stores(t, func(t *testing.T, store models.ExposureStore) {
			first := newStack("s1", "k1", "k2")
			second := newStack("s2", "k3")
			commit(t, store, first)
			if err := store.CommitStack(ctx, second, []string{"c-s2", "exhausted"}, []models.TrackKey{"k3"}); err != nil {
				t.Fatalf("failed to commit: %v", err)
			}

			history, _ := store.StackHistory(ctx)
			if len(history) != 2 || history[0].ID != "s2" || history[1].ID != "s1" {
				t.Fatalf("expected newest first, got %+v", history)
			}
			if len(history[1].Tracks) != 2 || history[1].Tracks[0].Provenance != seed {
				t.Errorf("stack payload did not round-trip: %+v", history[1])
			}

			seen, _ := store.SeenContainers(ctx)
			for _, id := range []string{"c-s1", "c-s2", "exhausted"} {
				if _, ok := seen[id]; !ok {
					t.Errorf("expected %s in seen set", id)
				}
			}
			if refs := referenced(t, store); len(refs) != 3 {
				t.Errorf("expected 3 referenced keys, got %v", refs)
			}
		})
	})

	t.Run("Stack", func(t *testing.T) {
		stores(t, func(t *testing.T, store models.ExposureStore) {
			commit(t, store, newStack("s1", "k1"))

			got, err := store.Stack(ctx, "s1")
			if err != nil || got.ID != "s1" {
				t.Errorf("expected stack s1, got %v %v", got, err)
			}
			if _, err := store.Stack(ctx, "missing"); !errors.Is(err, shared.ErrStackNotFound) {
				t.Errorf("expected ErrStackNotFound, got %v", err)
			}
		})
	})

	t.Run("DuplicateCommit", func(t *testing.T) {
		stores(t, func(t *testing.T, store models.ExposureStore) {
			commit(t, store, newStack("s1", "k1"))
			if err := store.CommitStack(ctx, newStack("s1", "k9"), nil, []models.TrackKey{"k9"}); err == nil {
				t.Fatal("expected error committing the same stack id twice")
			}
			if _, ok := referenced(t, store)["k9"]; ok {
				t.Error("a failed commit must not change the reference set")
			}
		})
	})

	t.Run("InvalidStack", func(t *testing.T) {
		stores(t, func(t *testing.T, store models.ExposureStore) {
			if err := store.CommitStack(ctx, &models.Stack{}, nil, nil); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})

	t.Run("DeleteStack", func(t *testing.T) {
		stores(t, func(t *testing.T, store models.ExposureStore) {
			commit(t, store, newStack("s1", "k1", "shared"))
			commit(t, store, newStack("s2", "k2", "shared"))

			removed, err := store.DeleteStack(ctx, "s1")
			if err != nil || !removed {
				t.Fatalf("expected removal, got %v %v", removed, err)
			}

			refs := referenced(t, store)
			if _, ok := refs["k1"]; ok {
				t.Error("k1 should be reclaimed")
			}
			if _, ok := refs["shared"]; !ok {
				t.Error("shared key is still held by s2")
			}
			if _, ok := refs["k2"]; !ok {
				t.Error("k2 is still held by s2")
			}

			seen, _ := store.SeenContainers(ctx)
			if _, ok := seen["c-s1"]; !ok {
				t.Error("seen containers are never reclaimed")
			}

			history, _ := store.StackHistory(ctx)
			if len(history) != 1 || history[0].ID != "s2" {
				t.Errorf("unexpected history %+v", history)
			}
		})
	})

	t.Run("DeleteUnknown", func(t *testing.T) {
		stores(t, func(t *testing.T, store models.ExposureStore) {
			commit(t, store, newStack("s1", "k1"))

			removed, err := store.DeleteStack(ctx, "missing")
			if err != nil || removed {
				t.Errorf("expected false without error, got %v %v", removed, err)
			}
			if len(referenced(t, store)) != 1 {
				t.Error("unknown delete must not change references")
			}
		})
	})

	t.Run("Eviction", func(t *testing.T) {
		stores(t, func(t *testing.T, store models.ExposureStore) {
			for i := range models.MaxStackHistory + 1 {
				commit(t, store, newStack(fmt.Sprintf("s%02d", i), fmt.Sprintf("k%02d", i), "shared"))
			}

			history, _ := store.StackHistory(ctx)
			if len(history) != models.MaxStackHistory {
				t.Fatalf("expected %d stacks, got %d", models.MaxStackHistory, len(history))
			}
			if history[len(history)-1].ID != "s01" {
				t.Errorf("expected s00 evicted, oldest is %s", history[len(history)-1].ID)
			}
			if _, err := store.Stack(ctx, "s00"); !errors.Is(err, shared.ErrStackNotFound) {
				t.Errorf("evicted stack should be gone, got %v", err)
			}

			refs := referenced(t, store)
			if _, ok := refs["k00"]; ok {
				t.Error("evicted stack's unique key should be reclaimed")
			}
			if _, ok := refs["shared"]; !ok {
				t.Error("shared key should survive eviction")
			}
		})
	})

	t.Run("ClearAll", func(t *testing.T) {
		stores(t, func(t *testing.T, store models.ExposureStore) {
			commit(t, store, newStack("s1", "k1"))
			if err := store.ClearAll(ctx); err != nil {
				t.Fatalf("failed to clear: %v", err)
			}

			seen, _ := store.SeenContainers(ctx)
			history, _ := store.StackHistory(ctx)
			if len(seen) != 0 || len(referenced(t, store)) != 0 || len(history) != 0 {
				t.Errorf("expected empty state, got %d/%d/%d", len(seen), len(referenced(t, store)), len(history))
			}
		})
	})

	t.Run("ConcurrentCommits", func(t *testing.T) {
		stores(t, func(t *testing.T, store models.ExposureStore) {
			var wg sync.WaitGroup
			errs := make(chan error, 10)
			for i := range 10 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					s := newStack(fmt.Sprintf("s%d", i), fmt.Sprintf("k%d", i))
					errs <- store.CommitStack(ctx, s, s.ContainerIDs(), []models.TrackKey{models.TrackKey(fmt.Sprintf("k%d", i))})
				}()
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				if err != nil {
					t.Errorf("commit failed: %v", err)
				}
			}

			history, _ := store.StackHistory(ctx)
			if len(history) != 10 || len(referenced(t, store)) != 10 {
				t.Errorf("expected 10 stacks and keys, got %d and %d", len(history), len(referenced(t, store)))
			}
		})
	})

	t.Run("CancelledContext", func(t *testing.T) {
		stores(t, func(t *testing.T, store models.ExposureStore) {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			if err := store.CommitStack(cancelled, newStack("s1", "k1"), nil, []models.TrackKey{"k1"}); err == nil {
				t.Fatal("expected error on cancelled context")
			}
			if len(referenced(t, store)) != 0 {
				t.Error("cancelled commit must not change state")
			}
		})
	})
}

func TestExposureRepositoryPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stackr.db")

	db, err := shared.NewDatabase(path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	commit(t, NewExposureRepository(db, path+".lock", nil), newStack("s1", "k1"))
	db.Close()

	reopened, err := shared.NewDatabase(path)
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	defer reopened.Close()

	repo := NewExposureRepository(reopened, path+".lock", nil)
	history, err := repo.StackHistory(ctx)
	if err != nil || len(history) != 1 || history[0].ID != "s1" {
		t.Errorf("expected persisted stack, got %v %v", history, err)
	}
}

func TestNextSequence(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(ctx, db, "stacks")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(ctx, db, "missing"); err == nil {
		t.Error("expected error for a table without a sequence")
	}
}

func TestEnrichmentCacheRepository(t *testing.T) {
	ctx := context.Background()
	fetched := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Miss", func(t *testing.T) {
		repo := NewEnrichmentCacheRepository(setupTestDB(t))
		entry, err := repo.GetMatch(ctx, "bonobo|kerala")
		if err != nil || entry != nil {
			t.Errorf("expected nil entry, got %v %v", entry, err)
		}
	})

	t.Run("Hit", func(t *testing.T) {
		repo := NewEnrichmentCacheRepository(setupTestDB(t))
		match := &models.Match{CanonicalID: "spotify:track:k", PlaybackURL: "https://open.spotify.com/track/k"}
		if err := repo.PutMatch(ctx, models.CachedMatch{Key: "bonobo|kerala", Match: match, FetchedAt: fetched}); err != nil {
			t.Fatalf("failed to cache match: %v", err)
		}

		entry, err := repo.GetMatch(ctx, "bonobo|kerala")
		if err != nil || entry == nil || entry.Match == nil {
			t.Fatalf("expected cached match, got %v %v", entry, err)
		}
		if *entry.Match != *match || !entry.FetchedAt.Equal(fetched) {
			t.Errorf("unexpected entry %+v", entry)
		}
	})

	t.Run("RecordedMissThenUpsert", func(t *testing.T) {
		repo := NewEnrichmentCacheRepository(setupTestDB(t))
		if err := repo.PutMatch(ctx, models.CachedMatch{Key: "x|y", FetchedAt: fetched}); err != nil {
			t.Fatalf("failed to cache miss: %v", err)
		}

		entry, _ := repo.GetMatch(ctx, "x|y")
		if entry == nil || entry.Match != nil {
			t.Fatalf("expected recorded miss, got %+v", entry)
		}

		later := fetched.Add(time.Hour)
		repo.PutMatch(ctx, models.CachedMatch{Key: "x|y", Match: &models.Match{CanonicalID: "spotify:track:y"}, FetchedAt: later})
		entry, _ = repo.GetMatch(ctx, "x|y")
		if entry.Match == nil || entry.Match.CanonicalID != "spotify:track:y" || !entry.FetchedAt.Equal(later) {
			t.Errorf("expected upserted match, got %+v", entry)
		}
	})

	t.Run("Purge", func(t *testing.T) {
		repo := NewEnrichmentCacheRepository(setupTestDB(t))
		repo.PutMatch(ctx, models.CachedMatch{Key: "old", FetchedAt: fetched})
		repo.PutMatch(ctx, models.CachedMatch{Key: "new", FetchedAt: fetched.Add(48 * time.Hour)})

		removed, err := repo.Purge(ctx, fetched.Add(24*time.Hour))
		if err != nil || removed != 1 {
			t.Fatalf("expected 1 purged entry, got %d %v", removed, err)
		}
		if entry, _ := repo.GetMatch(ctx, "new"); entry == nil {
			t.Error("recent entry should survive purge")
		}
	})
}
