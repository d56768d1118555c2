package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
	"github.com/desertthunder/stackr/internal/tasks"
	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// ExposureRepository implements [models.ExposureStore] on SQLite.
//
// Seen container ids and referenced track keys live in their own tables; each stack is stored as a JSON payload
// with a commit sequence. Commits and deletions read and rewrite the state inside one transaction.
type ExposureRepository struct {
	db     *sql.DB
	mu     sync.Mutex
	lock   *flock.Flock // nil disables cross-process locking
	logger *log.Logger
}

// NewExposureRepository creates a repository. lockPath names the advisory lock file; empty disables it.
func NewExposureRepository(db *sql.DB, lockPath string, logger *log.Logger) *ExposureRepository {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	r := &ExposureRepository{db: db, logger: shared.WithLogger(logger, "component", "exposure")}
	if lockPath != "" {
		r.lock = flock.New(lockPath)
	}
	return r
}

// SeenContainers returns every container id already surfaced.
func (r *ExposureRepository) SeenContainers(ctx context.Context) (map[string]struct{}, error) {
	return r.seen(ctx, r.db)
}

// ReferencedTracks returns every track key held by the reference set.
func (r *ExposureRepository) ReferencedTracks(ctx context.Context) (map[models.TrackKey]struct{}, error) {
	return r.referenced(ctx, r.db)
}

// StackHistory returns stored stacks, newest first.
func (r *ExposureRepository) StackHistory(ctx context.Context) ([]models.Stack, error) {
	return r.history(ctx, r.db)
}

// Stack retrieves a stack by id.
func (r *ExposureRepository) Stack(ctx context.Context, id string) (*models.Stack, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, "SELECT payload FROM stacks WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrStackNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stack: %w", err)
	}
	return decodeStack(payload)
}

// CommitStack stores stack, unions the new ids and keys, and evicts the oldest stacks past [models.MaxStackHistory].
func (r *ExposureRepository) CommitStack(ctx context.Context, stack *models.Stack, newlySeen []string, newlyReferenced []models.TrackKey) error {
	if stack == nil || stack.ID == "" {
		return fmt.Errorf("%w: stack must have an id", shared.ErrInvalidInput)
	}

	payload, err := json.Marshal(stack)
	if err != nil {
		return fmt.Errorf("failed to encode stack: %w", err)
	}

	return r.write(ctx, func(tx *sql.Tx) error {
		referenced, err := r.referenced(ctx, tx)
		if err != nil {
			return err
		}
		history, err := r.history(ctx, tx)
		if err != nil {
			return err
		}

		next, evicted := tasks.ApplyCommit(models.ExposureState{
			ReferencedTracks: referenced,
			StackHistory:     history,
		}, stack, newlySeen, newlyReferenced)

		sources := make(map[string]models.SourceKind, len(stack.ContainersUsed))
		for _, c := range stack.ContainersUsed {
			sources[c.ID] = c.Source
		}
		for _, id := range newlySeen {
			_, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO seen_containers (id, source, stack_id, seen_at) VALUES (?, ?, ?, ?)",
				id, sources[id].String(), stack.ID, stack.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to mark container seen: %w", err)
			}
		}

		sequence, err := NextSequence(ctx, tx, "stacks")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO stacks (id, sequence, name, created_at, payload) VALUES (?, ?, ?, ?, ?)",
			stack.ID, sequence, stack.Name, stack.CreatedAt, string(payload))
		if err != nil {
			return fmt.Errorf("failed to insert stack: %w", err)
		}

		for _, id := range evicted {
			if _, err := tx.ExecContext(ctx, "DELETE FROM stacks WHERE id = ?", id); err != nil {
				return fmt.Errorf("failed to evict stack: %w", err)
			}
		}

		if err := r.syncReferenced(ctx, tx, referenced, next.ReferencedTracks); err != nil {
			return err
		}

		if len(evicted) > 0 {
			r.logger.Info("evicted stacks", "count", len(evicted), "kept", len(next.StackHistory))
		}
		return nil
	})
}

// DeleteStack removes a stack and reclaims keys no remaining stack holds.
func (r *ExposureRepository) DeleteStack(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := r.write(ctx, func(tx *sql.Tx) error {
		referenced, err := r.referenced(ctx, tx)
		if err != nil {
			return err
		}
		history, err := r.history(ctx, tx)
		if err != nil {
			return err
		}

		result := tasks.Reclaim(history, referenced, id)
		if !result.Removed {
			return nil
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM stacks WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete stack: %w", err)
		}
		if err := r.syncReferenced(ctx, tx, referenced, result.Referenced); err != nil {
			return err
		}

		removed = true
		r.logger.Debug("reclaimed references", "stack", id, "before", len(referenced), "after", len(result.Referenced))
		return nil
	})
	return removed, err
}

// ClearAll resets seen containers, referenced tracks and history.
func (r *ExposureRepository) ClearAll(ctx context.Context) error {
	return r.write(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"seen_containers", "referenced_tracks", "stacks"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// write runs fn in a transaction while holding the in-process mutex and the file lock.
func (r *ExposureRepository) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lock != nil {
		locked, err := r.lock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("failed to acquire exposure lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("%w: exposure lock held by another process", shared.ErrTimeout)
		}
		defer r.lock.Unlock()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// syncReferenced applies the difference between before and after to the referenced_tracks table.
func (r *ExposureRepository) syncReferenced(ctx context.Context, q querier, before, after map[models.TrackKey]struct{}) error {
	for k := range before {
		if _, ok := after[k]; ok {
			continue
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM referenced_tracks WHERE track_key = ?", string(k)); err != nil {
			return fmt.Errorf("failed to reclaim track: %w", err)
		}
	}

	now := time.Now().UTC()
	for k := range after {
		if _, ok := before[k]; ok {
			continue
		}
		_, err := q.ExecContext(ctx, "INSERT OR IGNORE INTO referenced_tracks (track_key, referenced_at) VALUES (?, ?)", string(k), now)
		if err != nil {
			return fmt.Errorf("failed to reference track: %w", err)
		}
	}
	return nil
}

func (r *ExposureRepository) seen(ctx context.Context, q querier) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, "SELECT id FROM seen_containers")
	if err != nil {
		return nil, fmt.Errorf("failed to query seen containers: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan seen container: %w", err)
		}
		seen[id] = struct{}{}
	}
	return seen, rows.Err()
}

func (r *ExposureRepository) referenced(ctx context.Context, q querier) (map[models.TrackKey]struct{}, error) {
	rows, err := q.QueryContext(ctx, "SELECT track_key FROM referenced_tracks")
	if err != nil {
		return nil, fmt.Errorf("failed to query referenced tracks: %w", err)
	}
	defer rows.Close()

	referenced := make(map[models.TrackKey]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan referenced track: %w", err)
		}
		referenced[models.TrackKey(k)] = struct{}{}
	}
	return referenced, rows.Err()
}

func (r *ExposureRepository) history(ctx context.Context, q querier) ([]models.Stack, error) {
	rows, err := q.QueryContext(ctx, "SELECT payload FROM stacks ORDER BY sequence DESC LIMIT ?", models.MaxStackHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to query stacks: %w", err)
	}
	defer rows.Close()

	var history []models.Stack
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan stack: %w", err)
		}
		stack, err := decodeStack(payload)
		if err != nil {
			return nil, err
		}
		history = append(history, *stack)
	}
	return history, rows.Err()
}

func decodeStack(payload string) (*models.Stack, error) {
	var stack models.Stack
	if err := json.Unmarshal([]byte(payload), &stack); err != nil {
		return nil, fmt.Errorf("failed to decode stack: %w", err)
	}
	return &stack, nil
}
