package repositories

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
	"github.com/desertthunder/stackr/internal/tasks"
)

// MemoryExposureStore is an in-memory [models.ExposureStore]. The zero value is not usable; call [NewMemoryExposureStore].
type MemoryExposureStore struct {
	mu    sync.RWMutex
	state models.ExposureState
}

func NewMemoryExposureStore() *MemoryExposureStore {
	return &MemoryExposureStore{state: emptyState()}
}

func emptyState() models.ExposureState {
	return models.ExposureState{
		SeenContainers:   map[string]struct{}{},
		ReferencedTracks: map[models.TrackKey]struct{}{},
	}
}

func (m *MemoryExposureStore) SeenContainers(ctx context.Context) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.state.SeenContainers), ctx.Err()
}

func (m *MemoryExposureStore) ReferencedTracks(ctx context.Context) (map[models.TrackKey]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.state.ReferencedTracks), ctx.Err()
}

func (m *MemoryExposureStore) StackHistory(ctx context.Context) ([]models.Stack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.state.StackHistory), ctx.Err()
}

func (m *MemoryExposureStore) Stack(ctx context.Context, id string) (*models.Stack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.state.StackHistory {
		if m.state.StackHistory[i].ID == id {
			s := m.state.StackHistory[i]
			return &s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrStackNotFound, id)
}

func (m *MemoryExposureStore) CommitStack(ctx context.Context, stack *models.Stack, newlySeen []string, newlyReferenced []models.TrackKey) error {
	if stack == nil || stack.ID == "" {
		return fmt.Errorf("%w: stack must have an id", shared.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.StackHistory {
		if m.state.StackHistory[i].ID == stack.ID {
			return fmt.Errorf("%w: stack %s already committed", shared.ErrInvalidInput, stack.ID)
		}
	}
	m.state, _ = tasks.ApplyCommit(m.state, stack, newlySeen, newlyReferenced)
	return nil
}

func (m *MemoryExposureStore) DeleteStack(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	result := tasks.Reclaim(m.state.StackHistory, m.state.ReferencedTracks, id)
	if !result.Removed {
		return false, nil
	}
	m.state.StackHistory = result.History
	m.state.ReferencedTracks = result.Referenced
	return true, nil
}

func (m *MemoryExposureStore) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = emptyState()
	return nil
}
