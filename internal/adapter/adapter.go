package adapter

import (
	"context"
	"errors"
	"fmt"

	"qms-sync/internal/models"
)

var ErrUnsupportedSystemType = errors.New("unsupported system type")

// SystemAdapter is the capability contract shared by all external-system
// adapters. Sync must never raise for per-record failures; those are
// aggregated into the result's counters and error strings. An error return
// means the whole operation failed (external system unreachable) and nothing
// meaningful was synced.
type SystemAdapter interface {
	SystemType() models.SystemType
	Sync(ctx context.Context, cfg *models.SyncConfiguration, runID string) (*models.SyncResult, error)
}

// Registry dispatches to adapters by system type. It is populated once at
// composition time; lookups never fall back to string comparison elsewhere.
type Registry struct {
	adapters map[models.SystemType]SystemAdapter
}

func NewRegistry(adapters ...SystemAdapter) *Registry {
	registry := &Registry{adapters: make(map[models.SystemType]SystemAdapter, len(adapters))}
	for _, a := range adapters {
		registry.adapters[a.SystemType()] = a
	}
	return registry
}

func (r *Registry) Lookup(systemType models.SystemType) (SystemAdapter, error) {
	a, ok := r.adapters[systemType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSystemType, systemType)
	}
	return a, nil
}
