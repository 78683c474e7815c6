// Package registry holds the in-memory activity roster.
package registry

import (
	"context"
	"sync"
	"time"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/observability"
)

// InMemoryRegistry stores activities for the lifetime of the process.
type InMemoryRegistry struct {
	mu         sync.RWMutex
	activities domain.Catalog
}

// NewInMemoryRegistry constructs a registry owning a copy of catalog.
func NewInMemoryRegistry(catalog domain.Catalog) *InMemoryRegistry {
	r := &InMemoryRegistry{}
	r.Reset(catalog)
	return r
}

// Reset replaces the registry contents with a copy of catalog.
func (r *InMemoryRegistry) Reset(catalog domain.Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.activities = catalog.Clone()
	for name, activity := range r.activities {
		observability.RecordRosterSize(name, len(activity.Participants))
	}
}

// Snapshot implements domain.Registry.
func (r *InMemoryRegistry) Snapshot(ctx context.Context) (domain.Catalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.activities.Clone(), nil
}

// Get implements domain.Registry. A missing activity yields nil without error.
func (r *InMemoryRegistry) Get(ctx context.Context, name string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activity, ok := r.activities[name]
	if !ok {
		return nil, nil
	}
	out := activity.Clone()
	return &out, nil
}

// AddParticipant implements domain.Registry.
func (r *InMemoryRegistry) AddParticipant(ctx context.Context, name, email string) (domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	activity, ok := r.activities[name]
	if !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	if activity.HasParticipant(email) {
		return domain.Activity{}, domain.ErrAlreadySignedUp
	}

	updated := activity.WithParticipant(email)
	r.activities[name] = updated
	observability.RecordRosterSize(name, len(updated.Participants))
	observability.RecordRosterChange(time.Now())
	return updated.Clone(), nil
}

// RemoveParticipant implements domain.Registry.
func (r *InMemoryRegistry) RemoveParticipant(ctx context.Context, name, email string) (domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	activity, ok := r.activities[name]
	if !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	if !activity.HasParticipant(email) {
		return domain.Activity{}, domain.ErrNotRegistered
	}

	updated := activity.WithoutParticipant(email)
	r.activities[name] = updated
	observability.RecordRosterSize(name, len(updated.Participants))
	observability.RecordRosterChange(time.Now())
	return updated.Clone(), nil
}
