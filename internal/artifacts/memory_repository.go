package artifacts

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"zemini/internal/auth"
)

// InMemoryRepository stores artifacts in an in-process map, ideal for local development or tests.
type InMemoryRepository struct {
	mu   sync.RWMutex
	data map[uuid.UUID]Artifact
}

// NewInMemoryRepository constructs a repository seeded with optional artifacts.
func NewInMemoryRepository(initial []Artifact) *InMemoryRepository {
	data := make(map[uuid.UUID]Artifact, len(initial))
	for _, a := range initial {
		data[a.ID] = a
	}
	return &InMemoryRepository{data: data}
}

// Create stores a new artifact.
func (r *InMemoryRepository) Create(_ context.Context, artifact Artifact) (Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[artifact.ID] = artifact
	return artifact, nil
}

// GetOwned returns the artifact if owner owns it.
func (r *InMemoryRepository) GetOwned(_ context.Context, id uuid.UUID, owner auth.Identity) (Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	artifact, ok := r.data[id]
	if !ok || !artifact.Owner.SameOwner(owner) {
		return Artifact{}, ErrNotFound
	}
	return artifact, nil
}

// ListByOwner returns the owner's artifacts, newest first.
func (r *InMemoryRepository) ListByOwner(_ context.Context, owner auth.Identity) ([]Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Artifact, 0)
	for _, a := range r.data {
		if a.Owner.SameOwner(owner) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, compareNewestFirst)
	return out, nil
}

// DeleteOwned removes the artifact when owner owns it.
func (r *InMemoryRepository) DeleteOwned(_ context.Context, id uuid.UUID, owner auth.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	artifact, ok := r.data[id]
	if !ok || !artifact.Owner.SameOwner(owner) {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

func compareNewestFirst(a, b Artifact) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID.String(), a.ID.String())
}
