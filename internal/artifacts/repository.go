package artifacts

import (
	"context"

	"github.com/google/uuid"

	"zemini/internal/auth"
)

// Repository persists artifacts. Every read and delete is scoped to an owner;
// guest-owned artifacts are never returned by owner-scoped calls.
type Repository interface {
	Create(ctx context.Context, artifact Artifact) (Artifact, error)
	GetOwned(ctx context.Context, id uuid.UUID, owner auth.Identity) (Artifact, error)
	// ListByOwner returns the owner's artifacts, most recent first.
	ListByOwner(ctx context.Context, owner auth.Identity) ([]Artifact, error)
	// DeleteOwned removes the artifact only if owner owns it; otherwise ErrNotFound.
	DeleteOwned(ctx context.Context, id uuid.UUID, owner auth.Identity) error
}
