package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"zemini/internal/auth"
)

// PostgresRepository persists artifacts to a Postgres database.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository constructs a repository backed by sqlx.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const baseSelect = `SELECT id, owner_email, prompt, url, source_url, kind, created_at FROM artifacts`

// artifactRow stores guest ownership as a NULL owner_email so that no email
// value, including a literal "guest", can match it.
type artifactRow struct {
	ID         uuid.UUID      `db:"id"`
	OwnerEmail sql.NullString `db:"owner_email"`
	Prompt     string         `db:"prompt"`
	URL        string         `db:"url"`
	SourceURL  string         `db:"source_url"`
	Kind       Kind           `db:"kind"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (row artifactRow) toArtifact() Artifact {
	owner := auth.Guest()
	if row.OwnerEmail.Valid {
		owner = auth.Authenticated(auth.Principal{Email: row.OwnerEmail.String})
	}
	return Artifact{
		ID:        row.ID,
		Owner:     owner,
		Prompt:    row.Prompt,
		URL:       row.URL,
		SourceURL: row.SourceURL,
		Kind:      row.Kind,
		CreatedAt: row.CreatedAt,
	}
}

func ownerColumn(owner auth.Identity) sql.NullString {
	if owner.IsGuest() {
		return sql.NullString{}
	}
	return sql.NullString{String: owner.Email(), Valid: true}
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, artifact Artifact) (Artifact, error) {
	const insert = `INSERT INTO artifacts (id, owner_email, prompt, url, source_url, kind, created_at)
VALUES (:id, :owner_email, :prompt, :url, :source_url, :kind, :created_at)`

	row := artifactRow{
		ID:         artifact.ID,
		OwnerEmail: ownerColumn(artifact.Owner),
		Prompt:     artifact.Prompt,
		URL:        artifact.URL,
		SourceURL:  artifact.SourceURL,
		Kind:       artifact.Kind,
		CreatedAt:  artifact.CreatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, insert, row); err != nil {
		return Artifact{}, fmt.Errorf("insert artifact: %w", err)
	}
	return artifact, nil
}

// GetOwned retrieves a row by primary key and owner.
func (r *PostgresRepository) GetOwned(ctx context.Context, id uuid.UUID, owner auth.Identity) (Artifact, error) {
	if owner.IsGuest() {
		return Artifact{}, ErrNotFound
	}

	var row artifactRow
	if err := r.db.GetContext(ctx, &row, baseSelect+" WHERE id = $1 AND owner_email = $2", id, owner.Email()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, fmt.Errorf("select artifact: %w", err)
	}
	return row.toArtifact(), nil
}

// ListByOwner returns the owner's rows ordered by creation date descending.
func (r *PostgresRepository) ListByOwner(ctx context.Context, owner auth.Identity) ([]Artifact, error) {
	out := make([]Artifact, 0)
	if owner.IsGuest() {
		return out, nil
	}

	var rows []artifactRow
	if err := r.db.SelectContext(ctx, &rows, baseSelect+" WHERE owner_email = $1 ORDER BY created_at DESC, id DESC", owner.Email()); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	for _, row := range rows {
		out = append(out, row.toArtifact())
	}
	return out, nil
}

// DeleteOwned deletes in one statement so ownership check and removal are atomic.
func (r *PostgresRepository) DeleteOwned(ctx context.Context, id uuid.UUID, owner auth.Identity) error {
	if owner.IsGuest() {
		return ErrNotFound
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM artifacts WHERE id = $1 AND owner_email = $2", id, owner.Email())
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
