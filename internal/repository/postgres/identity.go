package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/errors"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
)

// IdentityRepository implements repository.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	db DB
}

// NewIdentityRepository creates a new PostgreSQL-backed identity repository.
func NewIdentityRepository(db DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// GetByID retrieves an identity by its ID.
func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	query := `
		SELECT id, username, email, full_name, role, password_hash, created_at, updated_at
		FROM identities
		WHERE id = $1`

	return r.scanIdentity(ctx, query, id)
}

// GetByUsername retrieves an identity by its username.
func (r *IdentityRepository) GetByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	query := `
		SELECT id, username, email, full_name, role, password_hash, created_at, updated_at
		FROM identities
		WHERE username = $1`

	return r.scanIdentity(ctx, query, username)
}

// UpdatePasswordHash replaces the stored password hash for an identity.
func (r *IdentityRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE identities SET password_hash = $1, updated_at = $2 WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("identity", id)
	}

	return nil
}

// scanIdentity is a helper that executes a query expected to return a single identity row.
func (r *IdentityRepository) scanIdentity(ctx context.Context, query string, args ...any) (*domain.Identity, error) {
	var id domain.Identity

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&id.ID,
		&id.Username,
		&id.Email,
		&id.FullName,
		&id.Role,
		&id.PasswordHash,
		&id.CreatedAt,
		&id.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	return &id, nil
}
