package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/database"
	apperrors "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/errors"
)

// TokenRepository implements repository.TokenRepository using PostgreSQL.
type TokenRepository struct {
	db DB
}

// NewTokenRepository creates a new PostgreSQL-backed token repository.
func NewTokenRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create inserts a new token record into the database.
func (r *TokenRepository) Create(ctx context.Context, t *domain.AuthToken) error {
	query := `
		INSERT INTO auth_tokens (id, identity_id, token_hash, kind, expires_at, last_used_at, issued_from_ip, issued_from_agent, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.IdentityID,
		t.TokenHash,
		t.Kind,
		t.ExpiresAt,
		t.LastUsedAt,
		t.IssuedFromIP,
		t.IssuedAgent,
		t.Revoked,
		t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("token", "token_hash", t.TokenHash)
		}
		return fmt.Errorf("insert token: %w", err)
	}

	return nil
}

// GetByHash retrieves a token record by its SHA-256 digest. This is the hot
// path of every authenticated request, so it carries its own span.
func (r *TokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.AuthToken, error) {
	query := `
		SELECT id, identity_id, token_hash, kind, expires_at, last_used_at, issued_from_ip, issued_from_agent, revoked, created_at
		FROM auth_tokens
		WHERE token_hash = $1`

	ctx, end := database.TraceQuery(ctx, "GetTokenByHash", query)

	var t domain.AuthToken
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.IdentityID,
		&t.TokenHash,
		&t.Kind,
		&t.ExpiresAt,
		&t.LastUsedAt,
		&t.IssuedFromIP,
		&t.IssuedAgent,
		&t.Revoked,
		&t.CreatedAt,
	)
	end(err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}

	return &t, nil
}

// TouchLastUsed records a successful verification of the token.
func (r *TokenRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE auth_tokens SET last_used_at = $1 WHERE id = $2`

	_, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("touch token: %w", err)
	}

	return nil
}

// RevokeByHash marks a single token revoked. Revocation is terminal, so
// already-revoked tokens are not matched.
func (r *TokenRepository) RevokeByHash(ctx context.Context, tokenHash string) (bool, error) {
	query := `UPDATE auth_tokens SET revoked = true WHERE token_hash = $1 AND revoked = false`

	ct, err := r.db.Exec(ctx, query, tokenHash)
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// RevokeAllByIdentity revokes every live token of the identity, optionally
// restricted to one kind.
func (r *TokenRepository) RevokeAllByIdentity(ctx context.Context, identityID string, kind *domain.TokenKind) (int64, error) {
	query := `UPDATE auth_tokens SET revoked = true WHERE identity_id = $1 AND revoked = false`
	args := []any{identityID}

	if kind != nil {
		query += ` AND kind = $2`
		args = append(args, *kind)
	}

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens by identity: %w", err)
	}

	return ct.RowsAffected(), nil
}

// DeleteExpired removes tokens past their expiry that were never revoked.
// Revoked tokens are retained for the audit trail.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM auth_tokens WHERE expires_at <= $1 AND revoked = false`

	ct, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return ct.RowsAffected(), nil
}

// ListActiveByIdentity returns the identity's unrevoked, unexpired tokens,
// newest first.
func (r *TokenRepository) ListActiveByIdentity(ctx context.Context, identityID string, now time.Time) ([]domain.AuthToken, error) {
	query := `
		SELECT id, identity_id, token_hash, kind, expires_at, last_used_at, issued_from_ip, issued_from_agent, revoked, created_at
		FROM auth_tokens
		WHERE identity_id = $1 AND revoked = false AND expires_at > $2
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, identityID, now)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.AuthToken
	for rows.Next() {
		var t domain.AuthToken
		if err := rows.Scan(
			&t.ID,
			&t.IdentityID,
			&t.TokenHash,
			&t.Kind,
			&t.ExpiresAt,
			&t.LastUsedAt,
			&t.IssuedFromIP,
			&t.IssuedAgent,
			&t.Revoked,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}

	if tokens == nil {
		tokens = []domain.AuthToken{}
	}

	return tokens, nil
}
