package repository

import (
	"context"
	"time"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
)

// IdentityRepository defines the interface for identity lookups. Identity
// records are created and managed elsewhere; this service only reads them and
// rotates password hashes.
type IdentityRepository interface {
	// GetByID retrieves an identity by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Identity, error)

	// GetByUsername retrieves an identity by its username.
	GetByUsername(ctx context.Context, username string) (*domain.Identity, error)

	// UpdatePasswordHash replaces the stored password hash for an identity.
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// TokenRepository defines the interface for auth token persistence operations.
type TokenRepository interface {
	// Create inserts a new token record into the store.
	Create(ctx context.Context, token *domain.AuthToken) error

	// GetByHash retrieves a token record by its SHA-256 digest.
	GetByHash(ctx context.Context, tokenHash string) (*domain.AuthToken, error)

	// TouchLastUsed records a successful verification of the token.
	TouchLastUsed(ctx context.Context, id string, at time.Time) error

	// RevokeByHash marks a single token revoked. It reports whether a live
	// token was actually revoked.
	RevokeByHash(ctx context.Context, tokenHash string) (bool, error)

	// RevokeAllByIdentity revokes every live token of the identity, optionally
	// restricted to one kind, and returns the number of tokens revoked.
	RevokeAllByIdentity(ctx context.Context, identityID string, kind *domain.TokenKind) (int64, error)

	// DeleteExpired removes tokens past their expiry that were never revoked.
	// Revoked tokens are kept for the audit trail.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// ListActiveByIdentity returns the identity's unrevoked, unexpired tokens.
	ListActiveByIdentity(ctx context.Context, identityID string, now time.Time) ([]domain.AuthToken, error)
}

// AuditRepository defines the interface for the append-only audit log.
// There are no update or delete operations.
type AuditRepository interface {
	// Append inserts a new audit entry.
	Append(ctx context.Context, entry *domain.AuditEntry) error

	// List returns audit entries matching the filter, newest first.
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
}

// UsageRepository defines the interface for usage counter persistence.
type UsageRepository interface {
	// Increment adds delta to the counter for the given period, creating the
	// row if it does not exist.
	Increment(ctx context.Context, identityID string, metric domain.MetricType, periodStart, periodEnd time.Time, delta int64) error

	// Get returns the counter value for the given period, or zero if no row
	// exists yet.
	Get(ctx context.Context, identityID string, metric domain.MetricType, periodStart time.Time) (int64, error)
}
